// Package inbound adapts trigger transports onto the relay handler. The core
// is transport-agnostic; each source only has to deliver addressable
// messages and honour ack/nack for redrive.
package inbound

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	awssqs "github.com/ThreeDotsLabs/watermill-aws/sqs"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/flowgate/wrurelay/internal/config"
)

// HTTPTopic is the path drafts are POSTed to when the HTTP source is active.
const HTTPTopic = "wru-drafts"

// SQSSubscriberFactory allows overriding the SQS subscriber creation for
// testing.
var SQSSubscriberFactory = func(cfg awssqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return awssqs.NewSubscriber(cfg, logger)
}

// HTTPSubscriberFactory allows overriding the HTTP subscriber creation for
// testing.
var HTTPSubscriberFactory = func(addr string, cfg wmhttp.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmhttp.NewSubscriber(addr, cfg, logger)
}

// Source is one inbound trigger: a subscriber plus the topic drafts arrive
// on. start, when set, must be called after Subscribe (the HTTP server can
// only start once its route exists).
type Source struct {
	Subscriber message.Subscriber
	Topic      string

	start func()
}

// NewSource builds the source selected by cfg.Inbound.
func NewSource(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger watermill.LoggerAdapter) (*Source, error) {
	switch strings.ToLower(cfg.Inbound) {
	case config.InboundSQS:
		return newSQSSource(cfg, awsCfg, logger)
	case config.InboundHTTP:
		return newHTTPSource(cfg, logger)
	case config.InboundChannel:
		return NewChannelSource(logger), nil
	default:
		return nil, fmt.Errorf("unknown inbound transport %q", cfg.Inbound)
	}
}

func newSQSSource(cfg *config.Config, awsCfg aws.Config, logger watermill.LoggerAdapter) (*Source, error) {
	subscriber, err := SQSSubscriberFactory(awssqs.SubscriberConfig{
		AWSConfig: awsCfg,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create sqs subscriber: %w", err)
	}
	return &Source{Subscriber: subscriber, Topic: cfg.QueueName}, nil
}

func newHTTPSource(cfg *config.Config, logger watermill.LoggerAdapter) (*Source, error) {
	subscriber, err := HTTPSubscriberFactory(cfg.HTTPAddr, wmhttp.SubscriberConfig{
		UnmarshalMessageFunc: wmhttp.DefaultUnmarshalMessageFunc,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create http subscriber: %w", err)
	}
	source := &Source{Subscriber: subscriber, Topic: HTTPTopic}
	if s, ok := subscriber.(*wmhttp.Subscriber); ok {
		source.start = func() {
			go func() {
				if err := s.StartHTTPServer(); err != nil {
					logger.Error("http subscriber server stopped", err, nil)
				}
			}()
		}
	}
	return source, nil
}

// NewChannelSource returns an in-memory source. The returned publisher side
// is the same gochannel instance, so tests and local runs can feed drafts
// directly.
func NewChannelSource(logger watermill.LoggerAdapter) *Source {
	channel := gochannel.NewGoChannel(gochannel.Config{}, logger)
	return &Source{Subscriber: channel, Topic: "wru-drafts"}
}

// Publisher exposes the publishing side of an in-memory source. Returns nil
// for transports without a local publisher.
func (s *Source) Publisher() message.Publisher {
	if pub, ok := s.Subscriber.(message.Publisher); ok {
		return pub
	}
	return nil
}

// Close shuts the subscriber down.
func (s *Source) Close() error {
	return s.Subscriber.Close()
}
