// Command relay runs the workflow run update draft relay: drafts come in on
// the configured trigger, are validated against the registry schema, and only
// conforming records are forwarded to the shared event bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awssqs "github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awsschemas "github.com/aws/aws-sdk-go-v2/service/schemas"

	"github.com/flowgate/wrurelay/internal/awsconf"
	"github.com/flowgate/wrurelay/internal/config"
	"github.com/flowgate/wrurelay/internal/emit"
	"github.com/flowgate/wrurelay/internal/inbound"
	"github.com/flowgate/wrurelay/internal/logging"
	"github.com/flowgate/wrurelay/internal/metrics"
	"github.com/flowgate/wrurelay/internal/relay"
	"github.com/flowgate/wrurelay/internal/report"
	"github.com/flowgate/wrurelay/internal/schema"
	"github.com/flowgate/wrurelay/internal/schema/registry"
	"github.com/flowgate/wrurelay/internal/validate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("relay terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(level)
	log.Info("starting wru relay", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		go m.Serve(ctx, cfg.MetricsPort, log)
	}

	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	contract := schema.Identifier{
		RegistryName: cfg.RegistryName,
		SchemaName:   cfg.SchemaName,
	}

	resolverOpts := []registry.Option{registry.WithCacheMetrics(m)}
	if cfg.InlineSchema != "" {
		resolverOpts = append(resolverOpts, registry.WithInlineSchema(cfg.InlineSchema))
	}
	if cfg.SchemaFile != "" {
		resolverOpts = append(resolverOpts, registry.WithSchemaFile(cfg.SchemaFile))
	}
	resolver := registry.New(awsschemas.NewFromConfig(awsCfg), log, resolverOpts...)

	emitter := emit.New(eventbridge.NewFromConfig(awsCfg), cfg.BusName, log)

	wmLogger := logging.WatermillAdapter(log)
	source, err := inbound.NewSource(ctx, cfg, awsCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create inbound source: %w", err)
	}
	defer source.Close()

	reporterOpts := []report.Option{}
	if cfg.ReportTopic != "" {
		if pub := source.Publisher(); pub != nil {
			reporterOpts = append(reporterOpts, report.WithPublisher(pub, cfg.ReportTopic))
		} else if cfg.Inbound == config.InboundSQS {
			pub, err := awssqs.NewPublisher(awssqs.PublisherConfig{AWSConfig: awsCfg}, wmLogger)
			if err != nil {
				return fmt.Errorf("create report publisher: %w", err)
			}
			defer pub.Close()
			reporterOpts = append(reporterOpts, report.WithPublisher(pub, cfg.ReportTopic))
		}
	}
	reporter := report.New(log, reporterOpts...)

	handler, err := relay.NewHandler(relay.Deps{
		Resolver:    resolver,
		Validator:   validate.New(cfg.Strict),
		Emitter:     emitter,
		Reporter:    reporter,
		Logger:      log,
		Contract:    contract,
		Source:      cfg.EventSource,
		CallTimeout: cfg.CallTimeout,
		Concurrency: cfg.Concurrency,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	runner := inbound.NewRunner(source, handler, reporter, contract, log)
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("run inbound source: %w", err)
	}

	log.Info("relay stopped")
	return nil
}
