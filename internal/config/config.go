// Package config holds the explicit configuration surface of the relay. The
// struct is passed into constructors rather than read as ambient state so the
// core stays testable without environment simulation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Inbound transport names accepted by Config.Inbound.
const (
	InboundSQS     = "sqs"
	InboundHTTP    = "http"
	InboundChannel = "channel"
)

// Defaults carried over from the relay's deployment history.
const (
	DefaultEventSource  = "orcabus.executionhandler"
	DefaultSchemaName   = "orcabus.workflowmanager@WorkflowRunUpdate"
	DefaultRegistryName = "discovered-schemas"
	DefaultBusName      = "default"
	DefaultCallTimeout  = 5 * time.Second
	DefaultConcurrency  = 4
)

// Config groups every setting the relay needs. Each inbound transport only
// uses the keys relevant to it.
type Config struct {
	// BusName is the EventBridge bus conforming records are published to.
	BusName string

	// SchemaName and RegistryName identify the contract drafts are validated
	// against. Supplied by configuration, never per record.
	SchemaName   string
	RegistryName string

	// Strict rejects unrecognized top-level fields instead of tolerating
	// them. Defaults to tolerant (forward compatibility).
	Strict bool

	// CallTimeout bounds each dependency call (schema lookup, bus publish).
	CallTimeout time.Duration

	// EventSource identifies this relay in outbound envelopes.
	EventSource string

	// InlineSchema optionally carries a full schema document, used when the
	// registry cannot serve one. SchemaFile points at a schema document on
	// disk, tried after InlineSchema.
	InlineSchema string
	SchemaFile   string

	// Inbound selects the trigger transport: "sqs", "http", or "channel".
	Inbound string

	// QueueName is the SQS queue drafts arrive on (Inbound == "sqs").
	QueueName string

	// HTTPAddr is the listen address for direct invocation (Inbound == "http").
	HTTPAddr string

	// ReportTopic optionally receives structured rejection diagnostics in
	// addition to the log. Empty disables the channel.
	ReportTopic string

	// Concurrency caps how many records of one batch are processed in
	// parallel.
	Concurrency int

	// AWS configuration.
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// AWSEndpoint optionally points at a custom endpoint (for example,
	// LocalStack in local development).
	AWSEndpoint string

	// Metrics configuration.
	MetricsEnabled bool
	MetricsPort    int

	LogLevel string
}

// WithDefaults fills unset fields with the deployment defaults.
func (c Config) WithDefaults() Config {
	if c.BusName == "" {
		c.BusName = DefaultBusName
	}
	if c.SchemaName == "" {
		c.SchemaName = DefaultSchemaName
	}
	if c.RegistryName == "" {
		c.RegistryName = DefaultRegistryName
	}
	if c.EventSource == "" {
		c.EventSource = DefaultEventSource
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Inbound == "" {
		c.Inbound = InboundSQS
	}
	return c
}

// Validate checks that the configuration is complete for the selected inbound
// transport. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateContract()...)
	errs = append(errs, c.validateInbound()...)
	errs = append(errs, c.validatePorts()...)

	return errors.Join(errs...)
}

func (c *Config) validateContract() []error {
	var errs []error
	if c.BusName == "" {
		errs = append(errs, errors.New("bus: name is required"))
	}
	if c.SchemaName == "" {
		errs = append(errs, errors.New("schema: name is required"))
	}
	if c.RegistryName == "" {
		errs = append(errs, errors.New("schema: registry name is required"))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, errors.New("timeout: call timeout cannot be negative"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency: cannot be negative"))
	}
	return errs
}

func (c *Config) validateInbound() []error {
	switch strings.ToLower(c.Inbound) {
	case InboundSQS:
		var errs []error
		if c.QueueName == "" {
			errs = append(errs, errors.New("sqs: queue name is required"))
		}
		if c.AWSRegion == "" && c.AWSEndpoint == "" {
			errs = append(errs, errors.New("aws: region is required"))
		}
		return errs
	case InboundHTTP:
		if c.HTTPAddr == "" {
			return []error{errors.New("http: listen address is required")}
		}
	case InboundChannel, "":
		// In-memory transport needs no config.
	default:
		return []error{fmt.Errorf("inbound: unknown transport %q", c.Inbound)}
	}
	return nil
}

func (c *Config) validatePorts() []error {
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return []error{fmt.Errorf("metrics: invalid port %d", c.MetricsPort)}
	}
	return nil
}

func (c Config) String() string {
	// Create a copy to avoid modifying the original.
	copy := c
	if copy.AWSSecretAccessKey != "" {
		copy.AWSSecretAccessKey = "***REDACTED***"
	}
	if copy.AWSAccessKeyID != "" {
		copy.AWSAccessKeyID = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing.
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}
