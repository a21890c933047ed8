package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FromEnv reads the configuration from environment variables (an optional
// .env file is honoured), applies defaults, and validates the result.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := Config{
		BusName:      ldr.getString("EVENT_BUS_NAME", DefaultBusName),
		SchemaName:   ldr.getString("SCHEMA_NAME", DefaultSchemaName),
		RegistryName: ldr.getString("SCHEMA_REGISTRY_NAME", DefaultRegistryName),
		Strict:       ldr.getBool("STRICT_VALIDATION", false),
		CallTimeout:  ldr.getDuration("CALL_TIMEOUT", DefaultCallTimeout),
		EventSource:  ldr.getString("EVENT_SOURCE", DefaultEventSource),
		InlineSchema: ldr.getString("VALIDATION_SCHEMA", ""),
		SchemaFile:   ldr.getString("SCHEMA_FILE_PATH", ""),

		Inbound:   ldr.getString("INBOUND_TRANSPORT", InboundSQS),
		QueueName: ldr.getString("INBOUND_QUEUE_NAME", ""),
		HTTPAddr:  ldr.getString("INBOUND_HTTP_ADDR", ""),

		ReportTopic: ldr.getString("REPORT_TOPIC", ""),
		Concurrency: ldr.getInt("BATCH_CONCURRENCY", DefaultConcurrency),

		AWSRegion:          ldr.getString("AWS_REGION", ""),
		AWSAccountID:       ldr.getString("AWS_ACCOUNT_ID", ""),
		AWSAccessKeyID:     ldr.getString("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: ldr.getString("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:        ldr.getString("AWS_ENDPOINT", ""),

		MetricsEnabled: ldr.getBool("METRICS_ENABLED", true),
		MetricsPort:    ldr.getInt("METRICS_PORT", 9090),

		LogLevel: ldr.getString("LOG_LEVEL", "info"),
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val != "" {
			return val
		}
	}
	return def
}

func (l *envLoader) getInt(key string, def int) int {
	raw := l.getString(key, "")
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool) bool {
	raw := l.getString(key, "")
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getDuration(key string, def time.Duration) time.Duration {
	raw := l.getString(key, "")
	if raw == "" {
		return def
	}
	// Accept bare milliseconds for parity with the timeoutMs deployment knob.
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("%s must be a duration or milliseconds", key))
		return def
	}
	return d
}
