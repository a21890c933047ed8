// Package report produces structured diagnostics for records that failed
// validation. Reporting is best-effort by contract: a broken diagnostic
// channel must never take down the validation pipeline, so Report does not
// return errors.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowgate/wrurelay/internal/ids"
	"github.com/flowgate/wrurelay/internal/jsoncodec"
	"github.com/flowgate/wrurelay/internal/schema"
	"github.com/flowgate/wrurelay/internal/validate"
)

const defaultMaxExcerptBytes = 2048

// Keys whose values are masked in record excerpts. Matching is a
// case-insensitive substring check on the key name.
var redactedKeys = []string{
	"password", "secret", "token", "authorization", "apikey", "api_key",
	"email", "phone",
}

// Diagnostic is the structured rejection record: enough to reproduce the
// decision without replaying the input.
type Diagnostic struct {
	RecordID   string               `json:"recordId"`
	Schema     string               `json:"schema"`
	Violations []validate.Violation `json:"violations"`
	Excerpt    json.RawMessage      `json:"excerpt,omitempty"`
	Time       time.Time            `json:"time"`
}

// Option customises a Reporter.
type Option func(*Reporter)

// WithPublisher additionally publishes diagnostics to topic on the given
// publisher.
func WithPublisher(publisher message.Publisher, topic string) Option {
	return func(r *Reporter) {
		r.publisher = publisher
		r.topic = topic
	}
}

// WithMaxExcerptBytes bounds the record excerpt size.
func WithMaxExcerptBytes(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.maxExcerptBytes = n
		}
	}
}

// Reporter logs rejection diagnostics and optionally forwards them to an
// error topic. Rejected records themselves are never forwarded anywhere.
type Reporter struct {
	log             *slog.Logger
	publisher       message.Publisher
	topic           string
	maxExcerptBytes int
}

func New(log *slog.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		log:             log,
		maxExcerptBytes: defaultMaxExcerptBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report emits the diagnostic for one rejected record. It never panics and
// never returns an error.
func (r *Reporter) Report(ctx context.Context, recordID string, id schema.Identifier, record validate.Record, violations []validate.Violation) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("failure reporter panicked", "panic", rec, "record_id", recordID)
		}
	}()

	diag := Diagnostic{
		RecordID:   recordID,
		Schema:     id.String(),
		Violations: violations,
		Excerpt:    r.excerpt(record),
		Time:       time.Now().UTC(),
	}

	r.log.Warn("record rejected",
		"record_id", diag.RecordID,
		"schema", diag.Schema,
		"violations", len(diag.Violations),
		"detail", violationSummary(violations),
	)

	if r.publisher == nil || r.topic == "" {
		return
	}
	payload, err := jsoncodec.Marshal(diag)
	if err != nil {
		r.log.Error("failed to encode diagnostic", "error", err, "record_id", recordID)
		return
	}
	msg := message.NewMessage(ids.NewULID(), payload)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := r.publisher.Publish(r.topic, msg); err != nil {
		r.log.Error("failed to publish diagnostic", "error", err, "record_id", recordID, "topic", r.topic)
	}
}

// excerpt returns a size-bounded, redacted rendering of the offending record.
func (r *Reporter) excerpt(record validate.Record) json.RawMessage {
	if record == nil {
		return nil
	}
	data, err := jsoncodec.Marshal(redact(record))
	if err != nil {
		return nil
	}
	if len(data) <= r.maxExcerptBytes {
		return data
	}
	truncated, err := jsoncodec.Marshal(string(data[:r.maxExcerptBytes]) + " ...(truncated)")
	if err != nil {
		return nil
	}
	return truncated
}

func redact(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		if sensitiveKey(key) {
			out[key] = "***REDACTED***"
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = redact(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, needle := range redactedKeys {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func violationSummary(violations []validate.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}
