// Package relay is the composition root of the validation pipeline: it drives
// schema resolution, validation, emission, and failure reporting per record
// and folds every component error into one of the outcome statuses.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowgate/wrurelay/internal/envelope"
	"github.com/flowgate/wrurelay/internal/faults"
	"github.com/flowgate/wrurelay/internal/metrics"
	"github.com/flowgate/wrurelay/internal/schema"
	"github.com/flowgate/wrurelay/internal/validate"
)

const tracerName = "wrurelay-handler"

var (
	ErrResolverRequired  = errors.New("wrurelay: schema resolver is required")
	ErrValidatorRequired = errors.New("wrurelay: validator is required")
	ErrEmitterRequired   = errors.New("wrurelay: emitter is required")
	ErrReporterRequired  = errors.New("wrurelay: failure reporter is required")
	ErrLoggerRequired    = errors.New("wrurelay: logger is required")
)

// SchemaResolver resolves and invalidates contract definitions.
type SchemaResolver interface {
	Resolve(ctx context.Context, id schema.Identifier) (*schema.Definition, error)
	Invalidate(id schema.Identifier)
}

// EventEmitter publishes an envelope and returns the bus-assigned event id.
type EventEmitter interface {
	Emit(ctx context.Context, ev envelope.Event) (string, error)
}

// FailureReporter receives rejection diagnostics. Must not fail back into the
// pipeline.
type FailureReporter interface {
	Report(ctx context.Context, recordID string, id schema.Identifier, record validate.Record, violations []validate.Violation)
}

// Deps collects the handler's collaborators and settings.
type Deps struct {
	Resolver  SchemaResolver
	Validator *validate.Validator
	Emitter   EventEmitter
	Reporter  FailureReporter
	Logger    *slog.Logger

	// Contract identifies the schema every record is validated against.
	Contract schema.Identifier

	// Source identifies this relay in outbound envelopes.
	Source string

	// CallTimeout bounds each dependency call. Zero disables the per-call
	// bound (the invocation deadline still applies).
	CallTimeout time.Duration

	// Concurrency caps parallel record processing within one invocation.
	// Zero or one processes sequentially.
	Concurrency int

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Handler processes invocations of draft record batches. Stateless across
// invocations apart from the resolver's schema cache; safe for concurrent
// invocations.
type Handler struct {
	resolver    SchemaResolver
	validator   *validate.Validator
	emitter     EventEmitter
	reporter    FailureReporter
	log         *slog.Logger
	contract    schema.Identifier
	source      string
	callTimeout time.Duration
	concurrency int
	metrics     *metrics.Metrics
}

// NewHandler validates dependencies and builds a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	var errs []error
	if deps.Resolver == nil {
		errs = append(errs, ErrResolverRequired)
	}
	if deps.Validator == nil {
		errs = append(errs, ErrValidatorRequired)
	}
	if deps.Emitter == nil {
		errs = append(errs, ErrEmitterRequired)
	}
	if deps.Reporter == nil {
		errs = append(errs, ErrReporterRequired)
	}
	if deps.Logger == nil {
		errs = append(errs, ErrLoggerRequired)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Handler{
		resolver:    deps.Resolver,
		validator:   deps.Validator,
		emitter:     deps.Emitter,
		reporter:    deps.Reporter,
		log:         deps.Logger,
		contract:    deps.Contract,
		source:      deps.Source,
		callTimeout: deps.CallTimeout,
		concurrency: concurrency,
		metrics:     deps.Metrics,
	}, nil
}

// Process handles one invocation. Records are independent units of work: one
// record's failure never aborts its siblings, and outcomes line up with the
// input order regardless of completion order.
func (h *Handler) Process(ctx context.Context, records []Record) []Outcome {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(records)))

	h.metrics.RecordsReceived(len(records))

	outcomes := make([]Outcome, len(records))
	if len(records) == 0 {
		return outcomes
	}

	sem := make(chan struct{}, h.concurrency)
	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, record Record) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = h.processRecord(ctx, record)
		}(i, records[i])
	}
	wg.Wait()

	for _, outcome := range outcomes {
		h.metrics.RecordOutcome(string(outcome.Status))
	}
	return outcomes
}

// processRecord runs one record through resolve -> validate -> emit|report.
// A panic anywhere marks the record transient so it is not silently lost.
func (h *Handler) processRecord(ctx context.Context, record Record) (outcome Outcome) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "ProcessRecord")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", record.ID))
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("panic while processing record", "record_id", record.ID, "panic", rec)
			outcome = Outcome{RecordID: record.ID, Status: StatusTransientFailure, Detail: "internal error"}
		}
		span.SetAttributes(attribute.String("record.status", string(outcome.Status)))
	}()

	def, err := h.resolveContract(ctx)
	if err != nil {
		return h.resolveOutcome(record, err)
	}

	result := h.validator.Validate(def, record.Draft)
	if !result.Valid() {
		h.reporter.Report(ctx, record.ID, h.contract, record.Draft, result.Violations())
		return Outcome{
			RecordID: record.ID,
			Status:   StatusRejected,
			Detail:   fmt.Sprintf("validation failed: %d violation(s)", len(result.Violations())),
		}
	}

	ev := envelope.New(def.Name(), h.source, result.Canonical())
	eventID, err := h.emit(ctx, ev)
	if err != nil {
		h.log.Warn("emit failed", "record_id", record.ID, "error", err)
		return Outcome{RecordID: record.ID, Status: StatusTransientFailure, Detail: transientDetail(err)}
	}

	return Outcome{RecordID: record.ID, Status: StatusEmitted, Detail: eventID}
}

func (h *Handler) resolveContract(ctx context.Context) (*schema.Definition, error) {
	ctx, cancel := h.callContext(ctx)
	defer cancel()

	start := time.Now()
	def, err := h.resolver.Resolve(ctx, h.contract)
	h.metrics.ObserveResolve(time.Since(start))
	return def, err
}

func (h *Handler) emit(ctx context.Context, ev envelope.Event) (string, error) {
	ctx, cancel := h.callContext(ctx)
	defer cancel()

	start := time.Now()
	eventID, err := h.emitter.Emit(ctx, ev)
	h.metrics.ObserveEmit(time.Since(start))
	return eventID, err
}

func (h *Handler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.callTimeout)
}

// resolveOutcome folds a resolver error into an outcome. A missing schema is
// permanent misconfiguration and must not be redriven; everything else is a
// dependency condition the caller may retry.
func (h *Handler) resolveOutcome(record Record, err error) Outcome {
	if errors.Is(err, faults.ErrSchemaNotFound) {
		h.resolver.Invalidate(h.contract)
		h.log.Error("schema not found; rejecting record", "record_id", record.ID, "schema", h.contract.String(), "error", err)
		return Outcome{RecordID: record.ID, Status: StatusRejected, Detail: "schema not found"}
	}
	h.log.Warn("schema resolution failed", "record_id", record.ID, "error", err)
	return Outcome{RecordID: record.ID, Status: StatusTransientFailure, Detail: transientDetail(err)}
}

func transientDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "invocation cancelled"
	case errors.Is(err, faults.ErrRegistryUnavailable):
		return "schema registry unavailable"
	case errors.Is(err, faults.ErrBusUnavailable):
		return "event bus unavailable"
	default:
		return "internal error"
	}
}
