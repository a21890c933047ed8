package inbound

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowgate/wrurelay/internal/relay"
	"github.com/flowgate/wrurelay/internal/schema"
	"github.com/flowgate/wrurelay/internal/validate"
)

// Runner consumes messages from a source and drives the relay handler.
//
// Ack semantics: a message is acked when every record in it reached a final
// state (emitted or rejected) and nacked when any record failed transiently,
// so the transport redelivers it. With the one-record-per-message layout SQS
// uses, that redrives exactly the transiently failed records. A multi-record
// message is redelivered whole: records that already reached a final state
// run through the pipeline again, which at-least-once delivery tolerates;
// deduplication is left to the bus consumer. Producers that need exact
// redrive granularity should send one record per message.
type Runner struct {
	source   *Source
	handler  *relay.Handler
	reporter relay.FailureReporter
	contract schema.Identifier
	log      *slog.Logger
}

func NewRunner(source *Source, handler *relay.Handler, reporter relay.FailureReporter, contract schema.Identifier, log *slog.Logger) *Runner {
	return &Runner{
		source:   source,
		handler:  handler,
		reporter: reporter,
		contract: contract,
		log:      log,
	}
}

// Run consumes until ctx is cancelled or the subscriber channel closes.
func (r *Runner) Run(ctx context.Context) error {
	messages, err := r.source.Subscriber.Subscribe(ctx, r.source.Topic)
	if err != nil {
		return err
	}
	if r.source.start != nil {
		r.source.start()
	}

	r.log.Info("inbound source running", "topic", r.source.Topic)
	for msg := range messages {
		r.handleMessage(msg)
	}
	return nil
}

func (r *Runner) handleMessage(msg *message.Message) {
	records, failures, err := DecodeBatch(msg.Payload, msg.UUID)
	if err != nil {
		// A message with no decodable structure is a permanent rejection:
		// report it and ack so the transport does not redeliver garbage
		// forever.
		r.log.Error("undecodable inbound message", "message_id", msg.UUID, "error", err)
		r.reportDecodeFailure(msg.Context(), msg.UUID, err)
		msg.Ack()
		return
	}

	// An undecodable element rejects only itself; its siblings still run
	// through the pipeline.
	for _, failure := range failures {
		r.log.Error("undecodable batch element",
			"message_id", msg.UUID, "record_id", failure.RecordID, "error", failure.Err)
		r.reportDecodeFailure(msg.Context(), failure.RecordID, failure.Err)
	}

	outcomes := r.handler.Process(msg.Context(), records)
	for _, outcome := range outcomes {
		if outcome.Status == relay.StatusTransientFailure {
			r.log.Info("nacking message for redrive",
				"message_id", msg.UUID, "record_id", outcome.RecordID, "detail", outcome.Detail)
			msg.Nack()
			return
		}
	}
	msg.Ack()
}

func (r *Runner) reportDecodeFailure(ctx context.Context, recordID string, err error) {
	if r.reporter == nil {
		return
	}
	r.reporter.Report(ctx, recordID, r.contract, nil, []validate.Violation{{
		Path:     "$",
		Expected: "JSON object or array of objects",
		Actual:   err.Error(),
	}})
}
