// Package emit publishes validated records to the shared EventBridge bus.
package emit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/flowgate/wrurelay/internal/envelope"
	"github.com/flowgate/wrurelay/internal/faults"
)

// API is the slice of the EventBridge client the emitter needs.
// *eventbridge.Client satisfies it.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Emitter publishes envelopes onto a named bus. Safe for concurrent use.
type Emitter struct {
	client  API
	busName string
	log     *slog.Logger
}

func New(client API, busName string, log *slog.Logger) *Emitter {
	return &Emitter{client: client, busName: busName, log: log}
}

// Emit publishes one envelope and returns the bus-assigned event id. Every
// failure is reported as faults.ErrBusUnavailable: publish problems are
// dependency conditions, never a judgement on the record, so the caller may
// retry the whole record later. Rejection is reserved for validation.
func (e *Emitter) Emit(ctx context.Context, ev envelope.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", fmt.Errorf("%w: invalid envelope: %v", faults.ErrBusUnavailable, err)
	}
	detail, err := ev.DetailJSON()
	if err != nil {
		return "", fmt.Errorf("%w: encode detail: %v", faults.ErrBusUnavailable, err)
	}

	entry := ebtypes.PutEventsRequestEntry{
		Source:       aws.String(ev.Source),
		DetailType:   aws.String(ev.DetailType),
		Detail:       aws.String(string(detail)),
		EventBusName: aws.String(e.busName),
		Time:         aws.Time(ev.Time),
	}
	if len(ev.Resources) > 0 {
		entry.Resources = ev.Resources
	}

	out, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return "", fmt.Errorf("%w: put events: %v", faults.ErrBusUnavailable, err)
	}

	if out.FailedEntryCount > 0 {
		for _, result := range out.Entries {
			if result.ErrorCode != nil {
				return "", fmt.Errorf("%w: entry failed: %s: %s",
					faults.ErrBusUnavailable,
					aws.ToString(result.ErrorCode),
					aws.ToString(result.ErrorMessage))
			}
		}
		return "", fmt.Errorf("%w: %d entries failed", faults.ErrBusUnavailable, out.FailedEntryCount)
	}

	eventID := ""
	if len(out.Entries) > 0 {
		eventID = aws.ToString(out.Entries[0].EventId)
	}
	e.log.Debug("event emitted", "bus", e.busName, "detail_type", ev.DetailType, "event_id", eventID)
	return eventID, nil
}
