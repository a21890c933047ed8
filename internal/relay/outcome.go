package relay

import "github.com/flowgate/wrurelay/internal/validate"

// Status is the per-record result visible to the invoking transport. Callers
// redrive only transient failures; emissions and rejections are final.
type Status string

const (
	// StatusEmitted means the record conformed and was published to the bus.
	StatusEmitted Status = "emitted"

	// StatusRejected means the record is permanently unacceptable as-is:
	// validation failed or its schema does not exist. Never redriven.
	StatusRejected Status = "rejected"

	// StatusTransientFailure means a dependency condition prevented a
	// decision. The caller should redrive the record.
	StatusTransientFailure Status = "transient_failure"
)

// Record is one addressable draft within an invocation. The ID is supplied by
// the caller and carried through to the outcome for redrive bookkeeping.
type Record struct {
	ID    string
	Draft validate.Record
}

// Outcome reports what happened to one record.
type Outcome struct {
	RecordID string
	Status   Status

	// Detail is a short human-readable note: the bus event id on success, a
	// classification on failure. Full rejection diagnostics travel through
	// the failure reporter, not here.
	Detail string
}
