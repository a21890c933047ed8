// Package faults defines the error taxonomy shared across the relay pipeline.
// Component errors are wrapped into one of these sentinels before they cross a
// package boundary; the handler folds them into per-record outcomes.
package faults

import "errors"

var (
	// ErrSchemaNotFound means the registry has no schema under the configured
	// name. This is a misconfiguration: permanent, surfaced loudly, never
	// redriven.
	ErrSchemaNotFound = errors.New("wrurelay: schema not found")

	// ErrRegistryUnavailable means the schema lookup could not complete for
	// reasons unrelated to the record (credentials, network, throttling).
	// Transient; the record is eligible for redrive.
	ErrRegistryUnavailable = errors.New("wrurelay: schema registry unavailable")

	// ErrBusUnavailable means the bus publish failed on a dependency
	// condition. Transient; the record is eligible for redrive.
	ErrBusUnavailable = errors.New("wrurelay: event bus unavailable")

	// ErrValidationFailed marks a payload that does not conform to the
	// resolved schema. Permanent for that payload; reported, never forwarded.
	ErrValidationFailed = errors.New("wrurelay: validation failed")
)

// Transient reports whether err maps to a retryable condition. Unknown errors
// are treated as transient so a defect never silently drops a record.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchemaNotFound) || errors.Is(err, ErrValidationFailed) {
		return false
	}
	return true
}
