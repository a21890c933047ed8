// Package envelope builds the outbound event wrapper around a validated
// canonical record. An envelope is constructed fresh per successful
// validation and never reused across records.
package envelope

import (
	"fmt"
	"time"

	"github.com/flowgate/wrurelay/internal/ids"
	"github.com/flowgate/wrurelay/internal/jsoncodec"
)

// Event is the canonical outbound envelope: the detail type equals the schema
// name, the source identifies this relay.
type Event struct {
	// ID uniquely identifies the event. ULIDs keep ids time-sortable.
	ID string

	// Source identifies the relay that produced the event.
	Source string

	// DetailType equals the name of the schema the record conformed to.
	DetailType string

	// Time is the UTC construction timestamp.
	Time time.Time

	// Detail is the canonical record.
	Detail map[string]any

	// Resources is passed through to the bus entry when the record carries a
	// resources list.
	Resources []string
}

// New builds an envelope for a canonical record. When the record carries a
// "resources" array of strings, it is mirrored into the envelope's Resources.
func New(detailType, source string, detail map[string]any) Event {
	return Event{
		ID:         ids.NewULID(),
		Source:     source,
		DetailType: detailType,
		Time:       time.Now().UTC(),
		Detail:     detail,
		Resources:  resourcesFrom(detail),
	}
}

// DetailJSON returns the canonical record as deterministic JSON bytes.
func (e Event) DetailJSON() ([]byte, error) {
	return jsoncodec.Marshal(e.Detail)
}

// Validate checks the envelope invariants before publishing.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.DetailType == "" {
		return fmt.Errorf("detail type is required")
	}
	if e.Detail == nil {
		return fmt.Errorf("detail is required")
	}
	return nil
}

func resourcesFrom(detail map[string]any) []string {
	raw, ok := detail["resources"].([]any)
	if !ok {
		return nil
	}
	resources := make([]string, 0, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			return nil
		}
		resources = append(resources, s)
	}
	return resources
}
