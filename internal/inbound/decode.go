package inbound

import (
	"fmt"

	"github.com/flowgate/wrurelay/internal/jsoncodec"
	"github.com/flowgate/wrurelay/internal/relay"
	"github.com/flowgate/wrurelay/internal/validate"
)

// Failure is one batch element that could not be decoded into a draft record.
// Decode failures are permanent for that element; redelivery cannot fix a
// malformed payload.
type Failure struct {
	RecordID string
	Err      error
}

// DecodeBatch turns one transport message into addressable draft records.
// A JSON array yields one record per element (ids derived from the message
// id); a JSON object yields a single record. Elements that cannot be decoded
// come back as Failures so their siblings still get processed; the error
// return is reserved for messages with no decodable structure at all.
func DecodeBatch(payload []byte, baseID string) ([]relay.Record, []Failure, error) {
	var decoded any
	if err := jsoncodec.Unmarshal(payload, &decoded); err != nil {
		return nil, nil, fmt.Errorf("message %s is not valid JSON: %w", baseID, err)
	}

	switch v := decoded.(type) {
	case []any:
		records := make([]relay.Record, 0, len(v))
		var failures []Failure
		for i, element := range v {
			id := fmt.Sprintf("%s/%d", baseID, i)
			obj, ok := element.(map[string]any)
			if !ok {
				failures = append(failures, Failure{
					RecordID: id,
					Err:      fmt.Errorf("element %d is not an object", i),
				})
				continue
			}
			draft, err := extractDraft(obj)
			if err != nil {
				failures = append(failures, Failure{
					RecordID: id,
					Err:      fmt.Errorf("element %d: %w", i, err),
				})
				continue
			}
			records = append(records, relay.Record{ID: id, Draft: draft})
		}
		return records, failures, nil
	case map[string]any:
		draft, err := extractDraft(v)
		if err != nil {
			return nil, nil, fmt.Errorf("message %s: %w", baseID, err)
		}
		return []relay.Record{{ID: baseID, Draft: draft}}, nil, nil
	default:
		return nil, nil, fmt.Errorf("message %s is not a JSON object or array", baseID)
	}
}

// extractDraft unwraps the draft record from the shapes producers actually
// send: a bare record, {"payload": ...}, {"body": "<json>"} from HTTP
// front-ends, or a full event envelope {"detail": ..., "detail-type": ...}.
func extractDraft(event map[string]any) (validate.Record, error) {
	if payload, ok := event["payload"]; ok {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("payload key is not an object")
		}
		return obj, nil
	}

	if body, ok := event["body"]; ok {
		switch b := body.(type) {
		case string:
			var obj map[string]any
			if err := jsoncodec.Unmarshal([]byte(b), &obj); err != nil {
				return nil, fmt.Errorf("body is not a JSON object: %w", err)
			}
			return obj, nil
		case map[string]any:
			return b, nil
		default:
			return nil, fmt.Errorf("body key is not an object or string")
		}
	}

	if detail, ok := event["detail"]; ok {
		if _, typed := event["detail-type"]; typed {
			obj, ok := detail.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("detail key is not an object")
			}
			return obj, nil
		}
	}
	if detail, ok := event["Detail"]; ok {
		if _, typed := event["DetailType"]; typed {
			obj, ok := detail.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("Detail key is not an object")
			}
			return obj, nil
		}
	}

	// The whole event is the draft.
	return event, nil
}
