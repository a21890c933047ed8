// Package validate judges draft records against a resolved schema definition
// and produces canonical records for emission. Validation is read-only on the
// draft; the canonical record is always a fresh value.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowgate/wrurelay/internal/jsoncodec"
	"github.com/flowgate/wrurelay/internal/schema"
)

// Record is an untyped, self-describing payload from an upstream producer.
type Record = map[string]any

// Violation describes one way a record fails its contract.
type Violation struct {
	// Path locates the offending field, e.g. "status" or "tags[2]".
	Path string `json:"fieldPath"`
	// Expected names the expected presence or type, e.g. "required",
	// "string", "enum member of [DRAFT QUEUED]".
	Expected string `json:"expected"`
	// Actual describes what was found instead.
	Actual string `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", v.Path, v.Expected, v.Actual)
}

// Result is the outcome of validating one record: either a canonical record
// with no violations, or at least one violation and no canonical record.
// Only Validator.Validate constructs Results, which maintains that invariant.
type Result struct {
	canonical  Record
	violations []Violation
}

func (r Result) Valid() bool { return len(r.violations) == 0 }

// Canonical returns the normalized record: exactly the declared fields that
// are present, nested shapes filtered the same way. Nil when invalid.
func (r Result) Canonical() Record { return r.canonical }

func (r Result) Violations() []Violation { return r.violations }

// CanonicalJSON returns deterministic bytes for the canonical record. The
// codec marshals map keys in sorted order, so two semantically equal records
// yield byte-identical output regardless of producer field order.
func (r Result) CanonicalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("record is invalid (%d violations)", len(r.violations))
	}
	return jsoncodec.Marshal(r.canonical)
}

// Validator checks records against definitions. Safe for concurrent use.
type Validator struct {
	strict bool
}

// New returns a Validator. In strict mode any field the definition does not
// declare is itself a violation; the default tolerates unknown fields for
// forward compatibility.
func New(strict bool) *Validator {
	return &Validator{strict: strict}
}

// Validate checks every required-presence and type rule in one pass and
// collects all violations rather than failing fast, so producers get the
// complete diagnostic.
func (v *Validator) Validate(def *schema.Definition, record Record) Result {
	var violations []Violation
	canonical := make(Record, len(def.Fields()))

	for _, field := range def.Fields() {
		value, present := record[field.Name]
		if !present {
			if field.Required {
				violations = append(violations, Violation{
					Path:     field.Name,
					Expected: "required",
					Actual:   "absent",
				})
			}
			continue
		}
		out, fieldViolations := checkValue(field.Name, field, value)
		if len(fieldViolations) > 0 {
			violations = append(violations, fieldViolations...)
			continue
		}
		canonical[field.Name] = out
	}

	if v.strict {
		for name := range record {
			if _, declared := def.Field(name); !declared {
				violations = append(violations, Violation{
					Path:     name,
					Expected: "declared field",
					Actual:   "unrecognized field",
				})
			}
		}
	}

	if len(violations) > 0 {
		return Result{violations: violations}
	}
	return Result{canonical: canonical}
}

// checkValue validates a single value against its field spec and returns the
// canonical form of the value.
func checkValue(path string, field schema.Field, value any) (any, []Violation) {
	switch field.Type {
	case schema.TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case schema.TypeNumber:
		// Numeric-looking strings are not numbers.
		switch n := value.(type) {
		case float64, int, int64, json.Number:
			return n, nil
		}
	case schema.TypeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case schema.TypeEnum:
		s, ok := value.(string)
		if !ok {
			break
		}
		for _, member := range field.Enum {
			if s == member {
				return s, nil
			}
		}
		return nil, []Violation{{
			Path:     path,
			Expected: fmt.Sprintf("enum member of [%s]", strings.Join(field.Enum, " ")),
			Actual:   describe(value),
		}}
	case schema.TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			break
		}
		return checkObject(path, field, obj)
	case schema.TypeArray:
		arr, ok := value.([]any)
		if !ok {
			break
		}
		return checkArray(path, field, arr)
	}

	return nil, []Violation{{
		Path:     path,
		Expected: expectedFor(field),
		Actual:   describe(value),
	}}
}

func checkObject(path string, field schema.Field, obj map[string]any) (any, []Violation) {
	if len(field.Fields) == 0 {
		// No declared shape: accept and carry the object through unchanged.
		return obj, nil
	}

	var violations []Violation
	canonical := make(map[string]any, len(field.Fields))
	for _, nested := range field.Fields {
		value, present := obj[nested.Name]
		nestedPath := path + "." + nested.Name
		if !present {
			if nested.Required {
				violations = append(violations, Violation{
					Path:     nestedPath,
					Expected: "required",
					Actual:   "absent",
				})
			}
			continue
		}
		out, nestedViolations := checkValue(nestedPath, nested, value)
		if len(nestedViolations) > 0 {
			violations = append(violations, nestedViolations...)
			continue
		}
		canonical[nested.Name] = out
	}
	if len(violations) > 0 {
		return nil, violations
	}
	return canonical, nil
}

func checkArray(path string, field schema.Field, arr []any) (any, []Violation) {
	if field.Items == nil {
		return arr, nil
	}
	var violations []Violation
	canonical := make([]any, 0, len(arr))
	for i, element := range arr {
		out, elemViolations := checkValue(fmt.Sprintf("%s[%d]", path, i), *field.Items, element)
		if len(elemViolations) > 0 {
			violations = append(violations, elemViolations...)
			continue
		}
		canonical = append(canonical, out)
	}
	if len(violations) > 0 {
		return nil, violations
	}
	return canonical, nil
}

func expectedFor(field schema.Field) string {
	if field.Type == schema.TypeEnum {
		return fmt.Sprintf("enum member of [%s]", strings.Join(field.Enum, " "))
	}
	return string(field.Type)
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", v)
	case bool:
		return fmt.Sprintf("boolean %v", v)
	case float64, int, int64, json.Number:
		return fmt.Sprintf("number %v", v)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}
