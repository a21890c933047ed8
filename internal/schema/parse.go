package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowgate/wrurelay/internal/jsoncodec"
)

// Registry content types the parser understands. The registry reports these
// alongside the document content.
const (
	ContentJSONSchemaDraft4 = "JSONSchemaDraft4"
	ContentJSONSchemaDraft7 = "JSONSchemaDraft7"
	ContentOpenAPI3         = "OpenApi3"
)

// Discovered full-event schemas nest the actual contract under a "detail"
// object; the relay validates bare records, so that level is unwrapped.
const detailField = "detail"

// Component keys probed, in order, when extracting the contract from an
// OpenAPI document.
var openAPIComponentKeys = []string{"Event", "WorkflowRunUpdate", "AWSEvent"}

type rawSchema struct {
	Type                 string               `json:"type"`
	Properties           map[string]rawSchema `json:"properties"`
	Required             []string             `json:"required"`
	Enum                 []any                `json:"enum"`
	Items                *rawSchema           `json:"items"`
	Ref                  string               `json:"$ref"`
	AdditionalProperties any                  `json:"additionalProperties"`
}

type openAPIDoc struct {
	Components struct {
		Schemas map[string]rawSchema `json:"schemas"`
	} `json:"components"`
}

// Parse converts a registry document into a Definition. JSON Schema documents
// (draft 4 and 7 are structurally identical for our purposes) are read
// directly; OpenAPI documents are probed for the main component schema. When
// the document describes a full event envelope, the nested "detail" shape
// becomes the contract.
func Parse(name, contentType string, content []byte) (*Definition, error) {
	switch contentType {
	case ContentJSONSchemaDraft4, ContentJSONSchemaDraft7, "":
		var doc rawSchema
		if err := jsoncodec.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("parse schema %q: %w", name, err)
		}
		return fromRaw(name, doc, nil)
	case ContentOpenAPI3:
		return parseOpenAPI(name, content)
	default:
		return nil, fmt.Errorf("parse schema %q: unsupported content type %q", name, contentType)
	}
}

func parseOpenAPI(name string, content []byte) (*Definition, error) {
	var doc openAPIDoc
	if err := jsoncodec.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi schema %q: %w", name, err)
	}
	components := doc.Components.Schemas
	if len(components) == 0 {
		return nil, fmt.Errorf("parse openapi schema %q: no component schemas", name)
	}

	for _, key := range openAPIComponentKeys {
		if root, ok := components[key]; ok {
			return fromRaw(name, root, components)
		}
	}

	// Fall back to the alphabetically first component so the choice is
	// deterministic.
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fromRaw(name, components[keys[0]], components)
}

func fromRaw(name string, root rawSchema, components map[string]rawSchema) (*Definition, error) {
	resolved, err := resolveRef(root, components, 0)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}
	if resolved.Type != "" && resolved.Type != "object" {
		return nil, fmt.Errorf("schema %q: root must be an object, got %q", name, resolved.Type)
	}

	// Unwrap the event envelope level of discovered schemas.
	if detail, ok := resolved.Properties[detailField]; ok {
		detail, err = resolveRef(detail, components, 0)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		if detail.Type == "object" || len(detail.Properties) > 0 {
			resolved = detail
		}
	}

	fields, err := fieldsFromRaw(resolved, components)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}
	return NewDefinition(name, fields)
}

func fieldsFromRaw(node rawSchema, components map[string]rawSchema) ([]Field, error) {
	required := make(map[string]bool, len(node.Required))
	for _, r := range node.Required {
		required[r] = true
	}

	names := make([]string, 0, len(node.Properties))
	for n := range node.Properties {
		names = append(names, n)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, n := range names {
		field, err := fieldFromRaw(n, node.Properties[n], components, 0)
		if err != nil {
			return nil, err
		}
		field.Required = required[n]
		fields = append(fields, field)
	}
	return fields, nil
}

const maxRefDepth = 16

func fieldFromRaw(name string, node rawSchema, components map[string]rawSchema, depth int) (Field, error) {
	if depth > maxRefDepth {
		return Field{}, fmt.Errorf("field %q: schema nesting too deep", name)
	}
	node, err := resolveRef(node, components, depth)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}

	field := Field{Name: name}

	if len(node.Enum) > 0 {
		field.Type = TypeEnum
		field.Enum = make([]string, 0, len(node.Enum))
		for _, m := range node.Enum {
			s, ok := m.(string)
			if !ok {
				return Field{}, fmt.Errorf("field %q: non-string enum member %v", name, m)
			}
			field.Enum = append(field.Enum, s)
		}
		return field, nil
	}

	switch node.Type {
	case "string":
		field.Type = TypeString
	case "number", "integer":
		field.Type = TypeNumber
	case "boolean":
		field.Type = TypeBoolean
	case "object", "":
		field.Type = TypeObject
		if len(node.Properties) > 0 {
			nested, err := fieldsFromRawNested(node, components, depth+1)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: %w", name, err)
			}
			field.Fields = nested
		}
	case "array":
		field.Type = TypeArray
		if node.Items != nil {
			item, err := fieldFromRaw(name+"[]", *node.Items, components, depth+1)
			if err != nil {
				return Field{}, err
			}
			field.Items = &item
		}
	default:
		return Field{}, fmt.Errorf("field %q: unsupported type %q", name, node.Type)
	}
	return field, nil
}

func fieldsFromRawNested(node rawSchema, components map[string]rawSchema, depth int) ([]Field, error) {
	required := make(map[string]bool, len(node.Required))
	for _, r := range node.Required {
		required[r] = true
	}
	names := make([]string, 0, len(node.Properties))
	for n := range node.Properties {
		names = append(names, n)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, n := range names {
		field, err := fieldFromRaw(n, node.Properties[n], components, depth)
		if err != nil {
			return nil, err
		}
		field.Required = required[n]
		fields = append(fields, field)
	}
	return fields, nil
}

const componentRefPrefix = "#/components/schemas/"

func resolveRef(node rawSchema, components map[string]rawSchema, depth int) (rawSchema, error) {
	for node.Ref != "" {
		if depth > maxRefDepth {
			return rawSchema{}, fmt.Errorf("reference chain too deep at %q", node.Ref)
		}
		if !strings.HasPrefix(node.Ref, componentRefPrefix) {
			return rawSchema{}, fmt.Errorf("unsupported reference %q", node.Ref)
		}
		key := strings.TrimPrefix(node.Ref, componentRefPrefix)
		target, ok := components[key]
		if !ok {
			return rawSchema{}, fmt.Errorf("unresolved reference %q", node.Ref)
		}
		node = target
		depth++
	}
	return node, nil
}
