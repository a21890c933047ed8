package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const draftSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"workflowRunId": {"type": "string"},
		"status": {"type": "string", "enum": ["DRAFT", "QUEUED", "RUNNING", "SUCCEEDED", "FAILED"]},
		"attempt": {"type": "integer"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"context": {
			"type": "object",
			"properties": {
				"portalRunId": {"type": "string"}
			},
			"required": ["portalRunId"]
		}
	},
	"required": ["workflowRunId", "status"]
}`

func TestParse_JSONSchema(t *testing.T) {
	def, err := Parse("WorkflowRunUpdate", ContentJSONSchemaDraft7, []byte(draftSchema))
	require.NoError(t, err)
	assert.Equal(t, "WorkflowRunUpdate", def.Name())

	status, ok := def.Field("status")
	require.True(t, ok)
	assert.True(t, status.Required)
	assert.Equal(t, TypeEnum, status.Type)
	assert.Equal(t, []string{"DRAFT", "QUEUED", "RUNNING", "SUCCEEDED", "FAILED"}, status.Enum)

	attempt, ok := def.Field("attempt")
	require.True(t, ok)
	assert.False(t, attempt.Required)
	assert.Equal(t, TypeNumber, attempt.Type)

	tags, ok := def.Field("tags")
	require.True(t, ok)
	assert.Equal(t, TypeArray, tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, TypeString, tags.Items.Type)

	nested, ok := def.Field("context")
	require.True(t, ok)
	assert.Equal(t, TypeObject, nested.Type)
	require.Len(t, nested.Fields, 1)
	assert.Equal(t, "portalRunId", nested.Fields[0].Name)
	assert.True(t, nested.Fields[0].Required)
}

func TestParse_FieldOrderIsDeterministic(t *testing.T) {
	def, err := Parse("WorkflowRunUpdate", ContentJSONSchemaDraft7, []byte(draftSchema))
	require.NoError(t, err)

	var names []string
	for _, f := range def.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"attempt", "context", "status", "tags", "workflowRunId"}, names)
}

func TestParse_UnwrapsEventEnvelope(t *testing.T) {
	// Discovered schemas describe the full event; the contract lives under
	// "detail".
	doc := `{
		"type": "object",
		"properties": {
			"source": {"type": "string"},
			"detail-type": {"type": "string"},
			"detail": {
				"type": "object",
				"properties": {
					"workflowRunId": {"type": "string"},
					"status": {"type": "string", "enum": ["RUNNING"]}
				},
				"required": ["workflowRunId", "status"]
			}
		},
		"required": ["source", "detail"]
	}`
	def, err := Parse("WorkflowRunUpdate", ContentJSONSchemaDraft4, []byte(doc))
	require.NoError(t, err)

	_, hasSource := def.Field("source")
	assert.False(t, hasSource)
	runID, ok := def.Field("workflowRunId")
	require.True(t, ok)
	assert.True(t, runID.Required)
}

func TestParse_OpenAPI(t *testing.T) {
	doc := `{
		"openapi": "3.0.0",
		"components": {
			"schemas": {
				"AWSEvent": {
					"type": "object",
					"properties": {
						"detail": {"$ref": "#/components/schemas/WorkflowRunUpdate"},
						"detail-type": {"type": "string"},
						"source": {"type": "string"}
					},
					"required": ["detail"]
				},
				"WorkflowRunUpdate": {
					"type": "object",
					"properties": {
						"workflowRunId": {"type": "string"},
						"status": {"type": "string", "enum": ["DRAFT", "RUNNING"]}
					},
					"required": ["workflowRunId", "status"]
				}
			}
		}
	}`
	def, err := Parse("WorkflowRunUpdate", ContentOpenAPI3, []byte(doc))
	require.NoError(t, err)

	// Probes "WorkflowRunUpdate" before "AWSEvent".
	runID, ok := def.Field("workflowRunId")
	require.True(t, ok)
	assert.Equal(t, TypeString, runID.Type)
	status, ok := def.Field("status")
	require.True(t, ok)
	assert.Equal(t, TypeEnum, status.Type)
}

func TestParse_OpenAPIFallsBackToFirstComponent(t *testing.T) {
	doc := `{
		"components": {
			"schemas": {
				"Zeta": {"type": "object", "properties": {"z": {"type": "string"}}},
				"Alpha": {"type": "object", "properties": {"a": {"type": "string"}}}
			}
		}
	}`
	def, err := Parse("Custom", ContentOpenAPI3, []byte(doc))
	require.NoError(t, err)

	_, ok := def.Field("a")
	assert.True(t, ok, "alphabetically first component should win")
}

func TestParse_OpenAPIWithoutComponents(t *testing.T) {
	_, err := Parse("Custom", ContentOpenAPI3, []byte(`{"openapi": "3.0.0"}`))
	require.Error(t, err)
}

func TestParse_UnsupportedContentType(t *testing.T) {
	_, err := Parse("Custom", "Avro", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestParse_NonObjectRoot(t *testing.T) {
	_, err := Parse("Custom", ContentJSONSchemaDraft7, []byte(`{"type": "array"}`))
	require.Error(t, err)
}

func TestParse_UnresolvedRef(t *testing.T) {
	doc := `{
		"components": {
			"schemas": {
				"Event": {
					"type": "object",
					"properties": {"detail": {"$ref": "#/components/schemas/Missing"}}
				}
			}
		}
	}`
	_, err := Parse("Custom", ContentOpenAPI3, []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestParse_NonStringEnumMember(t *testing.T) {
	doc := `{"type": "object", "properties": {"level": {"enum": [1, 2]}}}`
	_, err := Parse("Custom", ContentJSONSchemaDraft7, []byte(doc))
	require.Error(t, err)
}
