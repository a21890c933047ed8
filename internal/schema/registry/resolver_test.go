package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsschemas "github.com/aws/aws-sdk-go-v2/service/schemas"
	schemastypes "github.com/aws/aws-sdk-go-v2/service/schemas/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/wrurelay/internal/faults"
	"github.com/flowgate/wrurelay/internal/schema"
)

const registrySchema = `{
	"type": "object",
	"properties": {
		"workflowRunId": {"type": "string"},
		"status": {"type": "string", "enum": ["DRAFT", "RUNNING"]}
	},
	"required": ["workflowRunId", "status"]
}`

type fakeAPI struct {
	describeCalls int
	describeOut   *awsschemas.DescribeSchemaOutput
	describeErr   error

	listPages []*awsschemas.ListSchemasOutput
	listErr   error
	listCalls int
}

func (f *fakeAPI) DescribeSchema(_ context.Context, _ *awsschemas.DescribeSchemaInput, _ ...func(*awsschemas.Options)) (*awsschemas.DescribeSchemaOutput, error) {
	f.describeCalls++
	return f.describeOut, f.describeErr
}

func (f *fakeAPI) ListSchemas(_ context.Context, params *awsschemas.ListSchemasInput, _ ...func(*awsschemas.Options)) (*awsschemas.ListSchemasOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := f.listPages[f.listCalls]
	f.listCalls++
	if params.NextToken == nil && f.listCalls > 1 {
		return nil, errors.New("missing pagination token")
	}
	return page, nil
}

type countingMetrics struct {
	hits   int
	misses int
}

func (c *countingMetrics) SchemaCacheHit()  { c.hits++ }
func (c *countingMetrics) SchemaCacheMiss() { c.misses++ }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testIdentifier() schema.Identifier {
	return schema.Identifier{
		RegistryName: "discovered-schemas",
		SchemaName:   "orcabus.workflowmanager@WorkflowRunUpdate",
	}
}

func TestResolve_CachesDefinition(t *testing.T) {
	api := &fakeAPI{describeOut: &awsschemas.DescribeSchemaOutput{
		Content: aws.String(registrySchema),
		Type:    aws.String(schema.ContentJSONSchemaDraft4),
	}}
	counters := &countingMetrics{}
	r := New(api, testLogger(), WithCacheMetrics(counters))

	first, err := r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, api.describeCalls, "cache hit must not call the registry")
	assert.Equal(t, 1, counters.hits)
	assert.Equal(t, 1, counters.misses)

	_, ok := first.Field("workflowRunId")
	assert.True(t, ok)
}

func TestResolve_NotFound(t *testing.T) {
	api := &fakeAPI{describeErr: &smithy.GenericAPIError{
		Code:    "NotFoundException",
		Message: "schema not found",
	}}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrSchemaNotFound)
	assert.False(t, faults.Transient(err))
}

func TestResolve_RegistryUnavailable(t *testing.T) {
	api := &fakeAPI{describeErr: &smithy.GenericAPIError{
		Code:    "ServiceUnavailableException",
		Message: "try again",
	}}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrRegistryUnavailable)
	assert.True(t, faults.Transient(err))
}

func TestResolve_NonAPIErrorIsUnavailable(t *testing.T) {
	api := &fakeAPI{describeErr: errors.New("dial tcp: connection refused")}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	assert.ErrorIs(t, err, faults.ErrRegistryUnavailable)
}

func TestResolve_EmptyContentIsNotFound(t *testing.T) {
	api := &fakeAPI{describeOut: &awsschemas.DescribeSchemaOutput{Content: aws.String("")}}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	assert.ErrorIs(t, err, faults.ErrSchemaNotFound)
}

func TestResolve_UnparseableContentIsNotFound(t *testing.T) {
	api := &fakeAPI{describeOut: &awsschemas.DescribeSchemaOutput{
		Content: aws.String(`{"type": "array"}`),
		Type:    aws.String(schema.ContentJSONSchemaDraft4),
	}}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	assert.ErrorIs(t, err, faults.ErrSchemaNotFound)
}

func TestResolve_InlineFallback(t *testing.T) {
	api := &fakeAPI{describeErr: errors.New("registry down")}
	r := New(api, testLogger(), WithInlineSchema(registrySchema))

	def, err := r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)
	_, ok := def.Field("status")
	assert.True(t, ok)
}

func TestResolve_BuiltinFallback(t *testing.T) {
	api := &fakeAPI{describeErr: errors.New("registry down")}
	r := New(api, testLogger(), WithBuiltinFallback())

	def, err := r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)
	status, ok := def.Field("status")
	require.True(t, ok)
	assert.Contains(t, status.Enum, "SUCCEEDED")
}

func TestResolve_NoFallbackSurfacesError(t *testing.T) {
	api := &fakeAPI{describeErr: errors.New("registry down")}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	require.Error(t, err)
	assert.Equal(t, 1, api.describeCalls)
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	api := &fakeAPI{describeOut: &awsschemas.DescribeSchemaOutput{
		Content: aws.String(registrySchema),
		Type:    aws.String(schema.ContentJSONSchemaDraft4),
	}}
	r := New(api, testLogger())

	_, err := r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)
	r.Invalidate(testIdentifier())
	_, err = r.Resolve(context.Background(), testIdentifier())
	require.NoError(t, err)

	assert.Equal(t, 2, api.describeCalls)
}

func TestListSchemaNames_Paginates(t *testing.T) {
	api := &fakeAPI{listPages: []*awsschemas.ListSchemasOutput{
		{
			Schemas: []schemastypes.SchemaSummary{
				{SchemaName: aws.String("a")},
				{SchemaName: aws.String("b")},
			},
			NextToken: aws.String("page2"),
		},
		{
			Schemas: []schemastypes.SchemaSummary{
				{SchemaName: aws.String("c")},
			},
		},
	}}
	r := New(api, testLogger())

	names, err := r.ListSchemaNames(context.Background(), "discovered-schemas")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestListSchemaNames_Unavailable(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("registry down")}
	r := New(api, testLogger())

	_, err := r.ListSchemaNames(context.Background(), "discovered-schemas")
	assert.ErrorIs(t, err, faults.ErrRegistryUnavailable)
}
