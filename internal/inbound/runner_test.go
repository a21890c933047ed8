package inbound

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/wrurelay/internal/envelope"
	"github.com/flowgate/wrurelay/internal/faults"
	"github.com/flowgate/wrurelay/internal/relay"
	"github.com/flowgate/wrurelay/internal/schema"
	"github.com/flowgate/wrurelay/internal/validate"
)

type stubResolver struct {
	def *schema.Definition
	err error
}

func (s *stubResolver) Resolve(context.Context, schema.Identifier) (*schema.Definition, error) {
	return s.def, s.err
}

func (s *stubResolver) Invalidate(schema.Identifier) {}

type stubEmitter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (s *stubEmitter) Emit(context.Context, envelope.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.count++
	return "evt-1", nil
}

type stubReporter struct {
	mu      sync.Mutex
	reports []string
}

func (s *stubReporter) Report(_ context.Context, recordID string, _ schema.Identifier, _ validate.Record, _ []validate.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, recordID)
}

func testRunner(t *testing.T, resolver relay.SchemaResolver, emitter relay.EventEmitter) (*Runner, *stubReporter) {
	t.Helper()
	contract := schema.Identifier{RegistryName: "discovered-schemas", SchemaName: "WorkflowRunUpdate"}
	reporter := &stubReporter{}
	handler, err := relay.NewHandler(relay.Deps{
		Resolver:  resolver,
		Validator: validate.New(false),
		Emitter:   emitter,
		Reporter:  reporter,
		Logger:    slog.New(slog.DiscardHandler),
		Contract:  contract,
		Source:    "orcabus.executionhandler",
	})
	require.NoError(t, err)
	return NewRunner(nil, handler, reporter, contract, slog.New(slog.DiscardHandler)), reporter
}

func runnerDefinition(t *testing.T) *schema.Definition {
	t.Helper()
	def, err := schema.NewDefinition("WorkflowRunUpdate", []schema.Field{
		{Name: "status", Required: true, Type: schema.TypeEnum, Enum: []string{"RUNNING"}},
		{Name: "workflowRunId", Required: true, Type: schema.TypeString},
	})
	require.NoError(t, err)
	return def
}

func isAcked(msg *message.Message) bool {
	select {
	case <-msg.Acked():
		return true
	default:
		return false
	}
}

func isNacked(msg *message.Message) bool {
	select {
	case <-msg.Nacked():
		return true
	default:
		return false
	}
}

func TestHandleMessage_AcksEmittedRecord(t *testing.T) {
	emitter := &stubEmitter{}
	r, reporter := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`{"workflowRunId": "wru.1", "status": "RUNNING"}`))
	r.handleMessage(msg)

	assert.True(t, isAcked(msg))
	assert.False(t, isNacked(msg))
	assert.Equal(t, 1, emitter.count)
	assert.Empty(t, reporter.reports)
}

func TestHandleMessage_AcksRejectedRecord(t *testing.T) {
	emitter := &stubEmitter{}
	r, reporter := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`{"workflowRunId": "wru.1", "status": "BOGUS"}`))
	r.handleMessage(msg)

	assert.True(t, isAcked(msg), "rejections are final, never redriven")
	assert.Equal(t, 0, emitter.count)
	assert.Equal(t, []string{"msg-1"}, reporter.reports)
}

func TestHandleMessage_NacksTransientFailure(t *testing.T) {
	emitter := &stubEmitter{err: faults.ErrBusUnavailable}
	r, _ := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`{"workflowRunId": "wru.1", "status": "RUNNING"}`))
	r.handleMessage(msg)

	assert.True(t, isNacked(msg))
	assert.False(t, isAcked(msg))
}

func TestHandleMessage_NacksWhenAnyRecordIsTransient(t *testing.T) {
	emitter := &stubEmitter{err: faults.ErrBusUnavailable}
	r, _ := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`[
		{"workflowRunId": "wru.1", "status": "BOGUS"},
		{"workflowRunId": "wru.2", "status": "RUNNING"}
	]`))
	r.handleMessage(msg)

	assert.True(t, isNacked(msg))
}

func TestHandleMessage_BadElementDoesNotDropSiblings(t *testing.T) {
	emitter := &stubEmitter{}
	r, reporter := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`[
		{"workflowRunId": "wru.1", "status": "RUNNING"},
		"junk",
		{"workflowRunId": "wru.3", "status": "RUNNING"}
	]`))
	r.handleMessage(msg)

	assert.True(t, isAcked(msg))
	assert.Equal(t, 2, emitter.count, "decodable siblings still get emitted")
	assert.Equal(t, []string{"msg-1/1"}, reporter.reports, "only the bad element is reported")
}

func TestHandleMessage_AcksUndecodableMessage(t *testing.T) {
	emitter := &stubEmitter{}
	r, reporter := testRunner(t, &stubResolver{def: runnerDefinition(t)}, emitter)

	msg := message.NewMessage("msg-1", []byte(`not json at all`))
	r.handleMessage(msg)

	assert.True(t, isAcked(msg), "garbage cannot be fixed by redelivery")
	assert.Equal(t, 0, emitter.count)
	require.Equal(t, []string{"msg-1"}, reporter.reports)
}
