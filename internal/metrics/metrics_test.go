package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordsReceived(3)
		m.RecordOutcome("emitted")
		m.SchemaCacheHit()
		m.SchemaCacheMiss()
		m.ObserveResolve(time.Millisecond)
		m.ObserveEmit(time.Millisecond)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordsReceived(2)
	m.RecordOutcome("emitted")
	m.RecordOutcome("rejected")
	m.SchemaCacheHit()
	m.ObserveEmit(5 * time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wrurelay_records_received_total 2")
	assert.Contains(t, body, `wrurelay_record_outcomes_total{status="emitted"} 1`)
	assert.Contains(t, body, `wrurelay_record_outcomes_total{status="rejected"} 1`)
	assert.Contains(t, body, "wrurelay_schema_cache_hits_total 1")
}
