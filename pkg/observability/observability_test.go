package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_NilConfigIsNoop(t *testing.T) {
	m, err := NewManager(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, m.TracingEnabled())
	assert.False(t, m.MetricsEnabled())
	assert.Nil(t, m.Tracer())
	assert.Nil(t, m.Metrics())
}

func TestNewManager_MetricsEnabled(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, m.MetricsEnabled())

	// Labelled metrics appear in a scrape only once a series has been recorded.
	m.Metrics().RecordAgentCall("erp", "specialist", time.Millisecond)

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bestboxd_agent_calls_total")
}

func TestNewManager_TracingStdoutRoundTrip(t *testing.T) {
	cfg := &Config{Tracing: TracingConfig{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 1.0,
		ServiceName:  "bestboxd-test",
	}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, m.TracingEnabled())

	_, span := m.Tracer().StartSpecialistTurn(context.Background(), "erp", "thread-1", "turn-1", "user-1")
	span.End()

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestTracer_DebugExporterCapturesSpans(t *testing.T) {
	debug := NewDebugExporter()
	tracer, err := NewTracer(context.Background(), &TracingConfig{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 1.0,
		ServiceName:  "bestboxd-test",
	}, WithDebugExporter(debug))
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.StartToolExecution(context.Background(), "erp_count_purchase_orders", "erp:read", "call-1")
	span.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
	assert.Equal(t, 1, debug.Count())
	assert.Len(t, debug.GetSpansByName(SpanToolExecution), 1)
}

func TestTracer_PayloadCaptureOptIn(t *testing.T) {
	tracer, err := NewTracer(context.Background(), &TracingConfig{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 1.0,
		ServiceName:  "bestboxd-test",
	}, WithCapturePayloads(true))
	require.NoError(t, err)

	_, span := tracer.StartLLMCall(context.Background(), "qwen2.5-14b", 2048, 0.2)
	tracer.AddPayload(span, `{"prompt":"hi"}`, `{"text":"hello"}`)
	span.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()
	assert.False(t, m.TracingEnabled())
	assert.False(t, m.MetricsEnabled())
	assert.Equal(t, DefaultMetricsPath, m.MetricsEndpoint())
}

func TestNoopMetricsSatisfiesRecorder(t *testing.T) {
	var rec Recorder = NoopMetrics{}
	rec.RecordAgentCall("erp", "specialist", 10*time.Millisecond)
	rec.RecordRetrieval("erp", 5*time.Millisecond, 3)
	rec.RecordHTTPRequest(http.MethodPost, "/v1/chat/completions", http.StatusOK, 20*time.Millisecond, 100, 200)

	rec2 := httptest.NewRecorder()
	NoopMetrics{}.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec2.Code)
}

func TestMetrics_RecordAgentAndToolCalls(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.RecordAgentCall("erp", "specialist", 15*time.Millisecond)
	metrics.RecordToolCall("erp_count_purchase_orders", 5*time.Millisecond)
	metrics.RecordRetrieval("crm", 8*time.Millisecond, 4)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// Nil-safe: recording on a disabled Metrics must never panic.
	metrics.RecordAgentCall("erp", "specialist", time.Millisecond)
}
