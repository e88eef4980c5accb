package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/api/v1/health", 200, 100*time.Millisecond)
	m.RecordRequest("GET", "/api/v1/health", 200, 150*time.Millisecond)
	m.RecordRequest("GET", "/api/v1/health", 500, 50*time.Millisecond)

	// Request the metrics handler
	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "lecturehub_http_requests_total") {
		t.Error("expected lecturehub_http_requests_total metric")
	}
	if !strings.Contains(body, "lecturehub_http_request_duration_seconds") {
		t.Error("expected lecturehub_http_request_duration_seconds metric")
	}
}

func TestMetrics_WSConnections(t *testing.T) {
	m := New()

	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "lecturehub_websocket_connections_active 1") {
		t.Errorf("expected lecturehub_websocket_connections_active 1, got:\n%s", body)
	}
}

func TestMetrics_JobQueueLength(t *testing.T) {
	m := New()

	m.SetJobQueueLength(5)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "lecturehub_job_queue_length 5") {
		t.Errorf("expected lecturehub_job_queue_length 5, got:\n%s", body)
	}
}

func TestMetrics_Uptime(t *testing.T) {
	m := New()

	// Wait a bit to ensure uptime is > 0
	time.Sleep(10 * time.Millisecond)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, "lecturehub_uptime_seconds") {
		t.Error("expected lecturehub_uptime_seconds metric")
	}
}

func TestMetrics_EndpointNormalization(t *testing.T) {
	m := New()

	// These should be normalized to the same endpoint
	m.RecordRequest("GET", "/api/v1/lectures/123e4567-e89b-12d3-a456-426614174000", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "/api/v1/lectures/550e8400-e29b-41d4-a716-446655440000", 200, 10*time.Millisecond)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	// Should have normalized the UUID to {id}
	if !strings.Contains(body, "/api/v1/lectures/{id}") {
		t.Errorf("expected normalized endpoint /api/v1/lectures/{id}, got:\n%s", body)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrappedHandler := MetricsMiddleware(m)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	// Check that metrics were recorded
	metricsHandler := m.Handler()
	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsW := httptest.NewRecorder()

	metricsHandler(metricsW, metricsReq)

	body := metricsW.Body.String()

	if !strings.Contains(body, "/api/v1/test") {
		t.Errorf("expected endpoint /api/v1/test in metrics, got:\n%s", body)
	}
}

func TestMetrics_CustomCounter(t *testing.T) {
	m := New()

	m.IncCounter("jobs_processed")
	m.IncCounter("jobs_processed")
	m.IncCounter("jobs_failed")

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, `lecturehub_counter{name="jobs_processed"} 2`) {
		t.Errorf("expected jobs_processed counter = 2, got:\n%s", body)
	}
}

func TestMetrics_CustomGauge(t *testing.T) {
	m := New()

	m.SetGauge("active_workers", 3.0)

	handler := m.Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()

	if !strings.Contains(body, `lecturehub_gauge{name="active_workers"}`) {
		t.Errorf("expected active_workers gauge, got:\n%s", body)
	}
}
