package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, reg *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRegistry_ExposesProcessWideCollectors(t *testing.T) {
	reg := NewRegistry()
	ObserveRequest(Request{Method: http.MethodGet, Route: "/api/v1/notifications", Status: http.StatusOK, Duration: 20 * time.Millisecond})

	body := scrape(t, reg)
	for _, want := range []string{
		`learnhub_http_requests_total{method="GET",route="/api/v1/notifications",status="200"}`,
		"learnhub_http_request_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestRegistry_CustomCollector(t *testing.T) {
	reg := NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "learnhub_test_custom_total", Help: "test"})
	if err := reg.Register(counter); err != nil {
		t.Fatalf("Register: %v", err)
	}
	counter.Add(3)

	if !strings.Contains(scrape(t, reg), "learnhub_test_custom_total 3") {
		t.Fatal("custom counter missing from scrape output")
	}
	if !reg.Unregister(counter) {
		t.Fatal("expected Unregister to report removal")
	}
	if strings.Contains(scrape(t, reg), "learnhub_test_custom_total") {
		t.Fatal("unregistered counter still exposed")
	}
}

func TestRegistry_RejectsPromautoDuplicates(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "learnhub_http_requests_in_flight", Help: "dup"}))

	if _, err := reg.Gatherer().Gather(); err == nil {
		t.Fatal("expected gather to fail on a metric registered twice")
	}
}

func TestInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsInFlight)
	first := TrackInFlight()
	second := TrackInFlight()
	first()
	defer second()
	if got := testutil.ToFloat64(httpRequestsInFlight) - before; got != 1 {
		t.Fatalf("in flight delta = %v", got)
	}
}
