package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"

	"github.com/learnhub/learnhub/pkg/observability/metrics"
)

func requestCount(t *testing.T, reg *metrics.Registry, method, route, status string) float64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "learnhub_http_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelsMatch(m, map[string]string{"method": method, "route": route, "status": status}) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, label := range m.GetLabel() {
		if v, ok := want[label.GetName()]; ok && v == label.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := metrics.NewRegistry()
	r := gin.New()
	r.Use(Metrics())
	r.PATCH("/api/v1/notifications/:id/read", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := requestCount(t, reg, http.MethodPatch, "/api/v1/notifications/:id/read", "204")
	for _, id := range []string{"n-1", "n-2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/v1/notifications/"+id+"/read", nil))
	}
	after := requestCount(t, reg, http.MethodPatch, "/api/v1/notifications/:id/read", "204")

	if after-before != 2 {
		t.Fatalf("expected 2 requests under the route template, got %v", after-before)
	}
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := metrics.NewRegistry()
	r := gin.New()
	r.Use(Metrics())

	before := requestCount(t, reg, http.MethodGet, unmatchedRoute, "404")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	if got := requestCount(t, reg, http.MethodGet, unmatchedRoute, "404") - before; got != 1 {
		t.Fatalf("expected unmatched request to be counted once, got %v", got)
	}
}
