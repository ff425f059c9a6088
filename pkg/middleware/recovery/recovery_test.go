package recovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/middleware/requestid"
	"github.com/learnhub/learnhub/pkg/middleware/testutil"
)

func TestRecovery_PanicBecomesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &testutil.MockLogger{}
	r := gin.New()
	r.Use(requestid.RequestID(), Recovery(mock))
	r.GET("/panic", func(c *gin.Context) { panic("nil map write") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body controller.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != controller.CodeInternal || body.Error.RequestID != "req-9" {
		t.Fatalf("unexpected envelope: %+v", body)
	}

	entry, ok := mock.Find("panic recovered")
	if !ok {
		t.Fatal("expected panic log entry")
	}
	if entry.Fields["panic"] != "nil map write" {
		t.Fatalf("panic field = %v", entry.Fields["panic"])
	}
	if stack, _ := entry.Fields["stack"].(string); stack == "" {
		t.Fatal("expected stack trace")
	}
}

func TestRecovery_PassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &testutil.MockLogger{}
	r := gin.New()
	r.Use(Recovery(mock))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Code != http.StatusNoContent || len(mock.Entries()) != 0 {
		t.Fatalf("status=%d entries=%d", rec.Code, len(mock.Entries()))
	}
}
