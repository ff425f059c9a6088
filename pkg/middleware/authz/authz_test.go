package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/controller"
)

// mockJWTValidator is a mock implementation of auth.JWTValidator for testing.
type mockJWTValidator struct {
	validateFunc func(ctx context.Context, token string) (*auth.Claims, error)
}

func (m *mockJWTValidator) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func newEngine(validator auth.JWTValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(validator))
	r.GET("/me", func(c *gin.Context) {
		ctxClaims := auth.GetClaims(c.Request.Context())
		if ctxClaims == nil || ctxClaims != Claims(c) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, ctxClaims.Subject)
	})
	r.POST("/admin", RequireRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAuthenticate(t *testing.T) {
	validator := &mockJWTValidator{validateFunc: func(_ context.Context, token string) (*auth.Claims, error) {
		switch token {
		case "admin-token":
			return &auth.Claims{Subject: "admin-1", Roles: []string{auth.RoleAdmin}}, nil
		case "user-token":
			return &auth.Claims{Subject: "user-1"}, nil
		default:
			return nil, auth.ErrInvalidToken
		}
	}}

	tests := []struct {
		name        string
		method      string
		path        string
		authHeader  string
		wantStatus  int
		wantMessage string
	}{
		{"missing header", http.MethodGet, "/me", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", http.MethodGet, "/me", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid authorization header format"},
		{"invalid token", http.MethodGet, "/me", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"valid token", http.MethodGet, "/me", "Bearer user-token", http.StatusOK, ""},
		{"non admin", http.MethodPost, "/admin", "Bearer user-token", http.StatusForbidden, "insufficient permissions"},
		{"admin", http.MethodPost, "/admin", "bearer admin-token", http.StatusNoContent, ""},
	}

	r := newEngine(validator)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantMessage == "" {
				return
			}
			var body controller.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message != tt.wantMessage {
				t.Fatalf("message = %q, want %q", body.Error.Message, tt.wantMessage)
			}
		})
	}
}

func TestRequireRole_WithoutAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RequireRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
