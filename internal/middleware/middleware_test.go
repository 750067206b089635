package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coffee-order/api/internal/middleware"
)

func TestDebug_SetsFlag(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		var got bool
		handler := middleware.Debug(enabled)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = middleware.DebugFromContext(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		if got != enabled {
			t.Errorf("debug: got %v, want %v", got, enabled)
		}
	}
}

func TestDebugFromContext_Default(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if middleware.DebugFromContext(req.Context()) {
		t.Error("debug should default to false")
	}
}

func TestIdempotencyKey_Valid(t *testing.T) {
	var got string
	handler := middleware.IdempotencyKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.IdempotencyKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set(middleware.IdempotencyHeader, "  order-7f3a  ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got != "order-7f3a" {
		t.Errorf("key: got %q, want %q", got, "order-7f3a")
	}
}

func TestIdempotencyKey_Absent(t *testing.T) {
	called := false
	handler := middleware.IdempotencyKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if k := middleware.IdempotencyKeyFromContext(r.Context()); k != "" {
			t.Errorf("expected empty key, got %q", k)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))

	if !called {
		t.Error("handler should be called without a key")
	}
}

func TestIdempotencyKey_Rejected(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"too long", strings.Repeat("k", middleware.MaxIdempotencyKeyLen+1)},
		{"inner space", "abc def"},
		{"non ascii", "clé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.IdempotencyKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest("POST", "/", nil)
			req.Header.Set(middleware.IdempotencyHeader, tt.key)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if !strings.Contains(rr.Body.String(), `"success":false`) {
				t.Errorf("expected error envelope, got %s", rr.Body.String())
			}
		})
	}
}
