package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	debugKey       contextKey = "debug"
	idempotencyKey contextKey = "idempotency_key"
)

// IdempotencyHeader is the request header that makes order creation replay-safe.
const IdempotencyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLen bounds the header value stored in Redis.
const MaxIdempotencyKeyLen = 255

// Debug marks every request so error responses may include stack traces.
func Debug(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), debugKey, enabled)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DebugFromContext reports whether the Debug middleware enabled debug output.
func DebugFromContext(ctx context.Context) bool {
	enabled, _ := ctx.Value(debugKey).(bool)
	return enabled
}

// IdempotencyKey validates the optional Idempotency-Key header and puts the
// trimmed value into the request context. Requests without the header pass
// through unchanged.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if len(key) > MaxIdempotencyKeyLen {
			writeError(w, http.StatusBadRequest, "idempotency key too long")
			return
		}
		for _, c := range key {
			if c < 0x21 || c > 0x7e {
				writeError(w, http.StatusBadRequest, "idempotency key must be printable ASCII")
				return
			}
		}

		ctx := context.WithValue(r.Context(), idempotencyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdempotencyKeyFromContext returns the validated key, or "" when absent.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey).(string)
	return key
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
