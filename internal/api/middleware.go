package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trading-gatewayv1/internal/logger"
)

type identityKey struct{}

// Identity is the caller identity carried on every request, parsed from the
// x-user-id and x-scopes headers set by the fronting proxy.
type Identity struct {
	UserID string
	Scopes []string
}

// HasScope reports whether the caller was granted the named scope.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IdentityFrom extracts the caller identity from the request context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithIdentity parses the x-user-id / x-scopes headers into the request
// context. Scopes are comma separated.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{UserID: r.Header.Get("x-user-id")}
		if raw := r.Header.Get("x-scopes"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					id.Scopes = append(id.Scopes, s)
				}
			}
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithRequestID mints a request ID for each inbound call and puts it on the
// context for log correlation.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("x-request-id")
		if id == "" {
			id = logger.NewRequestID()
		}
		w.Header().Set("x-request-id", id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs each request's method, path, and duration.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("took", time.Since(start)),
			}
			attrs = append(attrs, logger.WithRequest(r.Context())...)
			log.Info("request", attrs...)
		})
	}
}
