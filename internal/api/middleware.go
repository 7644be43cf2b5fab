package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openbooks-dev/openbooks/internal/security"
)

// OrganizationIDHeader carries the tenant identifier. The gateway in
// front of this service authenticates the caller and sets the header;
// the service trusts it and scopes every query by it.
const OrganizationIDHeader = "X-Organization-ID"

type orgIDKey struct{}

// RequireOrganization rejects requests without a tenant header and
// stores the organization ID on the request context.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := r.Header.Get(OrganizationIDHeader)
		if orgID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "missing_organization")
			return
		}
		ctx := context.WithValue(r.Context(), orgIDKey{}, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(orgIDKey{}).(string); ok {
		return v
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func RequestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			l.Info("http_request",
				"cid", security.CorrelationIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", dur.Milliseconds(),
			)
		})
	}
}

func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			cid := security.CorrelationIDFromContext(r.Context())
			org := orgIDFromContext(r.Context())
			payload := fmt.Sprintf("cid=%s org=%s method=%s path=%s status=%d dur_ms=%d",
				cid, org, r.Method, r.URL.Path, sw.status, dur.Milliseconds())
			a.Append(payload)
		})
	}
}
