package middleware

import (
	"net/http"

	"github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/pkg/logger"

	"github.com/google/uuid"
)

// RequestID propagates X-Trace-ID, minting one when the caller sent none.
// The id lands on the context logger and on the plain context for services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}

		ctx := internal.ContextWithTraceID(r.Context(), traceID)
		ctx = logger.With(ctx, "trace_id", traceID)

		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
