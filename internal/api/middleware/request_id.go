package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/trustify/backend/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds a client-supplied id; longer ones are replaced.
const maxRequestIDLength = 128

// RequestID runs first in the chain so the id reaches access logs and problem responses.
// A client X-Request-ID is kept; otherwise a UUIDv7 is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.Must(uuid.NewV7()).String()
		}

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
