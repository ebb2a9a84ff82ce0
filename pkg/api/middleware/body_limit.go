package middleware

import (
	"net/http"
)

// BodySizeLimit rejects requests whose declared body exceeds maxBytes and
// caps reads for the rest. Topology snapshots travel in every request body,
// so the limit bounds the largest analysable network.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
