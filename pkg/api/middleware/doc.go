// Package middleware provides the HTTP middleware chain of the netimpact API.
//
// Every middleware has the shape func(http.Handler) http.Handler:
//
//   - recovery.go: panic recovery
//   - request_id.go: X-Request-ID propagation
//   - logging.go: structured access logs
//   - metrics.go: Prometheus request metrics, labelled by route pattern
//   - cors.go: Cross-Origin Resource Sharing
//   - security_headers.go: response hardening headers
//   - body_limit.go: request body size limit
//   - ratelimit.go: per-client token buckets
//
// Metrics must wrap the ServeMux directly so the matched route pattern is
// visible after the handler returns.
package middleware
