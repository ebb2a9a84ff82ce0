package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

// Logging writes one access log line per request. Server errors log at
// error level, client errors at warn.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	log := logging.OrNop(logger).With(logging.Component("http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rec.statusCode),
				logging.Int("bytes", rec.bytesWritten),
				logging.Latency(time.Since(start)),
			}
			if id := GetRequestID(r); id != "" {
				fields = append(fields, logging.String("request_id", id))
			}
			switch {
			case rec.statusCode >= 500:
				log.Error("request", fields...)
			case rec.statusCode >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}
