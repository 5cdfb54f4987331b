package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector feeds the request and error counters shown by the
// stats endpoint. The counters live on the App so they survive across
// middleware instances.
type MetricsCollector struct {
	requests *atomic.Int64
	errors   *atomic.Int64
}

func NewMetricsCollector(requests, errors *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{requests: requests, errors: errors}
}

// Middleware counts every request, and every response at or above 400.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)

		sr := record(w)
		next.ServeHTTP(sr, r)

		if sr.status >= http.StatusBadRequest {
			mc.errors.Add(1)
		}
	})
}
