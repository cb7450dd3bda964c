package middleware

import (
	"net/http"
	"strconv"

	"github.com/zivra/zivra-custody/internal/metrics"
)

// Metrics records per-route request counts by status code class.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := r.Method + " " + r.URL.Path
		status := strconv.Itoa(rec.StatusCode/100) + "xx"
		metrics.HTTPRequests.WithLabelValues(route, status).Inc()
	})
}
