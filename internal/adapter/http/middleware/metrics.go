package middleware

import (
	"bufio"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/Temutjin2k/driver-engine/pkg/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// Hijack allows the responseWriter to implement the http.Hijacker interface
// It was a problem when using WebSockets with the metrics middleware in gorrilla/websocket
// because the websocket.Upgrader requires the ResponseWriter to implement http.Hijacker.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics middleware records HTTP metrics
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	serviceName := m.service
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint to avoid recursion
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		metrics.HttpRequestsInFlight.WithLabelValues(serviceName).Inc()
		defer metrics.HttpRequestsInFlight.WithLabelValues(serviceName).Dec()

		// Wrap response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default status
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		metrics.RecordHTTPMetrics(serviceName, r.Method, routeLabel(r.URL.Path), rw.statusCode, duration)
	})
}

var (
	uuidSegment  = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	monthSegment = regexp.MustCompile(`/\d{4}-\d{2}(/|$)`)
)

// routeLabel collapses ids and months so paths stay low-cardinality.
func routeLabel(path string) string {
	path = uuidSegment.ReplaceAllString(path, "/{id}")
	return monthSegment.ReplaceAllString(path, "/{month}$1")
}
