package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/rent-service/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Metrics records request counts and latency per route template and logs each request
func Metrics(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			log.WithFields(logrus.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
			}).Debug("Request handled")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
