package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lemmylink/internal/metrics"
	"lemmylink/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	spanHTTPRequest = "http.request"

	metricHTTPRequests = "http_requests_total"
	metricHTTPDuration = "http_request_duration"
)

// Observability traces, times and logs every request served by the status server
func Observability(logger *logrus.Logger, reg *metrics.Registry) func(http.Handler) http.Handler {
	if reg == nil {
		reg = metrics.GetRegistry()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			clientIP := ClientIP(r)

			ctx, span := tracing.StartSpan(r.Context(), spanHTTPRequest,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", clientIP),
			)
			defer span.End()

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r.WithContext(ctx))

			duration := time.Since(start)
			status := strconv.Itoa(wrapper.statusCode)

			span.SetAttributes(
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			}

			labels := map[string]string{"method": r.Method, "endpoint": r.URL.Path, "status_code": status}
			reg.IncrementCounter(metricHTTPRequests, labels, "Requests served by the status server")
			reg.RecordTimer(metricHTTPDuration, duration, map[string]string{"endpoint": r.URL.Path}, "Status server request duration")

			level := logrus.DebugLevel
			if wrapper.statusCode >= 500 {
				level = logrus.ErrorLevel
			} else if wrapper.statusCode >= 400 {
				level = logrus.WarnLevel
			}

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"url":         r.URL.Path,
				"status_code": wrapper.statusCode,
				"duration_ms": duration.Milliseconds(),
				"remote_ip":   clientIP,
				"trace_id":    tracing.GetOtelTraceID(ctx),
			}).Log(level, "HTTP request completed")
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the remote address host
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWrapper captures the status code and body size
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}
