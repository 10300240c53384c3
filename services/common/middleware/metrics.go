package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"go.uber.org/zap"
)

const metricsPushTimeout = 5 * time.Second

// MetricsMiddleware sends one batch per request: a count, the latency and an
// error count by class. The batch is pushed from a goroutine after the
// response is written.
func MetricsMiddleware(recorder awspkg.MetricsRecorder, serviceName string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil || !recorder.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		data := requestMetrics(c.Writer.Status(), time.Since(start), map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Route":   route,
		})

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
			defer cancel()
			if err := recorder.Record(ctx, data...); err != nil {
				log.Debug("Failed to push request metrics", zap.String("route", route), zap.Error(err))
			}
		}()
	}
}

func requestMetrics(status int, elapsed time.Duration, dims map[string]string) []awspkg.Datum {
	dims["Status"] = statusClass(status)
	data := []awspkg.Datum{
		awspkg.Count(awspkg.MetricHTTPRequests, dims),
		awspkg.Latency(awspkg.MetricHTTPLatency, elapsed, dims),
	}
	switch {
	case status >= 500:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors, dims), awspkg.Count(awspkg.MetricHTTP5xx, dims))
	case status >= 400:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors, dims), awspkg.Count(awspkg.MetricHTTP4xx, dims))
	}
	return data
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
