package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/shared/telemetry"
)

// Context keys handlers set so the request log carries pipeline details.
const (
	LogKeyAnalysisID = "analysisId"
	LogKeyStrategy   = "extractionStrategy"
	LogKeyModel      = "model"
	LogKeyPayload    = "payloadKind"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if isGuest, ok := c.Get(isGuestKey); ok {
			fields["is_guest"] = isGuest
		}
		for key, field := range map[string]string{
			LogKeyAnalysisID: "analysis_id",
			LogKeyStrategy:   "extraction_strategy",
			LogKeyModel:      "model",
			LogKeyPayload:    "payload_kind",
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}

		telemetry.Info("request.complete", fields)
	}
}
