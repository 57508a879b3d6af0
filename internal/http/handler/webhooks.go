package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/edirooss/ingestwatch/internal/alerting"
	"github.com/edirooss/ingestwatch/internal/metrics"
	"github.com/edirooss/ingestwatch/pkg/jsonx"
)

// WebhooksHandler receives pushed pipeline events.
//
//   - POST /api/webhooks/:service → alerting.Result
//   - GET  /api/webhooks/health   → alerting.Status
type WebhooksHandler struct {
	log     *zap.Logger
	monitor *alerting.Monitor
	limiter *rate.Limiter
}

// NewWebhooksHandler shares one token bucket of ratePerSec/burst across
// every webhook source.
func NewWebhooksHandler(log *zap.Logger, monitor *alerting.Monitor, ratePerSec float64, burst int) *WebhooksHandler {
	if burst <= 0 {
		burst = 1
	}
	return &WebhooksHandler{
		log:     log.Named("webhooks"),
		monitor: monitor,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Push returns the handler for one source ("streamlive", "streamlink").
//
// Status Codes:
//   - 200 OK → processed, suppressed or ignored
//   - 400 Bad Request → unreadable or malformed payload
//   - 401 Unauthorized → bad signature or expired timestamp
//   - 429 Too Many Requests
func (h *WebhooksHandler) Push(source string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.limiter.Allow() {
			metrics.WebhookRequests.WithLabelValues(source, "limited").Inc()
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, alerting.Result{Success: false, Error: "rate limited"})
			return
		}

		body, err := jsonx.ReadBody(c.Request.Body, jsonx.DefaultBodyLimit)
		if err != nil {
			metrics.WebhookRequests.WithLabelValues(source, "malformed").Inc()
			c.Error(err)
			c.JSON(http.StatusBadRequest, alerting.Result{Success: false, Error: err.Error()})
			return
		}

		res := h.monitor.HandleWebhook(c.Request.Context(), source, body)
		if res.Err != nil {
			c.Error(res.Err)
		}
		c.JSON(webhookStatus(res), res)
	}
}

func webhookStatus(res alerting.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Err, alerting.ErrBadSignature), errors.Is(res.Err, alerting.ErrTimestampExpired):
		return http.StatusUnauthorized
	case errors.Is(res.Err, alerting.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Health handles GET /api/webhooks/health.
func (h *WebhooksHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"monitor": h.monitor.Status(),
	})
}
