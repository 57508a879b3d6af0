package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/ingestwatch/internal/alerting"
)

// AlertsHandler exposes the polled alert check.
type AlertsHandler struct {
	monitor *alerting.Monitor
}

func NewAlertsHandler(monitor *alerting.Monitor) *AlertsHandler {
	return &AlertsHandler{monitor: monitor}
}

// Check handles POST /api/alerts/check: one polled check, run now.
//
// Status Codes:
//   - 200 OK → alerting.CheckResult
//   - 500 Internal Server Error → the resource listing failed
func (h *AlertsHandler) Check(c *gin.Context) {
	res, err := h.monitor.CheckAll(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
