package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.db.GetRentSummary(c.Request.Context(), time.Now())
	if err != nil {
		h.handleError(c, err, "Failed to fetch summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetPaymentsTrend(c *gin.Context) {
	trend, err := h.db.GetPaymentsTrend(c.Request.Context(), time.Now(), queryInt(c, "months", 6))
	if err != nil {
		h.handleError(c, err, "Failed to fetch payments trend")
		return
	}
	c.JSON(http.StatusOK, trend)
}

// ListArrears lists active tenants with an outstanding balance, largest first.
func (h *Handler) ListArrears(c *gin.Context) {
	tenants, err := h.db.ListArrears(c.Request.Context(), c.Query("property_id"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch arrears")
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	notifications, err := h.db.ListNotifications(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		h.handleError(c, err, "Failed to fetch notifications")
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) NotificationStream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
