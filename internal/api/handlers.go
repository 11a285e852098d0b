package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/notify"
	"landlordpay/server/internal/payments"
	"landlordpay/server/internal/queue"
)

type Handler struct {
	db       *database.Database
	payments *payments.Service
	retries  *queue.CallbackQueue
	hub      *notify.Hub
	logger   *logrus.Logger
}

func NewHandler(db *database.Database, svc *payments.Service, retries *queue.CallbackQueue, hub *notify.Hub, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:       db,
		payments: svc,
		retries:  retries,
		hub:      hub,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger.WithError(err).Error("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
