package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/payments"
	"landlordpay/server/internal/queue"
)

type RecordPaymentRequest struct {
	TenantID string          `json:"tenant_id" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type AccrueRentRequest struct {
	Period string `json:"period" binding:"omitempty,datetime=2006-01"`
}

// callbackTimeout bounds how long a callback is applied once the gateway has
// delivered it, whether or not the gateway is still connected.
const callbackTimeout = 30 * time.Second

// callbackAck is returned for every gateway callback so the gateway stops redelivering.
var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

func (h *Handler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	receipt, err := h.payments.RecordManualPayment(c.Request.Context(), req.TenantID, req.Amount)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError && payments.IsRetryable(err) {
			h.logger.WithError(err).WithField("tenant_id", req.TenantID).Error("Failed to record payment")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "payment could not be stored, try again",
				"code":      ErrCodeUnavailable,
				"retryable": true,
			})
			return
		}
		respondError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// MpesaCallback reconciles an STK push result. The gateway always gets an
// acknowledgement; store failures are queued for retry instead of being bounced.
func (h *Handler) MpesaCallback(c *gin.Context) {
	var payload payments.STKCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(err).Warn("Unreadable M-Pesa callback")
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	cb, err := payload.ToCallback()
	if err != nil {
		h.logger.WithError(err).WithField("checkout_id", payload.Body.StkCallback.CheckoutRequestID).Warn("Malformed M-Pesa callback")
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	fields := logrus.Fields{
		"checkout_id": cb.CheckoutID,
		"receipt":     cb.ReceiptID,
		"reference":   cb.AccountReference,
	}

	// The gateway may hang up before the reply; the payment is still applied.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), callbackTimeout)
	defer cancel()

	_, err = h.payments.ApplyExternalCallback(ctx, cb)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrPaymentFailed):
		h.logger.WithFields(fields).WithField("result_code", cb.ResultCode).Info("M-Pesa payment not completed")
	case errors.Is(err, ledger.ErrDuplicateReceipt):
		h.logger.WithFields(fields).Info("Ignoring redelivered M-Pesa callback")
	case payments.IsRetryable(err):
		h.logger.WithError(err).WithFields(fields).Error("Failed to apply M-Pesa callback, queuing retry")
		if qerr := h.retries.Push(queue.Item{Callback: cb, LastError: err.Error()}); qerr != nil {
			h.logger.WithError(qerr).WithFields(fields).Error("Dropped M-Pesa callback")
		}
	default:
		h.logger.WithError(err).WithFields(fields).Warn("Rejected M-Pesa callback")
	}

	c.JSON(http.StatusOK, callbackAck)
}

func (h *Handler) ListPayments(c *gin.Context) {
	records, err := h.db.ListPayments(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		h.handleError(c, err, "Failed to fetch payments")
		return
	}
	c.JSON(http.StatusOK, records)
}

// AccrueRent charges rent for a period on demand. The period defaults to the current month.
func (h *Handler) AccrueRent(c *gin.Context) {
	var req AccrueRentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.bindError(c, err)
			return
		}
	}

	result, err := h.payments.AccrueRent(c.Request.Context(), req.Period)
	if err != nil {
		h.handleError(c, err, "Failed to accrue rent")
		return
	}
	c.JSON(http.StatusOK, result)
}
