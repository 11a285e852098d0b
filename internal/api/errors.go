package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/units"
)

const (
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeValidation         = "validation_error"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeDuplicateReceipt   = "duplicate_receipt"
	ErrCodeRowVersionConflict = "row_version_conflict"
	ErrCodeUnavailable        = "store_unavailable"
	ErrCodeInternal           = "internal_server_error"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

// classify maps a domain error to its HTTP status and error code. Unknown errors
// are reported as 500.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrReferenceParse),
		errors.Is(err, units.ErrInvalidLayout),
		errors.Is(err, units.ErrInvalidLabel),
		errors.Is(err, units.ErrLabelOutOfRange):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, ledger.ErrDuplicateReceipt):
		return http.StatusConflict, ErrCodeDuplicateReceipt
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, ErrCodeRowVersionConflict
	case errors.Is(err, database.ErrUnitOccupied), errors.Is(err, database.ErrPropertyOccupied):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// handleError writes the response for err and logs server side failures.
func (h *Handler) handleError(c *gin.Context, err error, message string) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error(message)
		respondError(c, status, code, message)
		return
	}
	respondError(c, status, code, err.Error())
}

// bindError reports a request body or query that failed binding or validation.
func (h *Handler) bindError(c *gin.Context, err error) {
	h.logger.WithError(err).WithField("path", c.FullPath()).Debug("Rejected request")
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondError(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	respondError(c, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid request body")
}
