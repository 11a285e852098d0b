package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
	"landlordpay/server/internal/payments"
)

// CreateTenantRequest assigns a tenant to a unit given either its id or its label.
type CreateTenantRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	UnitID     string `json:"unit_id" binding:"required_without=UnitLabel"`
	UnitLabel  string `json:"unit_label" binding:"omitempty,unitlabel"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"omitempty,email"`
	Phone      string `json:"phone" binding:"omitempty,e164"`
	// OpeningBalance defaults to one month's rent. It covers everything owed up to
	// and including the current period, so accrual starts with the next one.
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
}

func (h *Handler) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	unitID := req.UnitID
	if unitID == "" {
		unit, err := h.db.GetUnitByLabel(ctx, req.PropertyID, req.UnitLabel)
		if err != nil {
			h.handleError(c, err, "Failed to resolve unit")
			return
		}
		unitID = unit.ID
	}

	property, err := h.db.GetProperty(ctx, req.PropertyID)
	if err != nil {
		h.handleError(c, err, "Failed to fetch property")
		return
	}
	var rent decimal.Decimal
	found := false
	for _, u := range property.Units {
		if u.ID == unitID {
			rent, found = u.Rent, true
			break
		}
	}
	if !found {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "unit not found in property")
		return
	}

	balance := rent
	if req.OpeningBalance != nil {
		if req.OpeningBalance.IsNegative() {
			respondError(c, http.StatusBadRequest, ErrCodeValidation, "opening balance cannot be negative")
			return
		}
		balance = *req.OpeningBalance
	}

	tenant := &models.Tenant{
		PropertyID:    req.PropertyID,
		UnitID:        unitID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		RentAmount:    rent,
		Balance:       balance,
		PaymentStatus: ledger.DeriveStatus(balance, rent),
	}
	if err := h.db.CreateTenant(ctx, tenant, payments.Period(time.Now())); err != nil {
		h.handleError(c, err, "Failed to create tenant")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"unit":      tenant.UnitLabel,
	}).Info("Assigned tenant")
	c.JSON(http.StatusCreated, tenant)
}

// UpdateTenantRequest changes contact details only. Balances move through
// payments and rent accrual.
type UpdateTenantRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1"`
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone" binding:"omitempty,e164"`
}

func (h *Handler) ListTenants(c *gin.Context) {
	archived, _ := strconv.ParseBool(c.Query("archived"))
	filter := database.TenantFilter{PropertyID: c.Query("property_id"), Archived: archived}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := ledger.Status(strings.TrimSpace(s))
			switch status {
			case ledger.StatusPaid, ledger.StatusPartial, ledger.StatusUnpaid:
				filter.Statuses = append(filter.Statuses, status)
			default:
				respondError(c, http.StatusBadRequest, ErrCodeValidation, "unknown payment status: "+string(status))
				return
			}
		}
	}

	tenants, err := h.db.ListTenants(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err, "Failed to fetch tenants")
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (h *Handler) GetTenant(c *gin.Context) {
	tenant, err := h.db.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch tenant")
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) UpdateTenant(c *gin.Context) {
	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if req.Name == nil && req.Email == nil && req.Phone == nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidation, "nothing to update")
		return
	}

	tenant, err := h.db.UpdateTenantContact(c.Request.Context(), c.Param("id"), database.ContactUpdate{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.handleError(c, err, "Failed to update tenant")
		return
	}
	h.logger.WithField("tenant_id", tenant.ID).Info("Updated tenant contact")
	c.JSON(http.StatusOK, tenant)
}

// ArchiveTenant frees the unit. The tenant and their payments stay readable.
func (h *Handler) ArchiveTenant(c *gin.Context) {
	tenant, err := h.db.ArchiveTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to archive tenant")
		return
	}
	h.logger.WithField("tenant_id", tenant.ID).Info("Archived tenant")
	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) GetTenantPayments(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.db.GetTenant(ctx, c.Param("id")); err != nil {
		h.handleError(c, err, "Failed to fetch tenant")
		return
	}
	history, err := h.db.ListTenantPayments(ctx, c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch payments")
		return
	}
	c.JSON(http.StatusOK, history)
}
