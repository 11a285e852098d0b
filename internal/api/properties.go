package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
	"landlordpay/server/internal/units"
)

type CreatePropertyRequest struct {
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name" binding:"required"`
	Location      string          `json:"location" binding:"required"`
	Type          string          `json:"type" binding:"required,propertytype"`
	NumUnits      int             `json:"num_units" binding:"omitempty,min=1"`
	NumFloors     int             `json:"num_floors" binding:"omitempty,min=1"`
	UnitsPerFloor int             `json:"units_per_floor" binding:"omitempty,min=1,max=99"`
	GroundUnits   int             `json:"ground_units" binding:"omitempty,min=0,max=99"`
	DefaultRent   decimal.Decimal `json:"default_rent"`
	UnitType      string          `json:"unit_type"`
}

type UpdateUnitRequest struct {
	Rent *decimal.Decimal `json:"rent"`
	Type *string          `json:"type" binding:"omitempty,min=1"`
}

type UnitDetail struct {
	Unit     *models.Unit     `json:"unit"`
	Tenant   *models.Tenant   `json:"tenant"`
	Payments []models.Payment `json:"payments"`
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	p, err := database.NewProperty(database.PropertyInput{
		OwnerID:  req.OwnerID,
		Name:     req.Name,
		Location: req.Location,
		Type:     models.PropertyType(req.Type),
		NumUnits: req.NumUnits,
		Layout: units.Layout{
			Floors:        req.NumFloors,
			UnitsPerFloor: req.UnitsPerFloor,
			GroundUnits:   req.GroundUnits,
		},
		DefaultRent: req.DefaultRent,
		UnitType:    req.UnitType,
	})
	if err != nil {
		h.handleError(c, err, "Failed to create property")
		return
	}

	if err := h.db.CreateProperty(c.Request.Context(), p); err != nil {
		h.handleError(c, err, "Failed to create property")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"property_id": p.ID,
		"units":       len(p.Units),
	}).Info("Created property")
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListProperties(c *gin.Context) {
	properties, err := h.db.ListProperties(c.Request.Context(), c.Query("owner_id"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch properties")
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetProperty(c *gin.Context) {
	detail, err := h.db.GetPropertyDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch property")
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	if err := h.db.DeleteProperty(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err, "Failed to delete property")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetUnit looks a unit up by its label and returns the occupying tenant, if any,
// with the unit's payment history.
func (h *Handler) GetUnit(c *gin.Context) {
	ctx := c.Request.Context()
	unit, tenant, err := h.db.FindUnitTenant(ctx, c.Param("id"), c.Param("label"))
	vacant := unit != nil && errors.Is(err, ledger.ErrNotFound)
	if err != nil && !vacant {
		h.handleError(c, err, "Failed to fetch unit")
		return
	}

	history, err := h.db.ListUnitPayments(ctx, unit.ID)
	if err != nil {
		h.handleError(c, err, "Failed to fetch unit payments")
		return
	}
	c.JSON(http.StatusOK, UnitDetail{Unit: unit, Tenant: tenant, Payments: history})
}

func (h *Handler) UpdateUnit(c *gin.Context) {
	var req UpdateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if req.Rent != nil && req.Rent.IsNegative() {
		respondError(c, http.StatusBadRequest, ErrCodeValidation, ledger.ErrInvalidAmount.Error())
		return
	}

	unit, err := h.db.UpdateUnit(c.Request.Context(), c.Param("id"), database.UnitUpdate{Rent: req.Rent, Type: req.Type})
	if err != nil {
		h.handleError(c, err, "Failed to update unit")
		return
	}
	c.JSON(http.StatusOK, unit)
}
