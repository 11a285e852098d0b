package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"landlordpay/server/internal/models"
	"landlordpay/server/internal/units"
)

var registerOnce sync.Once

// registerValidators adds the unitlabel and propertytype binding tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("unitlabel", validUnitLabel)
		_ = v.RegisterValidation("propertytype", validPropertyType)
	})
}

func validUnitLabel(fl validator.FieldLevel) bool {
	_, _, err := units.Parse(fl.Field().String())
	return err == nil
}

func validPropertyType(fl validator.FieldLevel) bool {
	switch models.PropertyType(fl.Field().String()) {
	case models.PropertyTypeFlat, models.PropertyTypeBungalow:
		return true
	default:
		return false
	}
}
