package transport

import (
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// RegisterValidators adds the service request tags to val.
func RegisterValidators(val *validator.Validator) error {
	return val.RegisterValidation(StatusTag, func(fl playground.FieldLevel) bool {
		return domain.IsKnown(fl.Field().String())
	})
}
