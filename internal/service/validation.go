package service

import (
	"errors"
	"issue-map/internal/errs"
	"issue-map/internal/model"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat >= -90 && lat <= 90
	})
	_ = validate.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		lng := fl.Field().Float()
		return lng >= -180 && lng <= 180
	})
	_ = validate.RegisterValidation("issue_type", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	return validate
}

// validationError turns the first failed rule into a message fit for the {"error": ...} body.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.Invalid("invalid request: %v", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Category":
		return errs.Invalid("Invalid issue type")
	case "Latitude", "Longitude":
		return errs.Invalid("Invalid coordinates")
	default:
		return errs.Invalid("Invalid %s", fe.Field())
	}
}
