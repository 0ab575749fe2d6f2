package validator

import (
	"errors"
	"fmt"
	"strings"

	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type RideValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRideValidator(log *logger.Logger) *RideValidator {
	v := validator.New()
	model.RegisterDecimal(v)

	log.Info("Ride validator initialized successfully")

	return &RideValidator{
		validate: v,
		logger:   log,
	}
}

func (v *RideValidator) ValidateCreate(req *model.RideCreate) error {
	return v.check(req)
}

func (v *RideValidator) ValidateJoin(req *model.JoinRequest) error {
	return v.check(req)
}

func (v *RideValidator) ValidatePassenger(req *model.PassengerUpdate) error {
	return v.check(req)
}

func (v *RideValidator) ValidateStatus(req *model.RideStatusUpdate) error {
	return v.check(req)
}

// Validate checks a fully built ride before it is persisted.
func (v *RideValidator) Validate(ride *model.Ride) error {
	return v.check(ride)
}

func (v *RideValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *RideValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ID", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be an RFC 3339 timestamp", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "ltefield":
			message = fmt.Sprintf("%s must not exceed %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "uppercase":
			message = fmt.Sprintf("%s must be uppercase", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
