package validator

import (
	"errors"
	"fmt"
	"strings"

	"wheelaway/pkg/locale"
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

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	model.RegisterDecimal(v)

	if err := v.RegisterValidation("currency", validateCurrency); err != nil {
		log.Fatal("Failed to register 'currency' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateCurrency(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == "" || locale.Supported(code)
}

func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateStatus(req *model.StatusUpdate) error {
	return v.check(req)
}

func (v *BookingValidator) ValidatePayment(req *model.PaymentUpdate) error {
	return v.check(req)
}

// Validate checks a priced booking before it is persisted.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.check(booking); err != nil {
		return err
	}
	if !booking.TotalPrice.IsPositive() {
		return ValidationErrors{{Field: "TotalPrice", Message: "TotalPrice must be greater than 0"}}
	}
	return nil
}

func (v *BookingValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid ID", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be a date formatted as YYYY-MM-DD", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "currency":
			message = fmt.Sprintf("%s is not a supported currency", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
