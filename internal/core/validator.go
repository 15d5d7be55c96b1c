package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"tempguard/internal/types"
)

// Validator wraps go-playground/validator with the domain tags used by
// request DTOs:
//   - message_kind: alert, daily_summary or warning
//   - calendar_month: 1 through 12
type Validator struct {
	v      *validator.Validate
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("message_kind", func(fl validator.FieldLevel) bool {
		return types.MessageKind(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("calendar_month", func(fl validator.FieldLevel) bool {
		m := fl.Field().Int()
		return m >= 1 && m <= 12
	})

	return &Validator{v: v, logger: logger}
}

// ValidateStruct returns nil or a validation_invalid_value AppError whose
// details map each failing field to the rule it broke.
func (v *Validator) ValidateStruct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation could not run", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}

	code := types.ErrCodeValidationInvalidValue
	if len(verrs) == 1 && verrs[0].Tag() == "required" {
		code = types.ErrCodeValidationMissingField
	}
	return types.NewAppErrorWithDetails(code, "request validation failed", err, map[string]any{"fields": fields})
}
