package controller

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/nimburion/crudkit/pkg/apperror"
)

// Validator is implemented by payloads with their own validation rules. Resource calls it on
// every decoded create and update body.
type Validator interface {
	Validate() error
}

// ValidatePayload validates a decoded request body. Payloads implementing Validator are
// checked by it; others only have their `validate:"required"` fields checked. Every failure is
// a 400 AppError.
func ValidatePayload(payload interface{}) error {
	v := reflect.ValueOf(payload)
	if payload == nil || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return validationError("validation.payload_nil", "payload cannot be nil", nil)
	}

	if validator, ok := payload.(Validator); ok {
		if err := validator.Validate(); err != nil {
			if _, isApp := apperror.As(err); isApp {
				return err
			}
			return validationError("validation.failed", err.Error(), nil)
		}
		return nil
	}
	return validateRequired(v)
}

func validateRequired(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	var missing []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if !strings.Contains(field.Tag.Get("validate"), "required") {
			continue
		}
		if v.Field(i).IsZero() {
			missing = append(missing, fieldName(field))
		}
	}

	if len(missing) > 0 {
		return validationError("validation.failed",
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			map[string]interface{}{"missing": missing})
	}
	return nil
}

// fieldName returns the JSON name of field, which is what clients see.
func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return field.Name
}

func validationError(code, message string, details map[string]interface{}) *apperror.AppError {
	return apperror.New(code, nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusBadRequest).
		WithDetails(details)
}
