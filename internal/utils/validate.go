package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field names in errors use json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its `validate` tags and converts the first failure
// into a FieldError.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(fe.Field(), describeTag(fe.Tag(), fe.Param()))
	}
	return NewValidationError("", err.Error())
}

func describeTag(tag, param string) string {
	switch tag {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of [" + param + "]"
	case "gte":
		return "must be >= " + param
	case "lte":
		return "must be <= " + param
	case "min":
		return "must be at least " + param
	default:
		return "failed " + tag
	}
}
