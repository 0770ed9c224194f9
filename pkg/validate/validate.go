// Package validate checks request structs with go-playground/validator tags
// and reports failures with user-facing field names.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the json name so messages match what clients sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ErrInvalid is matched by every *FieldsError.
var ErrInvalid = errors.New("validation failed")

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Message string
}

// FieldsError lists every invalid field of a struct, in declaration order.
type FieldsError struct {
	Fields []FieldError
}

func (e *FieldsError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s %s", f.Field, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *FieldsError) Is(target error) bool { return target == ErrInvalid }

// Struct validates s and returns a *FieldsError when any field fails.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}

	out := &FieldsError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{Field: fe.Field(), Message: msgForTag(fe)}
	}
	return out
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
