// Package validate checks struct tags and reports failures as NotValid errors.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return val
}

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Struct validates s and returns a NotValid error listing the rejected fields.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if len(fields) == 0 {
		return errors.NewNotValid(err, "invalid input")
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" "+f.Error)
	}
	return errors.NewNotValid(err, strings.Join(parts, "; "))
}

// Fields extracts per-field failures from a validator error.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Error: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
