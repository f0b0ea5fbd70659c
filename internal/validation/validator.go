// Package validation wraps a shared go-playground/validator instance for request
// parameters.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// driveIDPattern matches Google Drive file and folder identifiers.
var driveIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Get returns the process validator, registering custom tags on first use.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("driveid", func(fl validator.FieldLevel) bool {
			return driveIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s and flattens field errors into one readable error.
func Struct(s interface{}) error {
	return flatten(Get().Struct(s))
}

// Var validates a single value against tag, naming it field in the error.
func Var(field string, value interface{}, tag string) error {
	err := Get().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%s %s", field, describe(fieldErrs[0]))
	}
	return err
}

func flatten(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", strings.ToLower(fe.Field()), describe(fe)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "alphanum":
		return "must be alphanumeric"
	case "driveid":
		return "must be a Drive identifier"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "http_url", "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
