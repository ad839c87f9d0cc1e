// internal/utils/validator.go
package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate    *validator.Validate
	slugRegex   = regexp.MustCompile(`^[a-z0-9-]+$`)
	personRegex = regexp.MustCompile(`^[\p{L}\s'.-]+$`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterValidation("strong_password", validateStrongPassword)
	validate.RegisterValidation("person_name", validatePersonName)
	validate.RegisterValidation("slug", validateSlug)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateStrongPassword requires at least 8 characters with an upper-case
// letter, a lower-case letter and a digit.
func validateStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	if len(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasNumber bool

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

func validatePersonName(fl validator.FieldLevel) bool {
	return personRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}

// ValidationErrors turns validator errors into a field → message map keyed by
// the JSON field name. Other errors yield nil.
func ValidationErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	fields := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		if _, exists := fields[e.Field()]; !exists {
			fields[e.Field()] = getValidationMessage(e)
		}
	}
	return fields
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return e.Field() + " must be at least " + e.Param() + " characters"
		}
		return e.Field() + " must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return e.Field() + " must be at most " + e.Param() + " characters"
		}
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "eqfield":
		return "Passwords do not match"
	case "url":
		return e.Field() + " must be a valid URL"
	case "uuid":
		return e.Field() + " must be a valid ID"
	case "strong_password":
		return "Password must be at least 8 characters with uppercase, lowercase and a number"
	case "person_name":
		return "Name can only contain letters and spaces"
	case "slug":
		return "Slug can only contain lowercase letters, numbers and hyphens"
	default:
		return e.Field() + " is invalid"
	}
}
