package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevViTien/devshop-web-app/internal/apperrors"
)

type signupForm struct {
	Name            string `json:"name" validate:"required,person_name"`
	Password        string `json:"password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Slug            string `json:"slug" validate:"omitempty,slug"`
}

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Secret123": true,
		"Ab1defgh":  true,
		"secret123": false,
		"SECRET123": false,
		"SecretPwd": false,
		"Sec12":     false,
	}

	for password, valid := range cases {
		err := ValidateStruct(signupForm{Name: "Lan", Password: password, ConfirmPassword: password})
		if valid {
			assert.NoError(t, err, password)
		} else {
			assert.Error(t, err, password)
		}
	}
}

func TestPersonNameAcceptsUnicodeLetters(t *testing.T) {
	assert.NoError(t, ValidateStruct(signupForm{Name: "Nguyễn Văn An", Password: "Secret123", ConfirmPassword: "Secret123"}))
	assert.Error(t, ValidateStruct(signupForm{Name: "R2D2", Password: "Secret123", ConfirmPassword: "Secret123"}))
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	err := ValidationError(signupForm{
		Name:            "Lan",
		Password:        "Secret123",
		ConfirmPassword: "Secret124",
		Slug:            "Not A Slug",
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Passwords do not match", appErr.Fields["confirmPassword"])
	assert.Contains(t, appErr.Fields, "slug")
	assert.NotContains(t, appErr.Fields, "password")
}

func TestValidationErrorNilWhenValid(t *testing.T) {
	assert.NoError(t, ValidationError(signupForm{Name: "Lan", Password: "Secret123", ConfirmPassword: "Secret123"}))
}
