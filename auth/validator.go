package auth

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"campus-connect/errors"
)

var validate = validator.New()

type RegisterRequest struct {
	Email       string `validate:"required,email"`
	DisplayName string `validate:"required,min=2,max=64"`
	Password    string `validate:"required,min=12,max=72"`
}

// ValidateRegister checks the structural rules and password complexity of a
// registration request. The organizational-domain constraint is enforced
// separately via AllowedDomain so it also applies to login.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// CheckDomain verifies that an email belongs to the allowed organizational
// domain (e.g. "srm.edu.in"). An empty allowed domain disables the check.
func CheckDomain(email, allowedDomain string) error {
	if allowedDomain == "" {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(allowedDomain)) {
		return errors.ErrForbiddenDomain
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
