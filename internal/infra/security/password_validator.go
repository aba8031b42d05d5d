package security

import (
	"errors"
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 8
	minStrengthScore  = 1
)

// PasswordValidator checks candidate passwords against the service policy:
// a length floor, at least one letter and one digit, and a zxcvbn strength
// score so common passwords that satisfy the shape rules still fail.
type PasswordValidator struct {
	checks []func(password string) error
}

// DefaultPasswordValidator builds the standard policy. userInputs are values
// an attacker would guess first (username, email addresses); zxcvbn scores
// passwords containing them as weak.
func DefaultPasswordValidator(userInputs ...string) *PasswordValidator {
	return &PasswordValidator{checks: []func(string) error{
		func(password string) error {
			if len([]rune(password)) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
			}
			return nil
		},
		func(password string) error {
			if !containsClass(password, unicode.IsLetter) {
				return errors.New("password must include at least one letter")
			}
			return nil
		},
		func(password string) error {
			if !containsClass(password, unicode.IsDigit) {
				return errors.New("password must include at least one digit")
			}
			return nil
		},
		func(password string) error {
			if zxcvbn.PasswordStrength(password, userInputs).Score < minStrengthScore {
				return errors.New("password is too weak; choose a more complex value")
			}
			return nil
		},
	}}
}

// Validate returns the first policy violation, or nil.
func (v *PasswordValidator) Validate(password string) error {
	for _, check := range v.checks {
		if err := check(password); err != nil {
			return err
		}
	}
	return nil
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}
