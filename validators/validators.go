package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	fullNameRegex = regexp.MustCompile(`^\p{L}[\p{L} .'\-]*$`)
	phoneRegex    = regexp.MustCompile(`^\+?\d{10,14}$`)
)

var (
	ErrPasswordMismatch = errors.New("Passwords do not match")
	ErrWeakPassword     = errors.New("Please use a stronger password")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct runs the `validate` tags of v and reports the first failing field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", field)
		case "email":
			return fmt.Errorf("invalid email format")
		case "max":
			return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
		case "min":
			return fmt.Errorf("%s must be at least %s", field, fe.Param())
		}
		return fmt.Errorf("%s is invalid", field)
	}
	return err
}

func ValidateString(field, val string, minLen, maxLen int) error {
	length := utf8.RuneCountInString(val)
	if length < minLen || length > maxLen {
		return fmt.Errorf("%s must be between %d and %d characters", field, minLen, maxLen)
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func ValidateName(field, val string) error {
	if !fullNameRegex.MatchString(val) {
		return fmt.Errorf("%s must contain only letters", field)
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone must be 10 to 14 digits")
	}
	return nil
}

// Registration is the sign-up form as submitted.
type Registration struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// ValidateRegistration rejects a mismatched confirmation first, then a password
// scoring below "Good".
func ValidateRegistration(reg Registration) error {
	if reg.FullName != "" {
		if err := ValidateString("full_name", reg.FullName, 1, 100); err != nil {
			return err
		}
		if err := ValidateName("full_name", reg.FullName); err != nil {
			return err
		}
	}
	if err := ValidateEmail(reg.Email); err != nil {
		return err
	}
	if reg.Password != reg.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if PasswordStrength(reg.Password).Score < StrengthGood {
		return ErrWeakPassword
	}
	return nil
}
