package accounts

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const validationPrefix = "Validation failed: "

type registrationInput struct {
	Username string `validate:"required,min=3,max=20,alphanum"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max_bytes=72,has_upper,has_digit"`
}

type credentialsInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type profileInput struct {
	ProfileImage *string `validate:"omitempty,max=512"`
	Bio          *string `validate:"omitempty,max=500"`
}

var fieldMessages = map[string]string{
	"Username.required":  "Username is required",
	"Username.min":       "Username must be 3-20 characters",
	"Username.max":       "Username must be 3-20 characters",
	"Username.alphanum":  "Usernames can only contain letters, numbers",
	"Email.required":     "Email is required",
	"Email.email":        "Must be a valid email",
	"Password.required":  "Password is required",
	"Password.min":       "Password must be at least 8 characters",
	"Password.max_bytes": "Password must be at most 72 bytes",
	"Password.has_upper": "Password must contain at least one uppercase letter",
	"Password.has_digit": "Password must contain at least one number",
	"Bio.max":            "Bio must be at most 500 characters",
	"ProfileImage.max":   "Profile image reference is too long",
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("has_upper", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsUpper) >= 0
	})
	_ = validate.RegisterValidation("has_digit", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsDigit) >= 0
	})
	// bcrypt only accepts 72 bytes of input; max counts runes.
	_ = validate.RegisterValidation("max_bytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return validate
}

// validationMessage renders validator failures as one caller-facing sentence.
func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return validationPrefix + err.Error()
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		message, ok := fieldMessages[fieldError.Field()+"."+fieldError.Tag()]
		if !ok {
			message = fieldError.Field() + " is invalid"
		}
		messages = append(messages, message)
	}
	return validationPrefix + strings.Join(messages, ", ")
}
