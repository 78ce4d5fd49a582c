// Package validate holds the client-side pre-flight checks run before any
// form is sent to the API.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// DefaultPasswordMinLength matches the server's PASSWORD_MIN_LENGTH.
const DefaultPasswordMinLength = 6

var verificationCode = regexp.MustCompile(`^[0-9]{6}$`)

// SignupForm is the registration form.
type SignupForm struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,passwordlen"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	FullName        string
}

// LoginForm is the email/password sign-in form.
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// ResetPasswordForm is the form reached from the password reset email.
type ResetPasswordForm struct {
	Token           string `validate:"required"`
	Password        string `validate:"required,passwordlen"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// ForgotPasswordForm asks for the account email.
type ForgotPasswordForm struct {
	Email string `validate:"required,email"`
}

// CodeForm is the email verification code form.
type CodeForm struct {
	PendingToken string `validate:"required"`
	Code         string `validate:"verificationcode"`
}

// Validator runs the form checks.
type Validator struct {
	v         *validator.Validate
	minLength int
}

// New builds a Validator enforcing the given minimum password length.
func New(passwordMinLength int) *Validator {
	if passwordMinLength <= 0 {
		passwordMinLength = DefaultPasswordMinLength
	}

	val := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), minLength: passwordMinLength}
	val.v.RegisterValidation("passwordlen", val.validatePasswordLength)
	val.v.RegisterValidation("verificationcode", validateVerificationCode)

	return val
}

// PasswordMinLength returns the enforced minimum password length.
func (val *Validator) PasswordMinLength() int {
	return val.minLength
}

// Struct validates one of the forms above and returns a
// *model.ValidationError describing the first failing field.
func (val *Validator) Struct(form any) error {
	err := val.v.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return model.NewValidationError("", "%v", err)
	}

	return val.describe(fieldErrs[0])
}

// Code checks a verification code after trimming surrounding spaces.
func Code(code string) error {
	if !verificationCode.MatchString(strings.TrimSpace(code)) {
		return model.NewValidationError("Code", "enter the 6-digit numeric code")
	}
	return nil
}

func (val *Validator) validatePasswordLength(fl validator.FieldLevel) bool {
	return utf8.RuneCountInString(fl.Field().String()) >= val.minLength
}

func validateVerificationCode(fl validator.FieldLevel) bool {
	return verificationCode.MatchString(strings.TrimSpace(fl.Field().String()))
}

func (val *Validator) describe(fe validator.FieldError) *model.ValidationError {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return model.NewValidationError(field, "%s is required", humanize(field))
	case "email":
		return model.NewValidationError(field, "%q is not a valid email address", fe.Value())
	case "passwordlen":
		return model.NewValidationError(field, "password must have at least %d characters", val.minLength)
	case "eqfield":
		return model.NewValidationError(field, "passwords do not match")
	case "verificationcode":
		return model.NewValidationError(field, "enter the 6-digit numeric code")
	}

	return model.NewValidationError(field, "%s is invalid", humanize(field))
}

func humanize(field string) string {
	switch field {
	case "ConfirmPassword":
		return "password confirmation"
	case "PendingToken":
		return "verification session"
	case "FullName":
		return "full name"
	}
	return strings.ToLower(field)
}
