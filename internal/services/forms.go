package services

import (
	"errors"
	"net/url"
	"strings"

	"github.com/BradenHooton/attendly/internal/models"
	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
	"github.com/go-playground/validator/v10"
)

const (
	MsgLoginFieldsRequired    = "Please enter both username and password"
	MsgRegisterFieldsRequired = "Please fill in all fields"
	MsgPasswordMismatch       = "Passwords do not match"
)

// FormRequest is the transport-neutral view of a submitted form
type FormRequest struct {
	Method    string
	Form      url.Values
	UserAgent string
	IPAddress string
}

func (r FormRequest) field(name string) string {
	return r.Form.Get(name)
}

type loginForm struct {
	Username string `validate:"required,username,max=64"`
	Password string `validate:"required,loginfloor"`
}

type registerForm struct {
	Username        string `validate:"required,username,max=64"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// Shared validator instance. The username tag applies the credential policy's
// character set; loginfloor applies its byte-length floor for sign-in.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return pkgauth.ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("loginfloor", func(fl validator.FieldLevel) bool {
		return pkgauth.MeetsLoginFloor(fl.Field().String())
	})
	return v
}

// validateForm returns the first failure as a ValidationError.
// Missing fields are reported together with requiredMsg before any format rule.
func validateForm(form any, requiredMsg string) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return models.NewAuthError(models.ErrValidation, models.MsgTryAgainLater)
	}

	for _, fe := range ve {
		if fe.Tag() == "required" {
			return models.NewAuthError(models.ErrValidation, requiredMsg)
		}
	}
	return models.NewAuthError(models.ErrValidation, fieldMessage(ve[0]))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "username":
		return pkgauth.MsgUsernameFormat
	case "max":
		return pkgauth.MsgUsernameTooLong
	case "loginfloor":
		return pkgauth.MsgLoginPasswordLen
	case "eqfield":
		return MsgPasswordMismatch
	default:
		return "Invalid " + strings.ToLower(fe.Field())
	}
}
