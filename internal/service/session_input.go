package service

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/ports"
)

// LoginInput is the sign-in form for one principal category.
type LoginInput struct {
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Category domainauth.Category `json:"userType"`
}

// Validate runs the form rules before any network call.
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.Category, validation.By(validCategory)),
	)
}

func (in LoginInput) credentials() ports.Credentials {
	return ports.Credentials{Email: in.Email, Password: in.Password}
}

// RegisterInput is the registration form. Extra carries tenant-specific
// profile fields that are forwarded untouched.
type RegisterInput struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Phone    string              `json:"phone"`
	Category domainauth.Category `json:"userType"`
	Extra    map[string]any      `json:"-"`
}

// Validate runs the form rules before any network call.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&in.Phone, validation.Length(7, 20)),
		validation.Field(&in.Category, validation.By(validCategory)),
	)
}

func (in RegisterInput) registration() ports.Registration {
	return ports.Registration{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Phone:    in.Phone,
		Extra:    in.Extra,
	}
}

func validCategory(value any) error {
	c, _ := value.(domainauth.Category)
	if !c.Valid() {
		return errors.New("unsupported account type")
	}
	return nil
}

// validationError converts ozzo field errors into a single AppError naming
// the first offending field (in field-name order, for stable messages).
func validationError(err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	first := names[0]
	appErr := apperrors.ValidationField(first, first+": "+fields[first].Error())
	appErr.Cause = err
	return appErr
}
