package web

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers given without a country
// prefix.
const DefaultPhoneRegion = "US"

var errInvalidPhone = errors.New("must be a valid phone number")

// LoginForm payload. Empty fields are reported by the auth controller, the
// form only bounds their size.
type LoginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (f LoginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Length(0, 128)),
		validation.Field(&f.Password, validation.Length(0, 256)),
	)
}

// SignUpForm payload. Phone is optional.
type SignUpForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Phone    string `form:"phone" json:"phone"`
}

func (f SignUpForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Length(0, 128), is.Email),
		validation.Field(&f.Password, validation.Length(0, 256)),
		validation.Field(&f.Phone, validation.By(phoneRule)),
	)
}

// PhoneE164 returns the phone number in E.164 format, or "" when not given.
func (f SignUpForm) PhoneE164() (string, error) {
	return normalizePhone(f.Phone)
}

type ConfirmForm struct {
	Code string `form:"code" json:"code"`
}

func (f ConfirmForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Code, validation.Length(0, 16), is.Digit),
	)
}

func phoneRule(value any) error {
	s, _ := value.(string)
	_, err := normalizePhone(s)
	return err
}

func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
