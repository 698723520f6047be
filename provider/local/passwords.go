package local

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	errEmptySecret    = errors.New("secret must not be empty")
	errSecretMismatch = errors.New("secret does not match hash")
)

// passwordRules mirrors the default user pool policy length.
var passwordRules = []validation.Rule{
	validation.Required,
	validation.Length(8, 256),
}

func hashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(h), err
}

func compareSecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errSecretMismatch
		}
		return err
	}
	return nil
}

// newConfirmationCode returns a random 6 digit code.
func newConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
