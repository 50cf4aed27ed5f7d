package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCipher hashea y verifica passwords. La sal va embebida en el digest.
type PasswordCipher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

const defaultBcryptCost = 10

var ErrPasswordTooLong = errors.New("password too long")

// BcryptCipher implementa PasswordCipher con bcrypt.
type BcryptCipher struct {
	cost int
}

func NewBcryptCipher(cost int) *BcryptCipher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultBcryptCost
	}
	return &BcryptCipher{cost: cost}
}

func (c *BcryptCipher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify devuelve false ante cualquier mismatch, incluido un digest malformado.
func (c *BcryptCipher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
