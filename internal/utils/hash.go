package utils

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

func HashPassword(pw string) (string, error) {
	if len(pw) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	return string(b), err
}

// CheckPassword reports whether pw matches hashed. An empty hash never matches.
func CheckPassword(hashed, pw string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}

var dummyHash = sync.OnceValue(func() string {
	b, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return string(b)
})

// CheckDummyPassword spends the same bcrypt work as CheckPassword against a
// hash no account owns. Login calls it for unknown emails so they answer in
// the same time as a wrong password.
func CheckDummyPassword(pw string) {
	CheckPassword(dummyHash(), pw)
}
