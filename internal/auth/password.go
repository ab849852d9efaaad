package auth

import (
	"strings"

	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "hash password")
	}
	return string(h), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// CheckPassword compares password with stored. Records restored from browser
// backups carry plaintext credentials, which are compared exactly.
func CheckPassword(stored, password string) bool {
	if !IsHashed(stored) {
		return stored != "" && stored == password
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
