package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/jobmatch-auth/internal/apperror"
)

// defaultCost is the bcrypt work factor (~250ms per hash on current hardware).
const defaultCost = 12

// MaxPasswordBytes is the longest input bcrypt hashes without truncating.
const MaxPasswordBytes = 72

// PasswordHasher turns an optional sign-up password into the value stored on
// User.Password.
//
// Nothing in this service checks a password at login: the plain path is login
// by assertion. The hasher exists so that a password, if a client sends one,
// is never persisted in clear text and is ready for a future credentialed flow.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a PasswordHasher with the default cost.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: defaultCost}
}

// NewPasswordHasherForTest uses a caller-chosen cost. Pass bcrypt.MinCost (4)
// in tests; never use it in production.
func NewPasswordHasherForTest(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. An empty plaintext hashes to "",
// meaning "no password".
//
// bcrypt silently truncates input past MaxPasswordBytes, so longer passwords
// are rejected with a missing_field error on "password".
func (p *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", PasswordTooLong()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// PasswordTooLong reports a password longer than MaxPasswordBytes.
func PasswordTooLong() *apperror.AppError {
	return apperror.MissingField("password", fmt.Sprintf("Password must be %d bytes or fewer", MaxPasswordBytes))
}
