package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/hutch/pkg/types"
)

const (
	// MinPasswordLength is the minimum password length in code points.
	MinPasswordLength = 8
	// MaxPasswordLength is the maximum password length in code points.
	MaxPasswordLength = 128

	// passwordSymbols is the accepted symbol class for the password policy.
	passwordSymbols = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~\\"
)

// ValidatePassword checks a candidate password against the registration
// policy: 8 to 128 code points with at least one lowercase letter, one
// uppercase letter, one digit, and one symbol.
func ValidatePassword(password string) error {
	runes := []rune(password)
	if len(runes) < MinPasswordLength || len(runes) > MaxPasswordLength {
		return types.NewError(types.KindValidation,
			fmt.Sprintf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength))
	}

	var lower, upper, digit, symbol bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return types.NewError(types.KindValidation,
			"password must include a lowercase letter, an uppercase letter, a digit, and a symbol")
	}
	return nil
}

// HashPassword derives a bcrypt digest of password at the given cost.
func HashPassword(password string, cost int) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether password matches the stored digest.
// The comparison cost tracks the digest's embedded work factor.
func VerifyPassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(password)) == nil
}

// bcrypt reads at most 72 bytes of input; trim here so hashing and
// verification always see the same bytes for long passwords.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}
