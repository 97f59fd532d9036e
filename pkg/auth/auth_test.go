package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemory()
	svc := New(store, config.Auth{
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:    ttl,
		BcryptCost:  bcrypt.MinCost,
	})
	return svc, store
}

// TestValidatePassword tests the password policy
func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Str0ng!pass", false},
		{"valid with extended symbols", "Aa1[]{}|;:abc", false},
		{"minimum length", "Aa1!bcde", false},
		{"too short", "Aa1!bcd", true},
		{"too long", "Aa1!" + strings.Repeat("x", 125), true},
		{"missing lowercase", "STR0NG!PASS", true},
		{"missing uppercase", "str0ng!pass", true},
		{"missing digit", "Strong!pass", true},
		{"missing symbol", "Str0ngpass1", true},
		{"empty", "", true},
		{"symbol outside fixed set only", "Str0ngPass§", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Equal(t, types.KindValidation, types.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidatePasswordCountsCodePoints tests that length limits apply to runes
func TestValidatePasswordCountsCodePoints(t *testing.T) {
	// Seven code points even though the byte count is higher.
	err := ValidatePassword("Aa1!ééé")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

// TestHashAndVerifyPassword tests the bcrypt round trip
func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("Str0ng!pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2a$"))
	assert.True(t, VerifyPassword(digest, "Str0ng!pass"))
	assert.False(t, VerifyPassword(digest, "Str0ng!pasz"))
}

// TestHashLongPassword tests that passwords beyond bcrypt's input limit still verify
func TestHashLongPassword(t *testing.T) {
	password := "Aa1!" + strings.Repeat("x", 96)
	digest, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(digest, password))
}

// TestRegisterAndLogin tests the happy path
func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "Str0ng!pass", user.PasswordDigest)

	loggedIn, token, err := svc.Login(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)
}

// TestRegisterNormalizesEmail tests that emails are lowercased and trimmed
func TestRegisterNormalizesEmail(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Ada@Example.COM ", "Str0ng!pass")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, _, err = svc.Login(ctx, "ADA@example.com", "Str0ng!pass")
	assert.NoError(t, err)
}

// TestRegisterRejectsInvalidInput tests email and password validation
func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "Str0ng!pass")
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = svc.Register(ctx, strings.Repeat("a", 250)+"@example.com", "Str0ng!pass")
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = svc.Register(ctx, "ada@example.com", "weak")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

// TestRegisterDuplicateEmail tests the conflict path
func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Ada@example.com", "Other1!pass")
	assert.Equal(t, types.KindConflict, types.KindOf(err))
}

// TestLoginFailuresDoNotDisclose tests that unknown email and wrong password look identical
func TestLoginFailuresDoNotDisclose(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)

	_, _, errUnknown := svc.Login(ctx, "nobody@example.com", "Str0ng!pass")
	_, _, errWrong := svc.Login(ctx, "ada@example.com", "Wr0ng!pass")

	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Equal(t, types.KindAuthFailed, types.KindOf(errUnknown))
	assert.Equal(t, types.KindAuthFailed, types.KindOf(errWrong))
}

// TestAuthenticate tests token verification end to end
func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

// TestAuthenticateRejectsBadTokens tests the single-error contract
func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)

	otherSecret := New(store, config.Auth{
		TokenSecret: "another-secret-another-secret-12",
		TokenTTL:    time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	foreignToken, err := otherSecret.issueToken(user.ID)
	require.NoError(t, err)

	expiredSvc, _ := newTestService(t, -time.Hour)
	expired, err := expiredSvc.issueToken(user.ID)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": user.ID.String()})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not-a-token"},
		{"empty", ""},
		{"tampered", token + "x"},
		{"wrong secret", foreignToken},
		{"expired", expired},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.token)
			require.Error(t, err)
			assert.Equal(t, types.KindAuthFailed, types.KindOf(err))
			assert.Equal(t, "invalid or expired token", err.Error())
		})
	}
}

// TestAuthenticateUnknownUser tests that a valid token for a deleted user fails the same way
func TestAuthenticateUnknownUser(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "ada@example.com", "Str0ng!pass")
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, user.ID))

	_, err = svc.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, "invalid or expired token", err.Error())
}
