package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// Login and token verification failures collapse to these two errors so
// responses never disclose which check failed.
var (
	errInvalidCredentials = types.NewError(types.KindAuthFailed, "invalid credentials")
	errInvalidToken       = types.NewError(types.KindAuthFailed, "invalid or expired token")
)

// dummyDigest keeps login latency uniform when the email is unknown: the
// handler still runs one full-cost bcrypt comparison before failing.
const dummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// Service implements registration, login, and bearer token verification.
type Service struct {
	store storage.Store
	cfg   config.Auth
	log   zerolog.Logger
}

// New creates a credential service backed by store.
func New(store storage.Store, cfg config.Auth) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log.WithComponent("auth"),
	}
}

// TTL returns the configured bearer token lifetime.
func (s *Service) TTL() time.Duration {
	return s.cfg.TokenTTL
}

// Register validates the email and password, hashes the password, and
// creates the user. The email is lowercased before storage so lookups
// are case-insensitive.
func (s *Service) Register(ctx context.Context, email, password string) (*types.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	digest, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	now := time.Now().UTC()
	user := &types.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

// Login verifies the credentials and issues a bearer token. Unknown
// email and wrong password produce the same error; an unknown email
// still pays for one bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	email = normalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			VerifyPassword(dummyDigest, password)
			return nil, "", errInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if !VerifyPassword(user.PasswordDigest, password) {
		return nil, "", errInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return user, token, nil
}

// Authenticate resolves a raw bearer token to its user. Malformed
// tokens, bad signatures, expiry, and unknown users all return the same
// non-disclosing error.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*types.User, error) {
	userID, err := s.parseToken(rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, errInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" || len(email) > types.MaxEmailLength || !strings.Contains(email, "@") {
		return types.NewError(types.KindValidation, "invalid email address")
	}
	return nil
}
