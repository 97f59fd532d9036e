package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// issueToken signs an HS256 bearer token carrying the user id, issue
// time, and expiry.
func (s *Service) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseToken verifies the signature and expiry of a raw token and
// extracts the user id. The signing method allowlist rejects tokens
// that name any algorithm other than HS256.
func (s *Service) parseToken(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.TokenSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errInvalidToken
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return uuid.Nil, errInvalidToken
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, errInvalidToken
	}
	return userID, nil
}
