// internal/auth/service.go
// Token verification. Accounts and sign-in live in the identity service;
// this backend only checks the access tokens it issues.

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/imadgeboyega/movienight-backend/internal/common/utils"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Service verifies bearer tokens
type Service interface {
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
	IssueAccessToken(ctx context.Context, userID int64, username string) (string, error)
}

// Config holds service configuration
type Config struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

type service struct {
	config *Config
}

// NewService creates a token service
func NewService(config *Config) Service {
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	return &service{config: config}
}

func (s *service) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := utils.ValidateJWT(token, s.config.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != "access" {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

// IssueAccessToken is used by tooling and tests; production tokens come from the identity service
func (s *service) IssueAccessToken(ctx context.Context, userID int64, username string) (string, error) {
	now := time.Now()
	return utils.GenerateJWT(&utils.JWTClaims{
		UserID:    userID,
		Username:  username,
		Type:      "access",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.config.AccessTokenExpiry).Unix(),
	}, s.config.JWTSecret)
}
