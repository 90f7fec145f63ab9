package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// dummyHash keeps unknown usernames on the same bcrypt path as known ones.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3Mh2pZ2s4GM9Y3pNq1lqG3e"

// AuthService authenticates operators configured through the environment.
type AuthService struct {
	operators map[string]domain.Operator
	tokenMgr  *auth.TokenManager
	logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	operators := make(map[string]domain.Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators[strings.ToLower(op.Username)] = op
	}
	return &AuthService{
		operators: operators,
		tokenMgr:  auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		logger:    logger,
	}
}

// Login verifies the password and returns a signed token.
func (s *AuthService) Login(_ context.Context, username, password string) (*domain.Operator, string, time.Time, error) {
	op, known := s.Operator(username)
	hash := dummyHash
	if known {
		hash = op.PasswordHash
	}
	if err := auth.ComparePassword(hash, password); err != nil || !known {
		s.logger.Info("operator login rejected", zap.String("username", username))
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(op.Username, op.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return op, token, exp, nil
}

// Operator looks up a configured operator by case-insensitive username.
func (s *AuthService) Operator(username string) (*domain.Operator, bool) {
	op, ok := s.operators[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, false
	}
	return &op, true
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
