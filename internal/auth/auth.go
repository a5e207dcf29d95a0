// Package auth authenticates workers with client credentials and issues
// short-lived HMAC-signed bearer tokens for the job API.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

// WorkerStore is the credential surface the service depends on.
type WorkerStore interface {
	ValidateCredentials(ctx context.Context, workerID, secret string) (bool, error)
	RecordLogin(ctx context.Context, workerID string, loginAt, expiresAt time.Time) error
}

const tokenIssuer = "rpa-dispatch"

// Claims are the JWT claims carried by an issued worker token.
type Claims struct {
	WorkerID string `json:"worker_id"`
	jwt.RegisteredClaims
}

// Config holds auth service configuration.
type Config struct {
	Logger    *slog.Logger
	Workers   WorkerStore
	SecretKey string
	TokenTTL  time.Duration
}

// Service issues and validates worker tokens.
type Service struct {
	logger   *slog.Logger
	workers  WorkerStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService creates an auth service from cfg.
func NewService(cfg *Config) *Service {
	return &Service{
		logger:   cfg.Logger,
		workers:  cfg.Workers,
		secret:   []byte(cfg.SecretKey),
		tokenTTL: cfg.TokenTTL,
		now:      time.Now,
	}
}

// WithNow overrides the service clock; tests use it to pin token lifetimes.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Token is an issued bearer token with its lifetime in seconds.
type Token struct {
	AccessToken string
	ExpiresIn   int
}

// Authenticate validates a worker id / secret pair and issues a signed token.
func (s *Service) Authenticate(ctx context.Context, workerID, secret string) (*Token, error) {
	if strings.TrimSpace(workerID) == "" || strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: worker_id and secret are required", domain.ErrValidation)
	}

	valid, err := s.workers.ValidateCredentials(ctx, workerID, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !valid {
		s.logger.Warn("Worker authentication rejected",
			slog.String("worker_id", workerID),
		)
		return nil, domain.ErrUnauthorized
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.tokenTTL)

	claims := Claims{
		WorkerID: workerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   workerID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if err := s.workers.RecordLogin(ctx, workerID, now, expiresAt); err != nil {
		// Login bookkeeping must not block a valid authentication.
		s.logger.Warn("Failed to record worker login",
			slog.String("worker_id", workerID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("Worker authenticated",
		slog.String("worker_id", workerID),
	)

	return &Token{
		AccessToken: signed,
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

// ValidateToken verifies a bearer token and returns the authenticated worker
// id. Every failure maps to domain.ErrUnauthorized.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	if claims.WorkerID == "" {
		return "", domain.ErrUnauthorized
	}

	return claims.WorkerID, nil
}
