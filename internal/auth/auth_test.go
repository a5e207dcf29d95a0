package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raboid/rpa-dispatch/internal/domain"
)

type fakeWorkerStore struct {
	workers map[string]string // worker_id -> secret

	validateErr error
	loginErr    error

	logins []string
}

func (f *fakeWorkerStore) ValidateCredentials(ctx context.Context, workerID, secret string) (bool, error) {
	if f.validateErr != nil {
		return false, f.validateErr
	}
	stored, ok := f.workers[workerID]
	return ok && stored == secret, nil
}

func (f *fakeWorkerStore) RecordLogin(ctx context.Context, workerID string, loginAt, expiresAt time.Time) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.logins = append(f.logins, workerID)
	return nil
}

func newTestService(store *fakeWorkerStore) *Service {
	return NewService(&Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Workers:   store,
		SecretKey: "test-signing-secret",
		TokenTTL:  time.Hour,
	})
}

func TestService_Authenticate(t *testing.T) {
	t.Run("issues a token for valid credentials", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{"worker-1": "s3cret"}}
		service := newTestService(store)

		token, err := service.Authenticate(context.Background(), "worker-1", "s3cret")
		require.NoError(t, err)

		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, 3600, token.ExpiresIn)
		assert.Equal(t, []string{"worker-1"}, store.logins)
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{"worker-1": "s3cret"}}
		service := newTestService(store)

		_, err := service.Authenticate(context.Background(), "worker-1", "wrong")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("rejects an unknown worker", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{}}
		service := newTestService(store)

		_, err := service.Authenticate(context.Background(), "ghost", "s3cret")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("rejects blank credentials", func(t *testing.T) {
		service := newTestService(&fakeWorkerStore{})

		_, err := service.Authenticate(context.Background(), "", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		store := &fakeWorkerStore{validateErr: errors.New("connection refused")}
		service := newTestService(store)

		_, err := service.Authenticate(context.Background(), "worker-1", "s3cret")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("login bookkeeping failure does not block auth", func(t *testing.T) {
		store := &fakeWorkerStore{
			workers:  map[string]string{"worker-1": "s3cret"},
			loginErr: errors.New("connection reset"),
		}
		service := newTestService(store)

		token, err := service.Authenticate(context.Background(), "worker-1", "s3cret")
		require.NoError(t, err)
		assert.NotEmpty(t, token.AccessToken)
	})
}

func TestService_ValidateToken(t *testing.T) {
	issue := func(t *testing.T, service *Service) string {
		t.Helper()
		token, err := service.Authenticate(context.Background(), "worker-1", "s3cret")
		require.NoError(t, err)
		return token.AccessToken
	}

	t.Run("round trip", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{"worker-1": "s3cret"}}
		service := newTestService(store)

		workerID, err := service.ValidateToken(issue(t, service))
		require.NoError(t, err)
		assert.Equal(t, "worker-1", workerID)
	})

	t.Run("garbage token", func(t *testing.T) {
		service := newTestService(&fakeWorkerStore{})

		_, err := service.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{"worker-1": "s3cret"}}
		issuer := newTestService(store)

		verifier := NewService(&Config{
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			Workers:   store,
			SecretKey: "a-different-secret",
			TokenTTL:  time.Hour,
		})

		_, err := verifier.ValidateToken(issue(t, issuer))
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		store := &fakeWorkerStore{workers: map[string]string{"worker-1": "s3cret"}}
		service := newTestService(store)

		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		service.WithNow(func() time.Time { return issuedAt })
		token := issue(t, service)

		// Move the clock past the TTL.
		service.WithNow(func() time.Time { return issuedAt.Add(2 * time.Hour) })

		_, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		service := newTestService(&fakeWorkerStore{})

		claims := Claims{WorkerID: "worker-1"}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateToken(unsigned)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("missing worker id claim", func(t *testing.T) {
		service := newTestService(&fakeWorkerStore{})

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "worker-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret"))
		require.NoError(t, err)

		_, err = service.ValidateToken(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
