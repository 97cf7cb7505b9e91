package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisaverylongsecretkeyfortestingpurposes"

func testConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60}
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	svc, err := NewJWTService(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	svc, err := newHMACJWTService(testConfig(), func() time.Time { return now })
	require.NoError(t, err)

	token, err := svc.GenerateToken(ctx, "ci-runner")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ci-runner", claims.Subject)
	assert.Equal(t, now, claims.IssuedAt.UTC())
	assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt.UTC())
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateTokenEmptySubject(t *testing.T) {
	t.Parallel()
	svc, err := NewJWTService(testConfig())
	require.NoError(t, err)

	_, err = svc.GenerateToken(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestValidateTokenErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	issuer, err := newHMACJWTService(testConfig(), func() time.Time { return now })
	require.NoError(t, err)
	token, err := issuer.GenerateToken(ctx, "client")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later, err := newHMACJWTService(testConfig(), func() time.Time { return now.Add(2 * time.Hour) })
		require.NoError(t, err)
		_, err = later.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("within clock skew", func(t *testing.T) {
		later, err := newHMACJWTService(testConfig(), func() time.Time { return now.Add(time.Hour + time.Minute) })
		require.NoError(t, err)
		_, err = later.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("not yet valid", func(t *testing.T) {
		earlier, err := newHMACJWTService(testConfig(), func() time.Time { return now.Add(-10 * time.Minute) })
		require.NoError(t, err)
		_, err = earlier.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.JWTSecret = "anotherverylongsecretkeyfortestingpurposes"
		other, err := newHMACJWTService(cfg, func() time.Time { return now })
		require.NoError(t, err)
		_, err = other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := issuer.ValidateToken(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "client",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.ValidateToken(ctx, foreign)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Issuer: Issuer, Subject: "client", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.ValidateToken(ctx, unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
