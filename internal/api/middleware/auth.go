package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/service/auth"
)

// APIKeyHeader carries a raw API key.
const APIKeyHeader = "X-API-Key"

// APIKeySubject is the subject recorded for requests authenticated by API key.
const APIKeySubject = "api-key"

// AuthMiddleware authenticates requests with a bearer JWT or an API key.
type AuthMiddleware struct {
	jwtService auth.JWTService
	apiKeys    *auth.APIKeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware. Either dependency may be
// nil, which disables that method.
func NewAuthMiddleware(jwtService auth.JWTService, apiKeys *auth.APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		apiKeys:    apiKeys,
	}
}

// Authenticate rejects requests that carry neither a valid API key nor a
// valid bearer token. The caller's subject is stored in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			if err := m.apiKeys.Verify(key); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid API key", err,
					shared.WithElevatedLogLevel())
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.WithSubject(r.Context(), APIKeySubject)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		if m.jwtService == nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Bearer tokens are not accepted")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithSubject(r.Context(), claims.Subject)))
	})
}
