package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyPrefix marks keys minted by GenerateAPIKey.
const APIKeyPrefix = "a2s_"

// APIKeyVerifier checks API keys against a set of bcrypt hashes.
type APIKeyVerifier struct {
	hashes [][]byte
}

// NewAPIKeyVerifier validates every hash up front so that a typo in
// configuration fails at startup.
func NewAPIKeyVerifier(hashes []string) (*APIKeyVerifier, error) {
	v := &APIKeyVerifier{hashes: make([][]byte, 0, len(hashes))}
	for i, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("api key hash %d is not a bcrypt hash: %w", i, err)
		}
		v.hashes = append(v.hashes, []byte(h))
	}
	return v, nil
}

// Enabled reports whether any hashes are configured.
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hashes) > 0
}

// Verify returns nil if key matches one of the configured hashes.
func (v *APIKeyVerifier) Verify(key string) error {
	if key == "" {
		return ErrMissingToken
	}
	if v == nil {
		return ErrInvalidAPIKey
	}
	for _, h := range v.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return nil
		}
	}
	return ErrInvalidAPIKey
}

// HashAPIKey returns the bcrypt hash to put in auth.api_key_hashes.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// GenerateAPIKey returns a new random key with 32 bytes of entropy.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
