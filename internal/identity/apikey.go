package identity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyVerifier authenticates service accounts. A presented key has the
// form "<user>.<secret>"; only the bcrypt hash of the secret is configured.
type APIKeyVerifier struct {
	hashes map[string][]byte
}

// NewAPIKeyVerifier parses "user:$2a$..." entries.
func NewAPIKeyVerifier(entries []string) (*APIKeyVerifier, error) {
	v := &APIKeyVerifier{hashes: make(map[string][]byte, len(entries))}
	for _, e := range entries {
		user, hash, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("malformed api key entry for %q", user)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("api key for %q: %w", user, err)
		}
		v.hashes[user] = []byte(hash)
	}
	return v, nil
}

func (v *APIKeyVerifier) Verify(_ context.Context, key string) (string, error) {
	user, secret, ok := strings.Cut(key, ".")
	if !ok || secret == "" {
		return "", ErrInvalidCredential
	}
	hash, known := v.hashes[user]
	if !known {
		return "", ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return "", ErrInvalidCredential
	}
	return user, nil
}

// HashAPIKey returns the config entry for a new service account key.
func HashAPIKey(user, secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return user + ":" + string(hash), nil
}
