// Package identity resolves the caller's user id from request credentials.
// Handlers never see a request without one.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"foretrack/internal/core"
	"foretrack/internal/log"
)

// Verifier maps a bearer credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// ErrInvalidCredential is returned by verifiers that do not accept a token.
var ErrInvalidCredential = errors.New("invalid credential")

type ctxKey struct{}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns core.ErrUnauthenticated when no user is attached.
func UserID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		return "", core.ErrUnauthenticated
	}
	return id, nil
}

// Chain tries verifiers in order and returns the first success.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, credential string) (string, error) {
	err := ErrInvalidCredential
	for _, v := range c {
		id, vErr := v.Verify(ctx, credential)
		if vErr == nil {
			return id, nil
		}
		err = vErr
	}
	return "", err
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a verifiable bearer token with 401
// and attaches the user id otherwise.
func Middleware(v Verifier, logger *log.Logger) func(http.Handler) http.Handler {
	logger = logger.WithComponent(log.ComponentIdentity)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			userID, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.DebugContext(r.Context(), "Credential rejected", log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="foretrack"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
