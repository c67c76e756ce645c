// Package auth resolves API callers from bearer tokens. Site ownership
// checks compare the resolved caller against the site's owner, so every
// mutating route is gated on both a valid token and ownership.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no valid
// credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Caller identifies an authenticated API user.
type Caller struct {
	UserID string
}

// Authenticator resolves the caller behind an incoming request.
type Authenticator interface {
	// Authenticate returns the caller, or ErrUnauthenticated when the
	// request has no valid credentials.
	Authenticate(r *http.Request) (*Caller, error)
}

// StaticTokenAuthenticator maps bearer tokens to user IDs from static
// configuration. Suitable for single-tenant deployments and tests.
type StaticTokenAuthenticator struct {
	tokens map[string]string // token -> user ID
}

// NewStaticTokenAuthenticator creates an Authenticator over the given
// token table.
func NewStaticTokenAuthenticator(tokens map[string]string) *StaticTokenAuthenticator {
	copied := make(map[string]string, len(tokens))
	for token, user := range tokens {
		copied[token] = user
	}
	return &StaticTokenAuthenticator{tokens: copied}
}

func (a *StaticTokenAuthenticator) Authenticate(r *http.Request) (*Caller, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, ErrUnauthenticated
	}
	userID, ok := a.tokens[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &Caller{UserID: userID}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
