// Package auth supplies credentials for JFrog REST calls.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Provider defines the interface for authentication providers that can
// obtain tokens and inject them into HTTP requests.
type Provider interface {
	// Token returns the credential placed in the Authorization header.
	Token(ctx context.Context) (string, error)

	// InjectHeader injects the credential into the Authorization header of
	// the provided HTTP request.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// ErrNoCredentials is returned by New when neither a token nor a password is set.
var ErrNoCredentials = errors.New("no credentials configured: set a password or an access token")

// New picks Bearer authentication when an access token is set and HTTP Basic
// otherwise.
func New(username, password, accessToken string) (Provider, error) {
	if token := strings.TrimSpace(accessToken); token != "" {
		return NewAccessTokenProvider(token), nil
	}
	if password == "" {
		return nil, ErrNoCredentials
	}
	return NewBasicProvider(username, password), nil
}
