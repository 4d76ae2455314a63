package auth

import (
	"context"
	"encoding/base64"
	"net/http"
)

// BasicProvider authenticates with a user name and password.
type BasicProvider struct {
	username string
	password string
}

// NewBasicProvider creates a BasicProvider.
func NewBasicProvider(username, password string) *BasicProvider {
	return &BasicProvider{username: username, password: password}
}

// Username returns the configured user, used for docker login.
func (p *BasicProvider) Username() string {
	return p.username
}

// Token returns the base64 user:password pair.
func (p *BasicProvider) Token(ctx context.Context) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password)), nil
}

// InjectHeader sets HTTP Basic credentials on req.
func (p *BasicProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.SetBasicAuth(p.username, p.password)
	return nil
}

// Close is a no-op.
func (p *BasicProvider) Close() error {
	return nil
}
