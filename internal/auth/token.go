package auth

import (
	"context"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// AccessTokenProvider authenticates with a JFrog access token. The token is
// scoped identity, so it also serves as the docker login secret when no
// password is configured.
type AccessTokenProvider struct {
	token string
}

// NewAccessTokenProvider strips an accidental "Bearer " prefix from token.
func NewAccessTokenProvider(token string) *AccessTokenProvider {
	token = strings.TrimSpace(token)
	if len(token) > len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	return &AccessTokenProvider{token: token}
}

func (p *AccessTokenProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

func (p *AccessTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", bearerPrefix+p.token)
	return nil
}

func (p *AccessTokenProvider) Close() error { return nil }
