package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBodyLimit caps how much of a response body ReadBody keeps.
const DefaultBodyLimit = 1 << 20

// AuthProvider injects credentials into outgoing requests.
type AuthProvider interface {
	InjectHeader(ctx context.Context, req *http.Request) error
}

// NewJSONRequest builds a request whose body is payload encoded as JSON. A nil
// payload sends no body.
func NewJSONRequest(ctx context.Context, method, target string, payload interface{}, provider AuthProvider) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		}
	}
	req.Header.Set("Accept", "application/json")

	if provider != nil {
		if err := provider.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("auth provider inject header: %w", err)
		}
	}
	return req, nil
}

// ReadBody reads up to limit bytes of resp's body and closes it. Whatever is
// left unread is discarded so the connection can be reused.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	_, _ = io.Copy(io.Discard, resp.Body)
	return data, err
}

// NewClient returns a client for one JFrog host shared by the given number
// of simulated users. The idle pool keeps a connection per user so steady-state requests
// skip the TLS handshake. A timeout of zero or less disables the per-request
// limit.
func NewClient(timeout time.Duration, users int) *http.Client {
	if users < 1 {
		users = 1
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 2 * users
	transport.MaxIdleConnsPerHost = users
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{
		Timeout:   max(timeout, 0),
		Transport: transport,
	}
}
