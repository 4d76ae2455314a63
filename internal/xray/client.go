package xray

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/xrayload/internal/httpclient"
	"github.com/torosent/xrayload/internal/tracing"
)

const (
	repositoriesPath   = "/artifactory/api/repositories/"
	policiesPath       = "/xray/api/v2/policies"
	watchesPath        = "/xray/api/v2/watches"
	artifactStatusPath = "/xray/api/v1/artifact/status"
	violationsPath     = "/xray/api/v1/violations"
)

// ManifestPath locates the pushed image manifest inside a repository.
const ManifestPath = "alpine/3.9/manifest.json"

// Options configure a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client            // defaults to a 30s single-user client
	Auth       httpclient.AuthProvider // optional
	Propagate  bool                    // inject W3C trace headers
}

type Client struct {
	base      *url.URL
	http      *http.Client
	auth      httpclient.AuthProvider
	propagate bool
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("xray: base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("xray: invalid base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("xray: base url %q must use http or https", opts.BaseURL)
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpclient.NewClient(30*time.Second, 1)
	}
	return &Client{
		base:      base,
		http:      client,
		auth:      opts.Auth,
		propagate: opts.Propagate,
	}, nil
}

// CreateRepository creates a local Docker repository indexed by Xray.
func (c *Client) CreateRepository(ctx context.Context, key string) (*Response, error) {
	return c.call(ctx, "create repository", http.MethodPut, repositoriesPath+url.PathEscape(key),
		newRepositoryConfig(key), http.StatusOK)
}

// CreatePolicy creates a security policy with a single high severity rule.
func (c *Client) CreatePolicy(ctx context.Context, name string) (*Response, error) {
	return c.call(ctx, "create policy", http.MethodPost, policiesPath, newPolicyConfig(name), http.StatusCreated)
}

// CreateWatch watches repoKey with the given policy assigned.
func (c *Client) CreateWatch(ctx context.Context, name, repoKey, policyName string) (*Response, error) {
	return c.call(ctx, "create watch", http.MethodPost, watchesPath,
		newWatchConfig(name, repoKey, policyName), http.StatusOK, http.StatusCreated)
}

// CheckScanStatus queries the scan state of the pushed manifest.
func (c *Client) CheckScanStatus(ctx context.Context, repoKey string) (*Response, error) {
	query := artifactStatusQuery{Repo: repoKey, Path: "/" + ManifestPath}
	return c.call(ctx, "check scan status", http.MethodPost, artifactStatusPath, query, http.StatusOK)
}

// GetViolations lists security violations for the manifest under watchName.
func (c *Client) GetViolations(ctx context.Context, watchName, repoKey string) (*Response, error) {
	query := newViolationsQuery(watchName, artifactStatusQuery{Repo: repoKey, Path: ManifestPath})
	return c.call(ctx, "get violations", http.MethodPost, violationsPath, query, http.StatusOK)
}

func (c *Client) call(ctx context.Context, op, method, path string, payload interface{}, accepted ...int) (*Response, error) {
	target := c.base.String() + path
	req, err := httpclient.NewJSONRequest(ctx, method, target, payload, c.auth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Response{Elapsed: time.Since(start)}, fmt.Errorf("%s: %w", op, err)
	}
	body, readErr := httpclient.ReadBody(resp, httpclient.DefaultBodyLimit)
	out := &Response{
		StatusCode: resp.StatusCode,
		Elapsed:    time.Since(start),
		Body:       body,
	}
	if readErr != nil {
		return out, fmt.Errorf("%s: read body: %w", op, readErr)
	}
	for _, code := range accepted {
		if resp.StatusCode == code {
			return out, nil
		}
	}
	return out, &StatusError{Operation: op, StatusCode: resp.StatusCode, Message: out.Message()}
}
