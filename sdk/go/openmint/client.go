package openmint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the OpenMint Chain admin REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiToken   string
}

// Deployment mirrors one deployment record exposed by the API.
type Deployment struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ThreadID       string `json:"thread_id"`
	State          string `json:"state"`
	FailedStage    string `json:"failed_stage,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	TokenName      string `json:"token_name,omitempty"`
	TokenSymbol    string `json:"token_symbol,omitempty"`
	MintAddress    string `json:"mint_address,omitempty"`
	DeployURL      string `json:"deploy_url,omitempty"`
	Signature      string `json:"signature,omitempty"`
	SearchAttempts uint64 `json:"search_attempts"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      int64  `json:"created_at"`
}

// Health is the payload returned by the liveness probe.
type Health struct {
	Status string `json:"status"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("openmint api error (%d): %s", e.StatusCode, e.Message)
}

// Option adjusts optional client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAPIToken sets the bearer token attached to /api/v1 requests.
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.apiToken = strings.TrimSpace(token)
	}
}

// NewClient instantiates a client for the OpenMint Chain admin API.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ListDeployments fetches the most recent deployment records. A non-positive
// limit lets the server apply its default.
func (c *Client) ListDeployments(ctx context.Context, limit int) ([]Deployment, error) {
	endpoint := "/api/v1/deployments"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var deployments []Deployment
	if err := c.get(ctx, endpoint, &deployments, true); err != nil {
		return nil, err
	}
	return deployments, nil
}

// ListChains fetches the names of all registered chain endpoints.
func (c *Client) ListChains(ctx context.Context) ([]string, error) {
	var payload struct {
		Chains []string `json:"chains"`
	}
	if err := c.get(ctx, "/api/v1/chains", &payload, true); err != nil {
		return nil, err
	}
	return payload.Chains, nil
}

// Health probes the daemon liveness endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.get(ctx, "/healthz", &health, false); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any, withAuth bool) error {
	rawPath := endpoint
	rawQuery := ""
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		rawPath, rawQuery = endpoint[:idx], endpoint[idx+1:]
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, rawPath), RawQuery: rawQuery}
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if withAuth && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
