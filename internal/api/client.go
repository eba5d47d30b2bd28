package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultHTTPTimeout is the default timeout for plain REST requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ClientIDHeader carries a per-process identifier so server logs can
	// correlate requests from one CLI invocation.
	ClientIDHeader = "X-Medchat-Client"
)

// HeaderProvider supplies the auth headers to attach to an outgoing
// request. Implementations must never fail: a request without auth
// headers simply earns a 401 from the server.
type HeaderProvider interface {
	Headers(ctx context.Context) map[string]string
}

// Client is a typed HTTP client for the clinical-assistant REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	headers    HeaderProvider
	clientID   string
}

// Option configures the API client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHeaderProvider sets the auth header source. Without one, requests
// are sent unauthenticated.
func WithHeaderProvider(headers HeaderProvider) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		clientID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges email/password credentials for a token triple.
// The caller is responsible for persisting the result.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var token TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &token, false)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Signup creates an account and returns its initial token triple.
func (c *Client) Signup(ctx context.Context, email, password, fullName string) (*TokenResponse, error) {
	var token TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/signup", signupRequest{Email: email, Password: password, FullName: fullName}, &token, false)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetProfile fetches the signed-in identity's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListPatients returns the patients associated with the identity.
func (c *Client) ListPatients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	if err := c.doJSON(ctx, http.MethodGet, "/patients/", nil, &patients, true); err != nil {
		return nil, err
	}
	return patients, nil
}

// CreatePatient creates a patient record and returns it.
func (c *Client) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	var patient Patient
	if err := c.doJSON(ctx, http.MethodPost, "/patients/", req, &patient, true); err != nil {
		return nil, err
	}
	return &patient, nil
}

// doJSON performs a JSON request against the API and decodes the
// response into out (which may be nil for empty responses).
// Failures are always typed: *Error with a status for definitive
// responses, *Error with Kind network for transport failures.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out interface{}, withAuth bool) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientIDHeader, c.clientID)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth && c.headers != nil {
		for k, v := range c.headers.Headers(ctx) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("API request failed before a response was received",
			"method", method,
			"endpoint", endpoint,
			"error", err)
		return NewNetworkError(err, endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError(err, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("API request returned an error status",
			"method", method,
			"endpoint", endpoint,
			"status", resp.StatusCode)
		return NewStatusError(resp.StatusCode, respBody, endpoint)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}

	return nil
}
