package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"medchat/internal/api"

	"golang.org/x/sync/singleflight"
)

// refreshPath is the token refresh endpoint, relative to a candidate base.
const refreshPath = "/auth/refresh"

// refreshRequest is the body of the refresh call.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// DefaultRefreshTimeout bounds a single refresh attempt across all
// candidates.
const DefaultRefreshTimeout = 30 * time.Second

// Refresher renews the access token using the stored refresh token.
//
// Concurrent callers share one network refresh: the first caller starts
// it and everyone arriving while it is in flight receives the same
// result. The in-flight handle is released as soon as the attempt
// settles, so a later caller can start a fresh one.
type Refresher struct {
	store      *Store
	candidates []string
	httpClient *http.Client
	logger     *slog.Logger
	group      singleflight.Group
	now        func() time.Time
}

// RefresherOption configures the refresher.
type RefresherOption func(*Refresher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = logger
	}
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// NewRefresher creates a refresher that probes the given candidate base
// URLs in order.
func NewRefresher(store *Store, candidates []string, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:      store,
		candidates: candidates,
		httpClient: &http.Client{Timeout: DefaultRefreshTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Refresh obtains a new access token, or returns "" when no token could
// be obtained. It never returns an error: transient network failures
// leave the stored refresh token intact for a later retry, and a
// definitive rejection (401) clears the session, which callers observe
// as "user must sign in again".
func (r *Refresher) Refresh(ctx context.Context) string {
	// All concurrent callers attach to the same in-flight attempt.
	result, _, shared := r.group.Do("refresh", func() (interface{}, error) {
		return r.doRefresh(ctx), nil
	})

	token := result.(string)
	if shared {
		r.logger.Debug("Joined in-flight token refresh", "obtained_token", token != "")
	}
	return token
}

// doRefresh performs one refresh attempt against the candidate list.
func (r *Refresher) doRefresh(ctx context.Context) string {
	snap := r.store.Get()
	if !snap.HasRefreshToken() {
		return ""
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: snap.RefreshToken})
	if err != nil {
		return ""
	}

	for _, base := range r.candidates {
		endpoint := base + refreshPath

		resp, reqErr := r.postRefresh(ctx, endpoint, body)
		if reqErr != nil {
			// No response at all: try the next candidate.
			r.logger.Debug("Refresh candidate unreachable",
				"endpoint", endpoint,
				"error", reqErr)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			r.logger.Debug("Refresh response read failed",
				"endpoint", endpoint,
				"error", readErr)
			continue
		}

		// Any HTTP response is definitive: the server was reached and
		// made a decision, so the remaining candidates are not tried.
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			// The refresh token itself is invalid. Keeping it would just
			// replay this failure on every call.
			r.logger.Info("Refresh token rejected, clearing session",
				"endpoint", endpoint)
			r.store.Clear()
			return ""

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return r.applyRefreshResponse(respBody, endpoint)

		default:
			r.logger.Warn("Token refresh failed",
				"endpoint", endpoint,
				"status", resp.StatusCode,
				"message", api.MessageFromBody(respBody, resp.StatusCode))
			return ""
		}
	}

	// Every candidate network-failed. The refresh token may still be
	// valid, so the session is left untouched.
	r.logger.Warn("All refresh candidates unreachable",
		"candidates", len(r.candidates))
	return ""
}

// postRefresh issues the refresh call against one candidate endpoint.
func (r *Refresher) postRefresh(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return r.httpClient.Do(req)
}

// applyRefreshResponse persists a successful refresh and returns the
// new access token.
func (r *Refresher) applyRefreshResponse(body []byte, endpoint string) string {
	var token api.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		r.logger.Warn("Refresh response is not valid JSON",
			"endpoint", endpoint,
			"error", err)
		return ""
	}

	if token.AccessToken == "" {
		r.logger.Warn("Refresh response carried no access token",
			"endpoint", endpoint)
		return ""
	}

	tok := token.Token(r.now())
	r.store.SetToken(tok)

	r.logger.Debug("Access token refreshed",
		"endpoint", endpoint,
		"expires_at", tok.Expiry.Format(time.RFC3339))
	return tok.AccessToken
}
