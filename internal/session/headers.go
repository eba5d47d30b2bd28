package session

import (
	"context"
	"log/slog"
	"time"
)

// Header names attached to outgoing calls.
const (
	authorizationHeader = "Authorization"
	apiKeyHeader        = "X-API-Key"
)

// HeaderProvider resolves the auth headers for an outgoing call. It
// renews an expiring access token before handing out headers, so no
// call site ever sends a request with a token about to lapse.
type HeaderProvider struct {
	store     *Store
	refresher *Refresher
	lookahead time.Duration
	// apiKey is the statically configured fallback key. A key persisted
	// in the credential store takes precedence.
	apiKey string
	logger *slog.Logger
	now    func() time.Time
}

// HeaderProviderConfig configures the header provider.
type HeaderProviderConfig struct {
	// Lookahead is the window before expiry within which a token is
	// refreshed before use.
	Lookahead time.Duration

	// APIKey is the statically configured fallback key, may be empty.
	APIKey string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHeaderProvider creates a header provider over the given store and
// refresher.
func NewHeaderProvider(store *Store, refresher *Refresher, cfg HeaderProviderConfig) *HeaderProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HeaderProvider{
		store:     store,
		refresher: refresher,
		lookahead: cfg.Lookahead,
		apiKey:    cfg.APIKey,
		logger:    logger,
		now:       time.Now,
	}
}

// Headers returns the header set for an outgoing call: a bearer header
// when a session exists, the API key fallback otherwise, or no auth
// header at all. It never fails; a failed refresh degrades to whatever
// credentials remain.
func (p *HeaderProvider) Headers(ctx context.Context) map[string]string {
	snap := p.store.Get()

	if snap.ExpiringSoon(p.now(), p.lookahead) {
		if token := p.refresher.Refresh(ctx); token != "" {
			return map[string]string{authorizationHeader: "Bearer " + token}
		}
		// The refresh may have cleared the session (invalid refresh
		// token) or left it untouched (network outage). Re-read rather
		// than trust the stale snapshot.
		snap = p.store.Get()
		p.logger.Debug("Token refresh yielded no token, using remaining credentials",
			"has_access_token", snap.HasAccessToken(),
			"has_api_key", snap.APIKey != "" || p.apiKey != "")
	}

	if snap.HasAccessToken() {
		return map[string]string{authorizationHeader: "Bearer " + snap.AccessToken}
	}

	if snap.APIKey != "" {
		return map[string]string{apiKeyHeader: snap.APIKey}
	}
	if p.apiKey != "" {
		return map[string]string{apiKeyHeader: p.apiKey}
	}

	// No credentials at all. The server will answer 401 and upstream
	// surfaces it as an authentication error.
	return map[string]string{}
}
