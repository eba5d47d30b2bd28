package config

import (
	"net/url"
	"strings"
	"time"
)

// MedchatConfig is the top-level configuration structure for medchat.
type MedchatConfig struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig defines how to reach the remote clinical-assistant API.
type APIConfig struct {
	// BaseURL is the primary API origin, e.g. https://api.example.com
	BaseURL string `yaml:"baseURL,omitempty"`

	// APIKey is an optional static key used when no user session exists.
	APIKey string `yaml:"apiKey,omitempty"`

	// AllowLoopback enables local-loopback refresh candidates. Intended
	// for local development only; production deployments should leave
	// this off so a misconfigured client never probes localhost.
	AllowLoopback bool `yaml:"allowLoopback,omitempty"`
}

// SessionConfig tunes credential handling.
type SessionConfig struct {
	// RefreshLookaheadSeconds is how long before expiry a token is
	// considered "expiring soon" and refreshed ahead of a call (default: 60).
	RefreshLookaheadSeconds int `yaml:"refreshLookaheadSeconds,omitempty"`

	// ProvisionTimeoutSeconds bounds the patient provisioning flow at
	// session start (default: 15).
	ProvisionTimeoutSeconds int `yaml:"provisionTimeoutSeconds,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error (default: info)
}

const (
	// DefaultBaseURL is used when no base URL is configured. The local
	// development server listens here.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultRefreshLookahead is the window before expiry within which a
	// token is refreshed before use.
	DefaultRefreshLookahead = 60 * time.Second

	// DefaultProvisionTimeout bounds the provisioning state machine.
	DefaultProvisionTimeout = 15 * time.Second
)

// GetDefaultConfig returns the default configuration for medchat.
func GetDefaultConfig() MedchatConfig {
	return MedchatConfig{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
		},
		Session: SessionConfig{
			RefreshLookaheadSeconds: int(DefaultRefreshLookahead / time.Second),
			ProvisionTimeoutSeconds: int(DefaultProvisionTimeout / time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// RefreshLookahead returns the configured lookahead as a duration,
// falling back to the default when unset or nonsensical.
func (c SessionConfig) RefreshLookahead() time.Duration {
	if c.RefreshLookaheadSeconds <= 0 {
		return DefaultRefreshLookahead
	}
	return time.Duration(c.RefreshLookaheadSeconds) * time.Second
}

// ProvisionTimeout returns the configured provisioning timeout as a
// duration, falling back to the default when unset or nonsensical.
func (c SessionConfig) ProvisionTimeout() time.Duration {
	if c.ProvisionTimeoutSeconds <= 0 {
		return DefaultProvisionTimeout
	}
	return time.Duration(c.ProvisionTimeoutSeconds) * time.Second
}

// RefreshCandidates returns the ordered list of base URLs the refresh
// coordinator probes. The primary configured origin always comes first,
// followed by its origin root when the base URL carries a path, and
// finally the loopback variants when AllowLoopback is set.
func (c APIConfig) RefreshCandidates() []string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	candidates := []string{base}

	if u, err := url.Parse(base); err == nil && u.Path != "" && u.Path != "/" {
		origin := u.Scheme + "://" + u.Host
		if origin != base {
			candidates = append(candidates, origin)
		}
	}

	if c.AllowLoopback {
		for _, loopback := range []string{"http://localhost:8000", "http://127.0.0.1:8000"} {
			if loopback != base {
				candidates = append(candidates, loopback)
			}
		}
	}

	return candidates
}
