package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"medchat/pkg/logging"

	"golang.org/x/oauth2"
)

// DefaultStorageDir is the default directory for persisted credentials,
// relative to the user's home directory.
const DefaultStorageDir = ".config/medchat"

// credentialsFileName is the fixed file name for the credential record.
const credentialsFileName = "credentials.json"

// Snapshot is a read-only copy of the persisted session. Absent fields
// are zero values; when AccessToken is empty, ExpiresAt is meaningless
// and must be ignored.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	APIKey       string
}

// HasAccessToken reports whether the snapshot carries an access token.
func (s Snapshot) HasAccessToken() bool {
	return s.AccessToken != ""
}

// HasRefreshToken reports whether the snapshot carries a refresh token.
func (s Snapshot) HasRefreshToken() bool {
	return s.RefreshToken != ""
}

// ExpiringSoon reports whether the access token expires within the
// lookahead window of now. Tokens without an expiry never expire.
func (s Snapshot) ExpiringSoon(now time.Time, lookahead time.Duration) bool {
	if !s.HasAccessToken() || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(lookahead).Before(s.ExpiresAt)
}

// ToOAuth2Token converts the snapshot to an oauth2.Token for callers
// that integrate with the standard token plumbing.
func (s Snapshot) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.ExpiresAt,
	}
}

// Update is a partial session mutation. Nil fields are left untouched;
// non-nil fields overwrite, including overwriting with the empty value.
type Update struct {
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
	APIKey       *string
}

// storedCredentials is the on-disk shape. Expiry is epoch milliseconds
// to match what other clients of the same account write.
type storedCredentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

// StoreConfig configures the credential store.
type StoreConfig struct {
	// StorageDir is the directory for the credentials file.
	// Defaults to ~/.config/medchat.
	StorageDir string

	// FileMode enables file-based persistence. If false, credentials are
	// in-memory only (used by tests and ephemeral sessions).
	FileMode bool
}

// Store owns the persisted session credentials: access token, refresh
// token, absolute expiry, and an optional static API key.
//
// The store is deliberately fail-soft. If the storage directory cannot
// be created or the file cannot be read or written, Get returns the
// empty session and Set/Clear become no-ops on disk. The store is
// consulted on every outgoing call, so a broken filesystem must degrade
// the session, not the whole client.
type Store struct {
	mu       sync.RWMutex
	path     string
	fileMode bool
	degraded bool
	cached   storedCredentials
	loaded   bool
}

// NewStore creates a credential store with the given configuration.
func NewStore(cfg StoreConfig) *Store {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logging.Warn("Session", "Cannot determine home directory, credentials will not persist: %v", err)
			return &Store{degraded: true}
		}
		storageDir = filepath.Join(homeDir, DefaultStorageDir)
	}

	store := &Store{
		path:     filepath.Join(storageDir, credentialsFileName),
		fileMode: cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			logging.Warn("Session", "Cannot create credential directory %s, credentials will not persist: %v", storageDir, err)
			store.degraded = true
		}
	}

	return store
}

// Path returns the credentials file location, or empty when the store
// is memory-only or degraded.
func (s *Store) Path() string {
	if !s.fileMode || s.degraded {
		return ""
	}
	return s.path
}

// Get returns a snapshot of the current session. It never fails: any
// storage problem yields the all-absent session.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	return s.snapshotLocked()
}

// Set applies a partial mutation and persists the result.
func (s *Store) Set(update Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	if update.AccessToken != nil {
		s.cached.AccessToken = *update.AccessToken
	}
	if update.RefreshToken != nil {
		s.cached.RefreshToken = *update.RefreshToken
	}
	if update.ExpiresAt != nil {
		if update.ExpiresAt.IsZero() {
			s.cached.ExpiresAt = 0
		} else {
			s.cached.ExpiresAt = update.ExpiresAt.UnixMilli()
		}
	}
	if update.APIKey != nil {
		s.cached.APIKey = *update.APIKey
	}

	s.persistLocked()
}

// SetTokens stores a freshly issued token triple in one step.
func (s *Store) SetTokens(accessToken, refreshToken string, expiresAt time.Time) {
	s.Set(Update{
		AccessToken:  &accessToken,
		RefreshToken: &refreshToken,
		ExpiresAt:    &expiresAt,
	})
}

// SetToken persists the token triple carried by an oauth2.Token. The
// write-side counterpart of Snapshot.ToOAuth2Token: auth responses are
// converted once and flow to the store in this form.
func (s *Store) SetToken(tok *oauth2.Token) {
	s.SetTokens(tok.AccessToken, tok.RefreshToken, tok.Expiry)
}

// Clear removes all credentials, in memory and on disk. The API key is
// cleared too: it is part of the session record, not the config file.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = storedCredentials{}
	s.loaded = true

	if s.fileMode && !s.degraded {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			logging.Warn("Session", "Failed to remove credentials file: %v", err)
		}
	}
}

// Reload drops the in-memory cache so the next Get re-reads the file.
// Used when another process may have rewritten the credentials.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = false
	s.cached = storedCredentials{}
}

// loadLocked populates the cache from disk once. Requires s.mu held.
func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true

	if !s.fileMode || s.degraded {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Session", "Failed to read credentials file: %v", err)
		}
		return
	}

	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		// A corrupt file is treated as an empty session rather than an
		// error; the next successful login rewrites it.
		logging.Warn("Session", "Credentials file is corrupt, ignoring: %v", err)
		return
	}

	s.cached = creds
}

// persistLocked writes the cache to disk. Requires s.mu held.
func (s *Store) persistLocked() {
	if !s.fileMode || s.degraded {
		return
	}

	data, err := json.MarshalIndent(s.cached, "", "  ")
	if err != nil {
		logging.Warn("Session", "Failed to encode credentials: %v", err)
		return
	}

	// Owner read/write only: the file holds live credentials.
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		logging.Warn("Session", "Failed to write credentials file: %v", err)
	}
}

// snapshotLocked converts the cached record to a Snapshot. Requires
// s.mu held (read or write).
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		AccessToken:  s.cached.AccessToken,
		RefreshToken: s.cached.RefreshToken,
		APIKey:       s.cached.APIKey,
	}
	if s.cached.ExpiresAt > 0 && s.cached.AccessToken != "" {
		snap.ExpiresAt = time.UnixMilli(s.cached.ExpiresAt)
	}
	return snap
}
