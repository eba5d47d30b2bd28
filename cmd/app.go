package cmd

import (
	"context"
	"fmt"
	"time"

	"medchat/internal/api"
	"medchat/internal/config"
	"medchat/internal/provision"
	"medchat/internal/session"
	"medchat/internal/stream"
)

// app wires the session, API, streaming, and provisioning components
// for one CLI invocation.
type app struct {
	cfg       config.MedchatConfig
	store     *session.Store
	refresher *session.Refresher
	headers   *session.HeaderProvider
	client    *api.Client
	streamer  *stream.Client
	machine   *provision.Machine
	watcher   *session.Watcher
}

// newApp loads configuration and constructs the component graph.
// The caller must Close the returned app.
func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store := session.NewStore(session.StoreConfig{
		StorageDir: path,
		FileMode:   true,
	})

	refresher := session.NewRefresher(store, cfg.API.RefreshCandidates())
	headers := session.NewHeaderProvider(store, refresher, session.HeaderProviderConfig{
		Lookahead: cfg.Session.RefreshLookahead(),
		APIKey:    cfg.API.APIKey,
	})

	client := api.NewClient(cfg.API.BaseURL, api.WithHeaderProvider(headers))
	streamer := stream.NewClient(cfg.API.BaseURL, stream.WithHeaderProvider(headers))
	machine := provision.NewMachine(client, provision.MachineConfig{
		Timeout: cfg.Session.ProvisionTimeout(),
	})

	a := &app{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		headers:   headers,
		client:    client,
		streamer:  streamer,
		machine:   machine,
		watcher:   session.NewWatcher(store, nil),
	}

	// Pick up tokens refreshed by a concurrent medchat process. A
	// failed watch is not fatal; the session still works, just without
	// cross-process reload.
	if err := a.watcher.Start(); err != nil {
		a.watcher = nil
	}

	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
}

// signedIn reports whether a session exists at all.
func (a *app) signedIn() bool {
	snap := a.store.Get()
	return snap.HasAccessToken() || snap.HasRefreshToken()
}

// persistTokens stores a freshly issued token triple.
func (a *app) persistTokens(token *api.TokenResponse) {
	a.store.SetToken(token.Token(time.Now()))
}

// ensurePatient resolves the patient the session operates on: the
// explicitly requested ID if given, otherwise whatever the
// provisioning flow selects or creates for the signed-in identity.
func (a *app) ensurePatient(ctx context.Context, explicitID string) (*api.Patient, error) {
	if explicitID != "" {
		return &api.Patient{ID: explicitID}, nil
	}

	if patient := a.machine.Patient(); patient != nil {
		return patient, nil
	}

	profile, err := a.client.GetProfile(ctx)
	if err != nil {
		return nil, err
	}

	return a.machine.Ensure(ctx, provision.Identity{
		Email:    profile.Email,
		FullName: profile.FullName,
	})
}
