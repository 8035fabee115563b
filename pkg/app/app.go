// Package app wires the session store, REST client and realtime channel
// into one explicitly constructed object per process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/NicolasHaas/cliniclink/pkg/api"
	"github.com/NicolasHaas/cliniclink/pkg/config"
	"github.com/NicolasHaas/cliniclink/pkg/metrics"
	"github.com/NicolasHaas/cliniclink/pkg/model"
	"github.com/NicolasHaas/cliniclink/pkg/realtime"
	"github.com/NicolasHaas/cliniclink/pkg/session"
	"github.com/NicolasHaas/cliniclink/pkg/transport"
)

// App owns exactly one of each shared component.
type App struct {
	Config   *config.Config
	Sessions session.Store
	Metrics  *metrics.Metrics
	HTTP     *http.Client
	Client   *api.Client
	API      *api.Services
	Channel  *realtime.Channel

	closeStore func() error
}

// Open builds an App backed by the SQLite session database in cfg.DBPath.
func Open(cfg *config.Config) (*App, error) {
	sealer, err := cfg.Sealer()
	if err != nil {
		return nil, err
	}
	st, err := session.OpenSQL(cfg.DBPath, sealer)
	if err != nil {
		return nil, fmt.Errorf("app: open session store: %w", err)
	}
	a, err := New(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.closeStore = st.Close
	return a, nil
}

// New builds an App around an existing store. The caller keeps ownership of store.
func New(cfg *config.Config, store session.Store) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := metrics.New()
	httpClient := transport.NewHTTPClient(cfg.Transport(), store, m)

	client, err := api.NewClient(cfg.APIBaseURL, httpClient, m)
	if err != nil {
		return nil, err
	}
	ch, err := realtime.New(realtime.Options{
		URL:      cfg.WSURL,
		Sessions: store,
		Backoff:  cfg.Backoff(),
		Metrics:  m,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Sessions: store,
		Metrics:  m,
		HTTP:     httpClient,
		Client:   client,
		API:      api.NewServices(client, store),
		Channel:  ch,
	}, nil
}

// Login authenticates, persists the session and opens the realtime channel.
func (a *App) Login(ctx context.Context, email, password string) (model.LoginData, error) {
	data, err := a.API.Auth.Login(ctx, email, password)
	if err != nil {
		return data, err
	}
	slog.Info("logged in", "user", data.UserID, "role", data.Role)
	a.Channel.Connect()
	return data, nil
}

// Register creates an account and, when the server returned a token, opens
// the channel so the approval decision can be pushed.
func (a *App) Register(ctx context.Context, req model.RegisterRequest) (model.LoginData, error) {
	data, err := a.API.Auth.Register(ctx, req)
	if err != nil {
		return data, err
	}
	if data.Token != "" {
		a.Channel.Connect()
	}
	return data, nil
}

// Resume reopens the channel for a session restored from disk.
func (a *App) Resume() bool {
	if !a.Sessions.Get().LoggedIn {
		return false
	}
	a.Channel.Connect()
	return true
}

// Logout closes the channel first so no reconnect can fire with a token
// that is about to disappear, then clears the session.
func (a *App) Logout() error {
	a.Channel.Disconnect()
	return a.API.Auth.Logout()
}

// Close stops the channel and releases the store if Open created it.
func (a *App) Close() error {
	a.Channel.Close()
	a.HTTP.CloseIdleConnections()
	if a.closeStore == nil {
		return nil
	}
	if err := a.closeStore(); err != nil {
		return fmt.Errorf("app: close session store: %w", err)
	}
	return nil
}
