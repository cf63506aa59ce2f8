// Package app wires the overlay, the analysis worker and their surrounding
// services, and backs the tray menu and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ibeckermayer/stereotweet/internal/auth"
	"github.com/ibeckermayer/stereotweet/internal/browser"
	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/store"
)

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	authManager *auth.Manager // immutable after creation
	cache       *store.Cache  // immutable after creation

	config *config.Config
	// stop cancels the running overlay; nil when none runs.
	stop context.CancelFunc
	done chan struct{}
}

// New creates a new App instance.
func New(cfg *config.Config, authManager *auth.Manager, cache *store.Cache) *App {
	return &App{
		config:      cfg,
		authManager: authManager,
		cache:       cache,
	}
}

// IsAuthenticated checks if X.com credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// TriggerLogin starts the X.com login flow.
func (a *App) TriggerLogin() error {
	slog.Info("[app] login triggered, opening browser")
	if err := a.authManager.Login(context.Background()); err != nil {
		slog.Error("[app] login failed", slog.Any("error", err))
		return err
	}
	return nil
}

// TriggerLogout clears stored X.com credentials.
func (a *App) TriggerLogout() error {
	if err := a.authManager.Logout(); err != nil {
		slog.Error("[app] logout failed", slog.Any("error", err))
		return err
	}
	return nil
}

// IsRunning reports whether an overlay browser is open.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stop != nil
}

// StartOverlay opens X in a browser with the overlay attached. It returns
// once the page has loaded; the session keeps running in the background
// until StopOverlay or the browser is closed.
func (a *App) StartOverlay() error {
	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		return errors.New("overlay already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.stop, a.done = cancel, done
	cfg := a.config
	a.mu.Unlock()

	session, closeTab, err := OpenSession(ctx, cfg, a.authManager, a.cache, SessionOptions{})
	if err != nil {
		a.clear(done)
		cancel()
		return err
	}

	go func() {
		defer a.clear(done)
		defer cancel()
		defer closeTab()
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("[app] overlay stopped", slog.Any("error", err))
		}
	}()
	return nil
}

func (a *App) clear(done chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done == done {
		a.stop, a.done = nil, nil
	}
	close(done)
}

// StopOverlay closes the overlay browser and waits for the session to end.
func (a *App) StopOverlay() {
	a.mu.RLock()
	stop, done := a.stop, a.done
	a.mu.RUnlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// ClearCache deletes every cached result.
func (a *App) ClearCache(ctx context.Context) error {
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	slog.Info("[app] result cache cleared")
	return nil
}

// ReloadConfig reloads the configuration from disk. A running overlay keeps
// its settings until it is restarted; the API key is re-read on every
// request regardless.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.mu.Unlock()

	slog.Info("[app] configuration reloaded")
	return nil
}

// OpenSession starts a browser, replays the stored X session into it, loads
// the configured start page and wires a Session to it. closeTab shuts the
// browser down.
func OpenSession(ctx context.Context, cfg *config.Config, authManager *auth.Manager, cache *store.Cache, opts SessionOptions) (session *Session, closeTab func(), err error) {
	tab, cancel, err := browser.NewTab(ctx, cfg.Overlay.Headless)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	if err := authManager.Inject(tab); err != nil {
		if !errors.Is(err, auth.ErrNotLoggedIn) {
			return nil, nil, err
		}
		slog.Warn("[app] no stored X session, the page will ask you to log in")
	}

	chrome, err := page.NewChrome(tab)
	if err != nil {
		return nil, nil, err
	}
	if err := chrome.Navigate(tab, cfg.Overlay.StartURL); err != nil {
		return nil, nil, err
	}

	session, err = NewSession(cfg, chrome, cache, opts)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("[app] overlay attached", slog.String("url", cfg.Overlay.StartURL))
	return session, cancel, nil
}
