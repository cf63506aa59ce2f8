package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/stereotweet/internal/browser"
	"github.com/ibeckermayer/stereotweet/internal/waitfor"
)

const loginURL = "https://x.com/login"

// ErrNotLoggedIn is returned when no usable session is stored.
var ErrNotLoggedIn = errors.New("not logged in to X")

// Manager handles X.com authentication
type Manager struct {
	cookieStore  *CookieStore
	loginTimeout time.Duration
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore) *Manager {
	return &Manager{cookieStore: cookieStore, loginTimeout: 5 * time.Minute}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a visible browser window on the X login page and stores the
// session once the user reaches the home timeline.
func (m *Manager) Login(ctx context.Context) error {
	tab, cancel, err := browser.NewTab(ctx, false)
	if err != nil {
		return err
	}
	defer cancel()

	if err := chromedp.Run(tab, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	slog.Info("[auth] waiting for login", slog.Duration("timeout", m.loginTimeout))

	cookies, ok, err := waitfor.Until(tab, waitfor.Options{
		Interval: 2 * time.Second,
		Timeout:  m.loginTimeout,
	}, func(ctx context.Context) ([]*network.Cookie, bool, error) {
		var url string
		if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
			return nil, false, nil
		}
		if !isHome(url) {
			return nil, false, nil
		}
		cookies, err := extractCookies(ctx)
		if err != nil {
			return nil, false, nil
		}
		return cookies, hasSession(cookies), nil
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("login timeout exceeded")
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	slog.Info("[auth] session saved")
	return nil
}

func isHome(url string) bool {
	return url == "https://x.com/home" || url == "https://twitter.com/home"
}

func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

// Inject replays the stored session into the tab in ctx. Without a stored
// session it returns ErrNotLoggedIn and the tab stays logged out.
func (m *Manager) Inject(ctx context.Context) error {
	if !m.cookieStore.IsValid() {
		return ErrNotLoggedIn
	}
	cookies, err := m.cookieStore.XCookies()
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	if err := browser.InjectCookies(ctx, cookies); err != nil {
		return fmt.Errorf("inject cookies: %w", err)
	}
	return nil
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	if err := m.cookieStore.Clear(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	slog.Info("[auth] session cleared")
	return nil
}
