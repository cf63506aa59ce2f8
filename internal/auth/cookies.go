// Package auth captures and replays the X session used by the overlay tab.
package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/stereotweet/internal/config"
)

// Session cookies X requires for a logged-in timeline.
const (
	cookieAuthToken = "auth_token"
	cookieCSRF      = "ct0"
)

// CookieStore persists X session cookies as JSON.
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk. The session expires with the earliest of
// its auth cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name != cookieAuthToken && c.Name != cookieCSRF {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
			earliestExpiry = exp
		}
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: cs.now(),
		ExpiresAt:  earliestExpiry,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// IsValid reports whether an unexpired session with both auth cookies is
// stored.
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if cs.now().After(stored.ExpiresAt) {
		return false
	}
	return hasSession(stored.Cookies)
}

func hasSession(cookies []*network.Cookie) bool {
	var auth, csrf bool
	for _, c := range cookies {
		switch {
		case c.Name == cookieAuthToken && c.Value != "":
			auth = true
		case c.Name == cookieCSRF && c.Value != "":
			csrf = true
		}
	}
	return auth && csrf
}

// Clear removes stored cookies. Clearing an empty store is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// XCookies returns the stored cookies scoped to x.com.
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if strings.TrimPrefix(c.Domain, ".") == "x.com" {
			out = append(out, c)
		}
	}
	return out, nil
}
