package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, now time.Time) *CookieStore {
	t.Helper()
	cs := NewCookieStore(filepath.Join(t.TempDir(), "auth", "cookies.json"))
	cs.now = func() time.Time { return now }
	return cs
}

func sessionCookies(expires time.Time) []*network.Cookie {
	return []*network.Cookie{
		{Name: cookieAuthToken, Value: "tok", Domain: ".x.com", Path: "/", Expires: float64(expires.Unix())},
		{Name: cookieCSRF, Value: "csrf", Domain: "x.com", Path: "/", Expires: float64(expires.Add(time.Hour).Unix())},
		{Name: "guest_id", Value: "g", Domain: ".twitter.com", Path: "/"},
	}
}

func TestSaveAndValidate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cs := newStore(t, now)
	assert.False(t, cs.IsValid())

	expires := now.Add(30 * 24 * time.Hour)
	require.NoError(t, cs.Save(sessionCookies(expires)))
	assert.True(t, cs.IsValid())

	stored, err := cs.Load()
	require.NoError(t, err)
	assert.Equal(t, expires.Unix(), stored.ExpiresAt.Unix())
	assert.Equal(t, now, stored.CapturedAt.UTC())

	cs.now = func() time.Time { return expires.Add(time.Minute) }
	assert.False(t, cs.IsValid())
}

func TestIsValidRequiresBothCookies(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cs := newStore(t, now)

	cookies := sessionCookies(now.Add(time.Hour))[:1]
	require.NoError(t, cs.Save(cookies))
	assert.False(t, cs.IsValid())
}

func TestXCookiesAndClear(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cs := newStore(t, now)
	require.NoError(t, cs.Save(sessionCookies(now.Add(time.Hour))))

	cookies, err := cs.XCookies()
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, cookieAuthToken, cookies[0].Name)

	require.NoError(t, cs.Clear())
	require.NoError(t, cs.Clear())
	assert.False(t, cs.IsValid())
}

func TestInjectWithoutSession(t *testing.T) {
	m := NewManager(newStore(t, time.Now()))
	assert.ErrorIs(t, m.Inject(t.Context()), ErrNotLoggedIn)
	assert.NoError(t, m.Logout())
}
