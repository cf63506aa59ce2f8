package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/stereotweet/internal/types"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func openCache(t *testing.T, clock *fakeClock) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	c, err := Open(path, Options{TTL: 24 * time.Hour, MemoSize: 8, Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func result(id string) types.AnalysisResult {
	return types.AnalysisResult{OK: true, TweetID: id, ImageBase64: "iVBOR", Keywords: "taxes", Reasoning: "fiscal"}
}

func TestCacheRoundTripWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	c, _ := openCache(t, clock)

	_, ok, err := c.Get(ctx, "123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, result("123")))

	clock.Advance(23 * time.Hour)
	got, ok, err := c.Get(ctx, "123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, result("123"), got)

	clock.Advance(time.Hour)
	_, ok, err = c.Get(ctx, "123")
	require.NoError(t, err)
	assert.False(t, ok, "entry at exactly TTL reads as absent")
}

func TestCacheExpiredEntryIsSupersededByPut(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	c, _ := openCache(t, clock)

	require.NoError(t, c.Put(ctx, result("1")))
	clock.Advance(48 * time.Hour)

	// Still on disk, only invisible.
	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, c.Expired(entries[0]))

	updated := result("1")
	updated.Reasoning = "newer"
	require.NoError(t, c.Put(ctx, updated))

	got, ok, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "newer", got.Reasoning)
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	c, path := openCache(t, clock)
	require.NoError(t, c.Put(ctx, result("77")))
	require.NoError(t, c.Close())

	reopened, err := Open(path, Options{Now: clock.Now})
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "77")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fiscal", got.Reasoning)
}

func TestCacheRecordShape(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	c, _ := openCache(t, clock)
	require.NoError(t, c.Put(ctx, result("5")))

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := json.Marshal(entries[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"ok":true,"tweetId":"5","image_base64":"iVBOR","keywords":"taxes","reasoning":"fiscal"},"timestamp":1700000000000}`, string(raw))
}

func TestCacheRejectsFailures(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c, _ := openCache(t, clock)

	err := c.Put(context.Background(), types.AnalysisResult{TweetID: "1", Error: "nope"})
	assert.ErrorIs(t, err, ErrNotCacheable)
}

func TestCachePruneAndClear(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	c, _ := openCache(t, clock)

	require.NoError(t, c.Put(ctx, result("old")))
	clock.Advance(25 * time.Hour)
	require.NoError(t, c.Put(ctx, result("new")))

	n, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].TweetID)

	require.NoError(t, c.Clear(ctx))
	_, ok, err := c.Get(ctx, "new")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheSeesChangesFromAnotherHandle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	tray, path := openCache(t, clock)

	otherClock := &fakeClock{t: clock.t.Add(time.Minute)}
	cli, err := Open(path, Options{Now: otherClock.Now})
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, tray.Put(ctx, result("9")))
	_, ok, err := tray.Get(ctx, "9")
	require.NoError(t, err)
	require.True(t, ok)

	updated := result("9")
	updated.Reasoning = "re-analysed"
	require.NoError(t, cli.Put(ctx, updated))
	got, ok, err := tray.Get(ctx, "9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "re-analysed", got.Reasoning)

	require.NoError(t, cli.Clear(ctx))
	_, ok, err = tray.Get(ctx, "9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLLMExchange(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)

	path, err := SaveLLMExchange(dir, LLMExchange{Timestamp: ts, Provider: "gemini", TweetID: "42", Prompt: "p", Response: "r"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-03-04T05-06-07.000000008_42.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got LLMExchange
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "r", got.Response)
}
