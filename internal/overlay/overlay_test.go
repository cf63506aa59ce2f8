package overlay_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/stereotweet/internal/analyzer"
	"github.com/ibeckermayer/stereotweet/internal/analyzer/providers"
	"github.com/ibeckermayer/stereotweet/internal/bus"
	"github.com/ibeckermayer/stereotweet/internal/card"
	"github.com/ibeckermayer/stereotweet/internal/metrics"
	"github.com/ibeckermayer/stereotweet/internal/overlay"
	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/page/pagetest"
	"github.com/ibeckermayer/stereotweet/internal/render"
	"github.com/ibeckermayer/stereotweet/internal/scraper"
	"github.com/ibeckermayer/stereotweet/internal/store"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

const stubJudgment = `{"coordinates":{"x":15.2,"y":4.1},"keywords":"taxes, fiscal","reasoning":"fiscally conservative framing"}`

type harness struct {
	page     *page.Memory
	overlay  *overlay.Overlay
	analysis *bus.Port
	metrics  *metrics.Metrics
}

func newPage(t *testing.T, tweets ...pagetest.Tweet) *page.Memory {
	t.Helper()
	m, err := page.NewMemory("https://x.com/home", pagetest.Timeline(tweets...))
	require.NoError(t, err)
	return m
}

// start runs an overlay over p. The returned harness exposes the analysis
// end of the bus; nothing answers on it unless the test does.
func start(t *testing.T, p *page.Memory, cfg overlay.Config) *harness {
	t.Helper()

	cards, err := card.New()
	require.NoError(t, err)
	ov, an := bus.Pair("overlay", "analysis", 32)

	m := metrics.New()
	cfg.Page = p
	cfg.Port = ov
	cfg.Cards = cards
	cfg.Metrics = m
	if cfg.Extract.ImageTimeout == 0 {
		cfg.Extract = scraper.Options{ImageTimeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	}

	o := overlay.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return &harness{page: p, overlay: o, analysis: an, metrics: m}
}

type staticKey string

func (k staticKey) APIKey() (string, error) { return string(k), nil }

type stubProvider struct {
	calls   *atomic.Int32
	prompts chan string
	reply   func(prompt string) string
}

func newStub(reply func(string) string) *stubProvider {
	return &stubProvider{calls: &atomic.Int32{}, prompts: make(chan string, 16), reply: reply}
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }
func (s *stubProvider) Complete(_ context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	select {
	case s.prompts <- prompt:
	default:
	}
	return s.reply(prompt), nil
}

// serve answers the harness's analysis port with a real worker.
func (h *harness) serve(t *testing.T, key string, p *stubProvider) {
	t.Helper()
	w := analyzer.NewWorker(h.analysis, analyzer.WorkerConfig{
		Keys:     staticKey(key),
		Factory:  func(string) (providers.Provider, error) { return p, nil },
		Renderer: render.New(whitePlane(t, 400, 400), 10),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func whitePlane(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	path := filepath.Join(t.TempDir(), "plane.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func recvInfo(t *testing.T, port *bus.Port) types.TweetInfo {
	t.Helper()
	select {
	case frame := <-port.Recv():
		env, err := frame.Envelope()
		require.NoError(t, err)
		require.Equal(t, types.MessageTweetInfo, env.Type)
		var info types.TweetInfo
		require.NoError(t, env.Decode(&info))
		return info
	case <-time.After(waitFor):
		t.Fatal("no request sent")
		return types.TweetInfo{}
	}
}

func (h *harness) snapshot(t *testing.T) overlay.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	s, err := h.overlay.Snapshot(ctx)
	require.NoError(t, err)
	return s
}

func (h *harness) state(t *testing.T, id string) overlay.State {
	return h.snapshot(t).States[id]
}

func (h *harness) errorKind(id string) string {
	return h.page.SurfaceFind(id, ".card").AttrOr("data-error-kind", "")
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]types.AnalysisResult
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]types.AnalysisResult)}
}

func (c *mapCache) Get(_ context.Context, id string) (types.AnalysisResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[id]
	return res, ok, nil
}

func (c *mapCache) Put(_ context.Context, res types.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[res.TweetID] = res
	c.puts++
	return nil
}

func (c *mapCache) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestScanIsIdempotent(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Name: "A", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{})

	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	h.overlay.Rescan()
	h.overlay.Rescan()
	p.Append(pagetest.Tweet{ID: "2", Name: "B", Handle: "b", Text: "two"}.HTML())
	require.Eventually(t, func() bool { return p.TriggerCount("2") == 1 }, waitFor, tick)

	assert.Equal(t, 1, p.TriggerCount("1"))
	assert.Equal(t, overlay.TriggerAttached, h.state(t, "1"))
	assert.Equal(t, overlay.TriggerAttached, h.state(t, "2"))
	assert.Equal(t, 0, p.SurfaceCount("1"))
}

func TestScanSkipsPostsWithoutIdentity(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one", NoPermalink: true})
	h := start(t, p, overlay.Config{})

	assert.Empty(t, h.snapshot(t).States)
	assert.Equal(t, 0, p.TriggerCount("1"))
}

func TestDoubleActivationKeepsOnePendingRequest(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	p.Activate("1")

	info := recvInfo(t, h.analysis)
	assert.Equal(t, "1", info.ID)
	assert.NotEmpty(t, info.RequestID)

	select {
	case <-h.analysis.Recv():
		t.Fatal("second request sent")
	case <-time.After(200 * time.Millisecond):
	}

	s := h.snapshot(t)
	assert.Equal(t, map[string]string{"1": info.RequestID}, s.Pending)
	assert.Equal(t, overlay.Analyzing, s.States["1"])
	assert.True(t, p.TriggerBusy("1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Activations))
}

func TestActivationWhilePendingTogglesSurface(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	require.Eventually(t, func() bool { return p.SurfaceCount("1") == 1 }, waitFor, tick)
	assert.Contains(t, p.SurfaceText("1"), "Analyzing tweet...")

	p.Activate("1")
	require.Eventually(t, func() bool { return p.SurfaceCount("1") == 0 }, waitFor, tick)
	p.Activate("1")
	require.Eventually(t, func() bool { return p.SurfaceCount("1") == 1 }, waitFor, tick)

	assert.Len(t, h.snapshot(t).Pending, 1)
}

func TestCacheRoundTrip(t *testing.T) {
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), store.Options{TTL: 24 * time.Hour, Now: clk.Now})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	require.NoError(t, cache.Put(context.Background(), types.AnalysisResult{
		OK:          true,
		TweetID:     "123",
		ImageBase64: "iVBORw0KGgo=",
		Keywords:    "cached",
		Reasoning:   "from the cache",
	}))

	p := newPage(t, pagetest.Tweet{ID: "123", Handle: "a", Text: "Taxes are too high"})
	h := start(t, p, overlay.Config{Cache: cache})
	stub := newStub(func(string) string { return stubJudgment })
	h.serve(t, "key", stub)
	require.Eventually(t, func() bool { return p.TriggerCount("123") == 1 }, waitFor, tick)

	// Within the TTL the cached card renders without a provider call.
	p.Activate("123")
	require.Eventually(t, func() bool {
		return strings.Contains(p.SurfaceText("123"), "from the cache")
	}, waitFor, tick)
	assert.Equal(t, overlay.ResultShown, h.state(t, "123"))
	assert.Zero(t, stub.calls.Load())
	assert.False(t, p.TriggerBusy("123"))

	// Activating a shown result closes it.
	p.Activate("123")
	require.Eventually(t, func() bool { return p.SurfaceCount("123") == 0 }, waitFor, tick)
	assert.Equal(t, overlay.TriggerAttached, h.state(t, "123"))

	clk.Advance(25 * time.Hour)
	p.Activate("123")
	require.Eventually(t, func() bool {
		return strings.Contains(p.SurfaceText("123"), "fiscally conservative framing")
	}, waitFor, tick)
	assert.Equal(t, int32(1), stub.calls.Load())

	res, ok, err := cache.Get(context.Background(), "123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fiscally conservative framing", res.Reasoning)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheLookups.WithLabelValues("miss")))
}

func TestEndToEnd(t *testing.T) {
	cache := newMapCache()
	p := newPage(t, pagetest.Tweet{
		ID: "42", Name: "Jane", Handle: "jane", Text: "Taxes are too high",
		DateISO: "2024-05-01T12:00:00.000Z", DateDisplay: "May 1",
	})
	h := start(t, p, overlay.Config{Cache: cache})
	stub := newStub(func(string) string { return stubJudgment })
	h.serve(t, "key", stub)
	require.Eventually(t, func() bool { return p.TriggerCount("42") == 1 }, waitFor, tick)

	p.Activate("42")
	require.Eventually(t, func() bool { return p.SurfaceFind("42", "img.img").Length() == 1 }, waitFor, tick)

	assert.Equal(t, "fiscally conservative framing", strings.TrimSpace(p.SurfaceFind("42", ".reasoning-text").Text()))
	assert.Contains(t, p.SurfaceFind("42", ".keywords-text").Text(), "taxes, fiscal")

	prompt := <-stub.prompts
	assert.Contains(t, prompt, "- Post text: Taxes are too high")
	assert.Contains(t, prompt, "- Author: Jane (@jane)")

	src := p.SurfaceFind("42", "img.img").AttrOr("src", "")
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(src, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	// 15.2/20*400, 4.1/20*400
	r, g, b, _ := img.At(304, 82).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(100))
	assert.Less(t, b>>8, uint32(100))

	assert.Equal(t, overlay.ResultShown, h.state(t, "42"))
	assert.False(t, p.TriggerBusy("42"))
	assert.Equal(t, 1, cache.putCount())
}

func TestMalformedResponseIsScopedToItsPost(t *testing.T) {
	p := newPage(t,
		pagetest.Tweet{ID: "1", Handle: "a", Text: "bad post"},
		pagetest.Tweet{ID: "2", Handle: "b", Text: "good post"},
	)
	cache := newMapCache()
	h := start(t, p, overlay.Config{Cache: cache})
	h.serve(t, "key", newStub(func(prompt string) string {
		if strings.Contains(prompt, "bad post") {
			return "not json"
		}
		return stubJudgment
	}))
	require.Eventually(t, func() bool { return p.TriggerCount("2") == 1 }, waitFor, tick)

	p.Activate("1")
	p.Activate("2")

	require.Eventually(t, func() bool { return h.errorKind("1") == string(types.KindMalformedJudgment) }, waitFor, tick)
	require.Eventually(t, func() bool { return p.SurfaceFind("2", "img.img").Length() == 1 }, waitFor, tick)

	assert.Empty(t, h.errorKind("2"))
	assert.Equal(t, overlay.ResultShown, h.state(t, "1"))
	assert.False(t, p.TriggerBusy("1"))
	assert.Equal(t, 1, cache.putCount())
}

func TestMissingCredential(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{})
	stub := newStub(func(string) string { return stubJudgment })
	h.serve(t, "", stub)
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	require.Eventually(t, func() bool { return h.errorKind("1") == string(types.KindCredentialMissing) }, waitFor, tick)

	assert.Contains(t, p.SurfaceText("1"), "stereo set-key")
	assert.Zero(t, stub.calls.Load())
	assert.False(t, p.TriggerBusy("1"))
}

func TestReplyForDetachedPostIsDropped(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	cache := newMapCache()
	h := start(t, p, overlay.Config{Cache: cache})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	info := recvInfo(t, h.analysis)
	p.Detach("1")

	require.NoError(t, h.analysis.Send(context.Background(), types.MessageAnalysisResult, types.AnalysisResult{
		OK: true, TweetID: "1", RequestID: info.RequestID, ImageBase64: "iVBORw0KGgo=", Reasoning: "r",
	}))

	require.Eventually(t, func() bool { return testutil.ToFloat64(h.metrics.DroppedReplies) == 1 }, waitFor, tick)
	assert.Empty(t, h.snapshot(t).Pending)
	assert.Zero(t, cache.putCount())
	assert.Equal(t, 0, p.SurfaceCount("1"))
}

func TestReplyWithUnknownRequestIsIgnored(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	info := recvInfo(t, h.analysis)

	for _, res := range []types.AnalysisResult{
		{OK: true, TweetID: "1", RequestID: "stale", ImageBase64: "iVBORw0KGgo="},
		{OK: true, TweetID: "99", RequestID: info.RequestID, ImageBase64: "iVBORw0KGgo="},
	} {
		require.NoError(t, h.analysis.Send(context.Background(), types.MessageAnalysisResult, res))
	}

	require.Eventually(t, func() bool { return testutil.ToFloat64(h.metrics.DroppedReplies) == 2 }, waitFor, tick)
	assert.Equal(t, map[string]string{"1": info.RequestID}, h.snapshot(t).Pending)
	assert.True(t, p.TriggerBusy("1"))
	assert.Contains(t, p.SurfaceText("1"), "Analyzing tweet...")
}

func TestRequestTimeout(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{RequestTimeout: 250 * time.Millisecond})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	info := recvInfo(t, h.analysis)

	require.Eventually(t, func() bool { return h.errorKind("1") == string(types.KindTimeout) }, waitFor, tick)
	assert.False(t, p.TriggerBusy("1"))
	assert.Empty(t, h.snapshot(t).Pending)

	require.NoError(t, h.analysis.Send(context.Background(), types.MessageAnalysisResult, types.AnalysisResult{
		OK: true, TweetID: "1", RequestID: info.RequestID, ImageBase64: "iVBORw0KGgo=",
	}))
	require.Eventually(t, func() bool { return testutil.ToFloat64(h.metrics.DroppedReplies) == 1 }, waitFor, tick)
	assert.Equal(t, string(types.KindTimeout), h.errorKind("1"))
}

func TestRequestTimeoutCoversExtraction(t *testing.T) {
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one", ImageSrc: "https://pbs.twimg.com/1.jpg"})
	p.HoldImage("1")
	h := start(t, p, overlay.Config{
		RequestTimeout: 100 * time.Millisecond,
		Extract:        scraper.Options{ImageTimeout: time.Minute, PollInterval: 10 * time.Millisecond},
	})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	require.Eventually(t, func() bool { return h.errorKind("1") == string(types.KindTimeout) }, waitFor, tick)
	assert.False(t, p.TriggerBusy("1"))
	assert.Empty(t, h.snapshot(t).Pending)
	assert.Equal(t, overlay.TriggerAttached, h.state(t, "1"))

	select {
	case frame := <-h.analysis.Recv():
		t.Fatalf("unexpected request sent: %s", frame)
	default:
	}
}

func TestDismissClosesResult(t *testing.T) {
	cache := newMapCache()
	require.NoError(t, cache.Put(context.Background(), types.AnalysisResult{
		OK: true, TweetID: "1", ImageBase64: "iVBORw0KGgo=", Reasoning: "cached",
	}))
	p := newPage(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})
	h := start(t, p, overlay.Config{Cache: cache})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	require.Eventually(t, func() bool { return p.SurfaceCount("1") == 1 }, waitFor, tick)

	p.Dismiss("1")
	require.Eventually(t, func() bool { return p.SurfaceCount("1") == 0 }, waitFor, tick)
	assert.Equal(t, overlay.TriggerAttached, h.state(t, "1"))
}

func TestRebuiltPostKeepsBusyTrigger(t *testing.T) {
	tweet := pagetest.Tweet{ID: "1", Handle: "a", Text: "one"}
	p := newPage(t, tweet)
	h := start(t, p, overlay.Config{})
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 }, waitFor, tick)

	p.Activate("1")
	recvInfo(t, h.analysis)

	p.Replace("1", tweet.HTML())
	require.Eventually(t, func() bool { return p.TriggerCount("1") == 1 && p.TriggerBusy("1") }, waitFor, tick)
	assert.Equal(t, overlay.Analyzing, h.state(t, "1"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "untouched", overlay.Untouched.String())
	assert.Equal(t, "trigger_attached", overlay.TriggerAttached.String())
	assert.Equal(t, "analyzing", overlay.Analyzing.String())
	assert.Equal(t, "result_shown", overlay.ResultShown.String())
}
