package page_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/page/pagetest"
)

func newMemory(t *testing.T, tweets ...pagetest.Tweet) *page.Memory {
	t.Helper()
	m, err := page.NewMemory("https://x.com/home", pagetest.Timeline(tweets...))
	require.NoError(t, err)
	return m
}

func TestCandidatesSkipsSeenAndIncomplete(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t,
		pagetest.Tweet{ID: "1", Handle: "a", Text: "one"},
		pagetest.Tweet{ID: "2", Handle: "b", Text: "two", NoActionBar: true},
	)

	cands, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Contains(t, cands[0].HTML, "one")

	// Refs are stable across scans until the unit is marked.
	again, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, cands[0].Ref, again[0].Ref)

	require.NoError(t, m.MarkSeen(ctx, cands[0].Ref, "1"))
	cands, err = m.Candidates(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestCandidatesInScope(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, pagetest.Tweet{ID: "1", Handle: "a", Text: "one"})

	scope := m.Append(pagetest.Tweet{ID: "2", Handle: "b", Text: "two"}.HTML())
	ev := <-m.Events()
	assert.Equal(t, page.Event{Kind: page.Inserted, Scope: scope}, ev)

	cands, err := m.Candidates(ctx, scope)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Contains(t, cands[0].HTML, "two")
}

func TestTriggerAndSurface(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, pagetest.Tweet{ID: "7", Handle: "a", Text: "seven"})
	cands, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.MarkSeen(ctx, cands[0].Ref, "7"))

	created, err := m.AttachTrigger(ctx, "7")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = m.AttachTrigger(ctx, "7")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, m.TriggerCount("7"))

	require.NoError(t, m.SetTriggerBusy(ctx, "7", true))
	assert.True(t, m.TriggerBusy("7"))
	require.NoError(t, m.SetTriggerBusy(ctx, "7", false))
	assert.False(t, m.TriggerBusy("7"))

	require.NoError(t, m.ShowSurface(ctx, "7", `<p class="x">loading</p>`))
	require.NoError(t, m.ShowSurface(ctx, "7", `<p class="x">done</p>`))
	assert.Equal(t, 1, m.SurfaceCount("7"))
	assert.Equal(t, "done", m.SurfaceText("7"))

	has, err := m.HasSurface(ctx, "7")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, m.RemoveSurface(ctx, "7"))
	assert.Equal(t, 0, m.SurfaceCount("7"))
}

func TestDetachedUnit(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, pagetest.Tweet{ID: "9", Handle: "a", Text: "nine"})
	cands, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.MarkSeen(ctx, cands[0].Ref, "9"))
	require.NoError(t, m.ShowSurface(ctx, "9", "x"))

	m.Detach("9")

	_, err = m.UnitHTML(ctx, "9")
	assert.ErrorIs(t, err, page.ErrUnitGone)
	assert.ErrorIs(t, m.ShowSurface(ctx, "9", "y"), page.ErrUnitGone)
	assert.Equal(t, 0, m.SurfaceCount("9"))
}

func TestMediaAndWatch(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, pagetest.Tweet{ID: "3", Handle: "a", Text: "pic", ImageSrc: "https://pbs.twimg.com/media/a.jpg"})
	cands, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.MarkSeen(ctx, cands[0].Ref, "3"))

	m.HoldImage("3")
	probe, err := m.Media(ctx, "3")
	require.NoError(t, err)
	assert.False(t, probe.ImgComplete)

	events, release := m.Watch("3")
	assert.Equal(t, 1, m.Watchers("3"))
	m.ReleaseImage("3")

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no mutation notification")
	}

	probe, err = m.Media(ctx, "3")
	require.NoError(t, err)
	assert.True(t, probe.ImgComplete)
	assert.Equal(t, "https://pbs.twimg.com/media/a.jpg", probe.ImgSrc)

	release()
	release()
	assert.Equal(t, 0, m.Watchers("3"))
}

func TestBackgroundMedia(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, pagetest.Tweet{ID: "4", Handle: "a", Text: "bg", EmptyPhoto: true})
	cands, err := m.Candidates(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.MarkSeen(ctx, cands[0].Ref, "4"))

	probe, err := m.Media(ctx, "4")
	require.NoError(t, err)
	assert.Empty(t, probe.BackgroundCSS)

	m.SetImageStyle("4", `background-image: url("https://pbs.twimg.com/media/b.jpg");`)
	probe, err = m.Media(ctx, "4")
	require.NoError(t, err)
	assert.Contains(t, probe.BackgroundCSS, "https://pbs.twimg.com/media/b.jpg")
}
