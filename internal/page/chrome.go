package page

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Chrome is a Page backed by a chromedp tab.
type Chrome struct {
	ctx     context.Context
	events  chan Event
	watches watchSet
}

var _ Page = (*Chrome)(nil)

// NewChrome instruments the tab in ctx (a chromedp context). The bootstrap
// script runs in every document loaded afterwards, so call it before
// navigating.
func NewChrome(ctx context.Context) (*Chrome, error) {
	c := &Chrome{
		ctx:    ctx,
		events: make(chan Event, 256),
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			c.dispatch(e.Payload)
		}
	})

	err := chromedp.Run(ctx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(bootstrapJS).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("install page bootstrap: %w", err)
	}
	return c, nil
}

// Navigate loads url and installs the helpers into the resulting document.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	// The document may predate the bootstrap registration.
	return c.run(ctx, chromedp.Evaluate(bootstrapJS, nil))
}

func (c *Chrome) dispatch(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Debug("[page] ignoring malformed binding payload", slog.Any("error", err))
		return
	}

	if ev.Kind == Mutated {
		c.watches.notify(ev.UnitID)
		return
	}

	select {
	case c.events <- ev:
	default:
		slog.Warn("[page] event queue full, dropping", slog.String("kind", string(ev.Kind)))
	}
}

// run executes actions on the tab, bounded by the caller's ctx as well.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) call(ctx context.Context, res any, fn string, args ...any) error {
	expr := "window.__stereotweet." + fn + "("
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if i > 0 {
			expr += ","
		}
		expr += string(raw)
	}
	expr += ")"
	if err := c.run(ctx, chromedp.Evaluate(expr, res)); err != nil {
		return fmt.Errorf("page %s: %w", fn, err)
	}
	return nil
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) Candidates(ctx context.Context, _ string) ([]Candidate, error) {
	// Mutation batches are coalesced in the page, so every scan covers the
	// whole document; the seen marker keeps it cheap.
	var raw []struct {
		Ref  string `json:"ref"`
		HTML string `json:"html"`
	}
	if err := c.call(ctx, &raw, "candidates"); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		out = append(out, Candidate{Ref: r.Ref, HTML: r.HTML})
	}
	return out, nil
}

func (c *Chrome) MarkSeen(ctx context.Context, ref, unitID string) error {
	var ok bool
	if err := c.call(ctx, &ok, "markSeen", ref, unitID); err != nil {
		return err
	}
	if !ok {
		return ErrUnitGone
	}
	return nil
}

func (c *Chrome) UnitHTML(ctx context.Context, unitID string) (string, error) {
	var res struct {
		OK   bool   `json:"ok"`
		HTML string `json:"html"`
	}
	if err := c.call(ctx, &res, "unitHTML", unitID); err != nil {
		return "", err
	}
	if !res.OK {
		return "", ErrUnitGone
	}
	return res.HTML, nil
}

func (c *Chrome) Media(ctx context.Context, unitID string) (MediaProbe, error) {
	var res struct {
		OK bool `json:"ok"`
		MediaProbe
	}
	if err := c.call(ctx, &res, "media", unitID); err != nil {
		return MediaProbe{}, err
	}
	if !res.OK {
		return MediaProbe{}, ErrUnitGone
	}
	return res.MediaProbe, nil
}

func (c *Chrome) Watch(unitID string) (<-chan struct{}, func()) {
	return c.watches.watch(unitID)
}

func (c *Chrome) AttachTrigger(ctx context.Context, unitID string) (bool, error) {
	var res string
	if err := c.call(ctx, &res, "attach", unitID); err != nil {
		return false, err
	}
	switch res {
	case "created":
		return true, nil
	case "gone":
		return false, ErrUnitGone
	default:
		return false, nil
	}
}

func (c *Chrome) HasTrigger(ctx context.Context, unitID string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "hasTrigger", unitID)
	return ok, err
}

func (c *Chrome) SetTriggerBusy(ctx context.Context, unitID string, busy bool) error {
	return c.call(ctx, nil, "busy", unitID, busy)
}

func (c *Chrome) ShowSurface(ctx context.Context, unitID, html string) error {
	var ok bool
	if err := c.call(ctx, &ok, "show", unitID, html); err != nil {
		return err
	}
	if !ok {
		return ErrUnitGone
	}
	return nil
}

func (c *Chrome) HasSurface(ctx context.Context, unitID string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "hasSurface", unitID)
	return ok, err
}

func (c *Chrome) RemoveSurface(ctx context.Context, unitID string) error {
	return c.call(ctx, nil, "remove", unitID)
}

func (c *Chrome) Events() <-chan Event {
	return c.events
}
