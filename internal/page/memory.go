package page

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const attrScope = "data-stereotweet-scope"

// Memory is an in-process document backed by goquery. It behaves like the
// live page for the overlay and exposes helpers to script DOM changes and
// user input.
type Memory struct {
	mu       sync.Mutex
	doc      *goquery.Document
	location string
	nextRef  int
	held     map[string]bool
	watches  watchSet
	events   chan Event
}

var _ Page = (*Memory)(nil)

// NewMemory parses body as the initial document.
func NewMemory(location, body string) (*Memory, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Memory{
		doc:      doc,
		location: location,
		held:     make(map[string]bool),
		events:   make(chan Event, 256),
	}, nil
}

func unitSelector(unitID string) string {
	return fmt.Sprintf(`%s[%s=%q]`, TweetArticle, AttrUnitID, unitID)
}

func (m *Memory) unit(unitID string) (*goquery.Selection, error) {
	sel := m.doc.Find(unitSelector(unitID)).First()
	if sel.Length() == 0 {
		return nil, ErrUnitGone
	}
	return sel, nil
}

func (m *Memory) Location(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

func (m *Memory) Candidates(_ context.Context, scope string) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := m.doc.Selection
	if scope != "" {
		root = m.doc.Find(fmt.Sprintf(`[%s=%q]`, attrScope, scope))
	}

	var out []Candidate
	root.Find(TweetArticle).Each(func(_ int, s *goquery.Selection) {
		if _, seen := s.Attr(AttrSeen); seen {
			return
		}
		if s.Find(TweetText).Length() == 0 || s.Find(TweetActionBar).Length() == 0 {
			return
		}
		ref, ok := s.Attr(AttrRef)
		if !ok {
			m.nextRef++
			ref = fmt.Sprintf("m%d", m.nextRef)
			s.SetAttr(AttrRef, ref)
		}
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		out = append(out, Candidate{Ref: ref, HTML: outer})
	})
	return out, nil
}

func (m *Memory) MarkSeen(_ context.Context, ref, unitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel := m.doc.Find(fmt.Sprintf(`[%s=%q]`, AttrRef, ref))
	if sel.Length() == 0 {
		return ErrUnitGone
	}
	sel.SetAttr(AttrSeen, "true")
	sel.SetAttr(AttrUnitID, unitID)
	return nil
}

func (m *Memory) UnitHTML(_ context.Context, unitID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel, err := m.unit(unitID)
	if err != nil {
		return "", err
	}
	return goquery.OuterHtml(sel)
}

func (m *Memory) Media(_ context.Context, unitID string) (MediaProbe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel, err := m.unit(unitID)
	if err != nil {
		return MediaProbe{}, err
	}

	var probe MediaProbe
	if img := sel.Find(TweetPhotoImg).First(); img.Length() > 0 {
		probe.ImgSrc = img.AttrOr("src", "")
		probe.ImgComplete = probe.ImgSrc != "" && !m.held[unitID]
		if probe.ImgComplete {
			probe.NaturalWidth = 1
		}
	}
	if bg := sel.Find(TweetPhotoBg).First(); bg.Length() > 0 {
		probe.BackgroundCSS = bg.AttrOr("style", "")
	}
	return probe, nil
}

func (m *Memory) Watch(unitID string) (<-chan struct{}, func()) {
	return m.watches.watch(unitID)
}

func (m *Memory) AttachTrigger(_ context.Context, unitID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel, err := m.unit(unitID)
	if err != nil {
		return false, err
	}
	if sel.Find("."+TriggerClass).Length() > 0 {
		return false, nil
	}
	bar := sel.Find(TweetActionBar).First()
	if bar.Length() == 0 {
		return false, nil
	}
	bar.AppendHtml(fmt.Sprintf(`<div class="%s" role="button" tabindex="0" title="Stereotweet" %s="%s"></div>`,
		TriggerClass, AttrTweetID, html.EscapeString(unitID)))
	return true, nil
}

func (m *Memory) HasTrigger(_ context.Context, unitID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sel, err := m.unit(unitID)
	if err != nil {
		return false, nil
	}
	return sel.Find("."+TriggerClass).Length() > 0, nil
}

func (m *Memory) SetTriggerBusy(_ context.Context, unitID string, busy bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trigger := m.doc.Find(fmt.Sprintf(`.%s[%s=%q]`, TriggerClass, AttrTweetID, unitID))
	if busy {
		trigger.SetAttr(AttrBusy, "true")
	} else {
		trigger.RemoveAttr(AttrBusy)
	}
	return nil
}

func (m *Memory) ShowSurface(_ context.Context, unitID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	host := m.doc.Find("#" + SurfaceID(unitID))
	if host.Length() == 0 {
		sel, err := m.unit(unitID)
		if err != nil {
			return err
		}
		bar := sel.Find(TweetActionBar).First()
		if bar.Length() == 0 {
			return ErrUnitGone
		}
		bar.Parent().AfterHtml(fmt.Sprintf(`<div id="%s" class="%s"></div>`,
			SurfaceID(unitID), SurfaceHostClass))
		host = m.doc.Find("#" + SurfaceID(unitID))
	}
	host.First().SetHtml(body)
	return nil
}

func (m *Memory) HasSurface(_ context.Context, unitID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Find("#"+SurfaceID(unitID)).Length() > 0, nil
}

func (m *Memory) RemoveSurface(_ context.Context, unitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Find("#" + SurfaceID(unitID)).Remove()
	return nil
}

func (m *Memory) Events() <-chan Event {
	return m.events
}

func (m *Memory) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		slog.Warn("[page] event queue full, dropping", slog.String("kind", string(ev.Kind)))
	}
}

// SetLocation simulates navigation within a single-page app.
func (m *Memory) SetLocation(location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = location
}

// Append inserts body at the end of the document and reports it as an
// inserted subtree. It returns the scope of the new subtree.
func (m *Memory) Append(body string) string {
	m.mu.Lock()
	m.nextRef++
	scope := fmt.Sprintf("s%d", m.nextRef)
	m.doc.Find("body").AppendHtml(fmt.Sprintf(`<div %s="%s">%s</div>`, attrScope, scope, body))
	m.mu.Unlock()

	m.emit(Event{Kind: Inserted, Scope: scope})
	return scope
}

// Replace swaps every node of unitID for body, as a re-rendering feed does.
func (m *Memory) Replace(unitID, body string) string {
	m.mu.Lock()
	m.nextRef++
	scope := fmt.Sprintf("s%d", m.nextRef)
	m.doc.Find(unitSelector(unitID)).ReplaceWithHtml(fmt.Sprintf(`<div %s="%s">%s</div>`, attrScope, scope, body))
	m.mu.Unlock()

	m.emit(Event{Kind: Inserted, Scope: scope})
	return scope
}

// Detach removes every node of unitID, including its result surface.
func (m *Memory) Detach(unitID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Find(unitSelector(unitID)).Remove()
	m.doc.Find("#" + SurfaceID(unitID)).Remove()
}

// Activate simulates a click on the unit's trigger.
func (m *Memory) Activate(unitID string) {
	m.emit(Event{Kind: Activated, UnitID: unitID})
}

// Dismiss simulates a click on the unit's result surface.
func (m *Memory) Dismiss(unitID string) {
	m.emit(Event{Kind: Dismissed, UnitID: unitID})
}

// HoldImage keeps the unit's <img> in the not-yet-loaded state.
func (m *Memory) HoldImage(unitID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[unitID] = true
}

// ReleaseImage finishes loading the unit's <img>.
func (m *Memory) ReleaseImage(unitID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, unitID)
	m.watches.notify(unitID)
}

// SetImageStyle sets the style attribute of the unit's photo container,
// the way X renders media as a CSS background.
func (m *Memory) SetImageStyle(unitID, style string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sel, err := m.unit(unitID)
	if err != nil {
		return
	}
	photo := sel.Find(TweetPhoto).First()
	if photo.Children().Length() == 0 {
		photo.AppendHtml(`<div></div>`)
	}
	photo.Children().First().SetAttr("style", style)
	m.watches.notify(unitID)
}

// Watchers reports how many mutation subscriptions are open for unitID.
func (m *Memory) Watchers(unitID string) int {
	return m.watches.count(unitID)
}

// TriggerCount counts trigger affordances for unitID.
func (m *Memory) TriggerCount(unitID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Find(fmt.Sprintf(`.%s[%s=%q]`, TriggerClass, AttrTweetID, unitID)).Length()
}

// TriggerBusy reports whether any trigger of unitID is disabled.
func (m *Memory) TriggerBusy(unitID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Find(fmt.Sprintf(`.%s[%s=%q][%s]`, TriggerClass, AttrTweetID, unitID, AttrBusy)).Length() > 0
}

// SurfaceCount counts result surfaces for unitID.
func (m *Memory) SurfaceCount(unitID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Find("#" + SurfaceID(unitID)).Length()
}

// SurfaceHTML returns the inner HTML of the unit's result surface.
func (m *Memory) SurfaceHTML(unitID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, _ := m.doc.Find("#" + SurfaceID(unitID)).First().Html()
	return out
}

// SurfaceText returns the visible text of the unit's result surface.
func (m *Memory) SurfaceText(unitID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.TrimSpace(m.doc.Find("#" + SurfaceID(unitID)).First().Text())
}

// SurfaceFind runs sel inside the unit's result surface.
func (m *Memory) SurfaceFind(unitID, sel string) *goquery.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Find("#" + SurfaceID(unitID)).Find(sel).Clone()
}
