// Package scraper locates posts in the live document and extracts their
// fields for analysis.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/types"
	"github.com/ibeckermayer/stereotweet/internal/waitfor"
)

var backgroundURL = regexp.MustCompile(`(?i)url\(["']?(.*?)["']?\)`)

// Options tunes the media wait.
type Options struct {
	ImageTimeout time.Duration
	PollInterval time.Duration
	// OnImageWait observes every media wait, e.g. for metrics.
	OnImageWait func(found bool, elapsed time.Duration)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Extractor produces one Record per analysis attempt.
type Extractor struct {
	page page.Page
	opts Options
}

// NewExtractor creates an extractor over p.
func NewExtractor(p page.Page, opts Options) *Extractor {
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Extractor{page: p, opts: opts}
}

// Extract reads the unit's fields. Missing text fields default to
// types.NoneFound; a missing image leaves ImageURL empty. A unit that leaves
// the document before the image wait ends fails the extraction.
func (e *Extractor) Extract(ctx context.Context, unitID string) (types.Record, error) {
	raw, err := e.page.UnitHTML(ctx, unitID)
	if err != nil {
		if errors.Is(err, page.ErrUnitGone) {
			return types.Record{}, types.NewError(types.KindUnitNotFound, fmt.Errorf("post %s: %w", unitID, err))
		}
		return types.Record{}, fmt.Errorf("read post %s: %w", unitID, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return types.Record{}, fmt.Errorf("parse post %s: %w", unitID, err)
	}
	unit := doc.Find(page.TweetArticle).First()
	if unit.Length() == 0 {
		return types.Record{}, types.NewError(types.KindUnitNotFound, fmt.Errorf("post %s has no article", unitID))
	}

	rec := ParseFields(unit)
	rec.ID = unitID
	if rec.ImageURL, err = e.waitForImage(ctx, unitID); err != nil {
		if errors.Is(err, page.ErrUnitGone) {
			return types.Record{}, types.NewError(types.KindUnitNotFound, fmt.Errorf("post %s removed during image wait: %w", unitID, err))
		}
		return types.Record{}, fmt.Errorf("wait for image of %s: %w", unitID, err)
	}
	rec.CapturedAtMS = e.opts.Now().UnixMilli()
	return rec, nil
}

// ParseFields reads the synchronous fields of one unit.
func ParseFields(unit *goquery.Selection) types.Record {
	name, handle := parseUser(unit.Find(page.TweetAuthor).First())
	timeEl := unit.Find(page.TweetTimestamp).First()

	return types.Record{
		AuthorName:       orSentinel(name),
		AuthorHandle:     orSentinel(handle),
		BodyText:         orSentinel(strings.TrimSpace(unit.Find(page.TweetText).First().Text())),
		TimestampISO:     orSentinel(timeEl.AttrOr("datetime", "")),
		TimestampDisplay: orSentinel(strings.TrimSpace(timeEl.Text())),
	}
}

func parseUser(block *goquery.Selection) (name, handle string) {
	if block.Length() == 0 {
		return "", ""
	}
	name = strings.TrimSpace(block.Find("span").First().Text())

	block.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); strings.HasPrefix(t, "@") {
			handle = strings.TrimPrefix(t, "@")
			return false
		}
		return true
	})
	if handle == "" {
		href := block.Find(`a[href^="/"]`).First().AttrOr("href", "")
		for _, seg := range strings.Split(href, "/") {
			if seg != "" {
				handle = seg
				break
			}
		}
	}
	return name, handle
}

func orSentinel(s string) string {
	if s == "" {
		return types.NoneFound
	}
	return s
}

// waitForImage resolves the unit's primary image URL, or "" when none loads
// within the timeout. It rechecks on every poll tick and on every mutation
// inside the unit. Removal of the unit or cancellation of ctx is an error.
func (e *Extractor) waitForImage(ctx context.Context, unitID string) (string, error) {
	start := e.opts.Now()
	mutations, release := e.page.Watch(unitID)

	url, found, err := waitfor.Until(ctx, waitfor.Options{
		Interval: e.opts.PollInterval,
		Timeout:  e.opts.ImageTimeout,
		Events:   mutations,
		Release:  release,
	}, func(ctx context.Context) (string, bool, error) {
		probe, err := e.page.Media(ctx, unitID)
		if err != nil {
			if errors.Is(err, page.ErrUnitGone) {
				return "", false, err
			}
			// Transient evaluation failures are retried on the next tick.
			return "", false, nil
		}
		u := ResolveImage(probe)
		return u, u != "", nil
	})

	if e.opts.OnImageWait != nil {
		e.opts.OnImageWait(found, e.opts.Now().Sub(start))
	}
	if err != nil {
		slog.Debug("[scraper] image wait aborted", slog.String("id", unitID), slog.Any("error", err))
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return url, nil
}

// ResolveImage picks a usable image URL from a probe: a fully loaded <img>
// first, then a CSS background image.
func ResolveImage(p page.MediaProbe) string {
	if p.ImgSrc != "" && p.ImgComplete && p.NaturalWidth > 0 {
		return p.ImgSrc
	}
	if m := backgroundURL.FindStringSubmatch(p.BackgroundCSS); m != nil {
		return m[1]
	}
	return ""
}
