package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/stereotweet/internal/page"
)

// Unit is a located post, marked seen under its derived id.
type Unit struct {
	ID  string
	Ref string
}

// Locator finds content units that have not been instrumented yet.
type Locator struct {
	page page.Page
}

// NewLocator creates a locator over p.
func NewLocator(p page.Page) *Locator {
	return &Locator{page: p}
}

// Scan returns the unseen units in scope ("" for the whole document) and
// marks each one seen. Units without a derivable id are skipped and left
// unmarked, so a later scan can pick them up once a permalink renders.
func (l *Locator) Scan(ctx context.Context, scope string) ([]Unit, error) {
	cands, err := l.page.Candidates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(cands) == 0 {
		return nil, nil
	}

	location, err := l.page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("read location: %w", err)
	}

	units := make([]Unit, 0, len(cands))
	for _, c := range cands {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.HTML))
		if err != nil {
			slog.Debug("[scraper] unparseable candidate", slog.String("ref", c.Ref), slog.Any("error", err))
			continue
		}
		id := UnitID(doc.Selection, location)
		if id == "" {
			continue
		}
		if err := l.page.MarkSeen(ctx, c.Ref, id); err != nil {
			// Replaced between listing and marking; the next scan sees the new node.
			slog.Debug("[scraper] candidate vanished", slog.String("ref", c.Ref), slog.Any("error", err))
			continue
		}
		units = append(units, Unit{ID: id, Ref: c.Ref})
	}
	return units, nil
}
