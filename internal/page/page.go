// Package page is the overlay's only access to the live document. Content
// units are addressed by their derived id once they have been marked seen;
// before that, by an opaque ref handed out with each candidate.
package page

import (
	"context"
	"errors"
)

// ErrUnitGone is returned when no live node carries the requested unit id.
var ErrUnitGone = errors.New("content unit not in document")

// EventKind classifies events reported by the document.
type EventKind string

const (
	// Inserted reports new nodes; Scope names the inserted subtree when the
	// implementation can address it, otherwise the whole document.
	Inserted EventKind = "inserted"
	// Activated reports a click on a unit's trigger.
	Activated EventKind = "activated"
	// Dismissed reports a click on a unit's result surface.
	Dismissed EventKind = "dismissed"
	// Mutated reports attribute or subtree changes inside a seen unit.
	Mutated EventKind = "mutated"
)

// Event is one notification from the document.
type Event struct {
	Kind   EventKind `json:"kind"`
	UnitID string    `json:"id,omitempty"`
	Scope  string    `json:"scope,omitempty"`
}

// Candidate is an unseen node satisfying the content unit predicate.
type Candidate struct {
	Ref  string
	HTML string
}

// MediaProbe is a snapshot of a unit's primary media element.
type MediaProbe struct {
	ImgSrc        string `json:"imgSrc"`
	ImgComplete   bool   `json:"imgComplete"`
	NaturalWidth  int    `json:"naturalWidth"`
	BackgroundCSS string `json:"backgroundCss"`
}

// Page is a live, mutating document.
type Page interface {
	// Location returns the current document URL.
	Location(ctx context.Context) (string, error)
	// Candidates lists unseen content units within scope ("" = document).
	Candidates(ctx context.Context, scope string) ([]Candidate, error)
	// MarkSeen tags the candidate ref with the seen marker and its unit id.
	MarkSeen(ctx context.Context, ref, unitID string) error
	// UnitHTML returns the outer HTML of the first live node for unitID.
	UnitHTML(ctx context.Context, unitID string) (string, error)
	// Media probes the unit's primary media element.
	Media(ctx context.Context, unitID string) (MediaProbe, error)
	// Watch subscribes to Mutated events of one unit. The release func
	// must be called once the caller is done.
	Watch(unitID string) (<-chan struct{}, func())

	// AttachTrigger adds the trigger unless one is present. It reports
	// whether a trigger was created.
	AttachTrigger(ctx context.Context, unitID string) (bool, error)
	HasTrigger(ctx context.Context, unitID string) (bool, error)
	SetTriggerBusy(ctx context.Context, unitID string, busy bool) error

	// ShowSurface creates the unit's result surface if needed and replaces
	// its content with html.
	ShowSurface(ctx context.Context, unitID, html string) error
	HasSurface(ctx context.Context, unitID string) (bool, error)
	RemoveSurface(ctx context.Context, unitID string) error

	// Events delivers document notifications other than Mutated.
	Events() <-chan Event
}
