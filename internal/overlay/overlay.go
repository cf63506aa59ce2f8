// Package overlay is the page-side context: it instruments posts with a
// trigger, correlates analysis replies and drives each post's result surface.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/stereotweet/internal/bus"
	"github.com/ibeckermayer/stereotweet/internal/card"
	"github.com/ibeckermayer/stereotweet/internal/metrics"
	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/scraper"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

// Cache is the result store consulted on activation.
type Cache interface {
	Get(ctx context.Context, id string) (types.AnalysisResult, bool, error)
	Put(ctx context.Context, result types.AnalysisResult) error
}

// Config wires an Overlay.
type Config struct {
	Page  page.Page
	Port  *bus.Port
	Cards *card.Builder
	// Cache may be nil, in which case every activation is a miss.
	Cache Cache
	// RequestTimeout bounds the wait for a reply; zero means 90s.
	RequestTimeout time.Duration
	Extract        scraper.Options
	Metrics        *metrics.Metrics
	// NewRequestID defaults to uuid.NewString.
	NewRequestID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Overlay owns the lifecycle map and the pending requests. Both are only
// touched from the Run goroutine.
type Overlay struct {
	cfg       Config
	page      page.Page
	port      *bus.Port
	locator   *scraper.Locator
	extractor *scraper.Extractor

	states  map[string]State
	pending map[string]*pending

	inbox  chan func(context.Context)
	rescan chan struct{}
	wg     sync.WaitGroup
}

// New creates an overlay over cfg.Page talking to the analysis side on cfg.Port.
func New(cfg Config) *Overlay {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if m := cfg.Metrics; m != nil && cfg.Extract.OnImageWait == nil {
		cfg.Extract.OnImageWait = func(found bool, elapsed time.Duration) {
			m.ImageWait.WithLabelValues(fmt.Sprint(found)).Observe(elapsed.Seconds())
		}
	}

	return &Overlay{
		cfg:       cfg,
		page:      cfg.Page,
		port:      cfg.Port,
		locator:   scraper.NewLocator(cfg.Page),
		extractor: scraper.NewExtractor(cfg.Page, cfg.Extract),
		states:    make(map[string]State),
		pending:   make(map[string]*pending),
		inbox:     make(chan func(context.Context), 64),
		rescan:    make(chan struct{}, 1),
	}
}

// Run instruments the document and serves page events and analysis replies
// until ctx is done.
func (o *Overlay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		for _, p := range o.pending {
			p.stop()
		}
		o.wg.Wait()
	}()

	slog.Info("[overlay] started")
	o.scan(ctx, "")

	for {
		select {
		case <-ctx.Done():
			slog.Info("[overlay] stopped")
			return nil
		case ev, ok := <-o.page.Events():
			if !ok {
				return errors.New("page event stream closed")
			}
			o.handleEvent(ctx, ev)
		case frame, ok := <-o.port.Recv():
			if !ok {
				return errors.New("analysis port closed")
			}
			o.handleFrame(ctx, frame)
		case fn := <-o.inbox:
			fn(ctx)
		case <-o.rescan:
			o.scan(ctx, "")
		}
	}
}

// Rescan asks the loop to scan the whole document. Requests coalesce.
func (o *Overlay) Rescan() {
	select {
	case o.rescan <- struct{}{}:
	default:
	}
}

// Snapshot copies the overlay's bookkeeping on the loop goroutine.
func (o *Overlay) Snapshot(ctx context.Context) (Snapshot, error) {
	out := make(chan Snapshot, 1)
	if !o.post(ctx, func(context.Context) {
		s := Snapshot{
			States:  make(map[string]State, len(o.states)),
			Pending: make(map[string]string, len(o.pending)),
		}
		for id, st := range o.states {
			s.States[id] = st
		}
		for id, p := range o.pending {
			s.Pending[id] = p.requestID
		}
		out <- s
	}) {
		return Snapshot{}, ctx.Err()
	}

	select {
	case s := <-out:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// post hands fn to the loop. It reports false if ctx ended first.
func (o *Overlay) post(ctx context.Context, fn func(context.Context)) bool {
	select {
	case o.inbox <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Overlay) handleEvent(ctx context.Context, ev page.Event) {
	switch ev.Kind {
	case page.Inserted:
		o.scan(ctx, ev.Scope)
	case page.Activated:
		o.activate(ctx, ev.UnitID)
	case page.Dismissed:
		o.dismiss(ctx, ev.UnitID)
	default:
		slog.Debug("[overlay] ignoring event", slog.String("kind", string(ev.Kind)))
	}
}

// scan attaches triggers to every newly located post. A post rebuilt by the
// page keeps its lifecycle state; only its trigger is recreated.
func (o *Overlay) scan(ctx context.Context, scope string) {
	units, err := o.locator.Scan(ctx, scope)
	if err != nil {
		slog.Warn("[overlay] scan failed", slog.String("scope", scope), slog.Any("error", err))
		return
	}

	for _, u := range units {
		created, err := o.page.AttachTrigger(ctx, u.ID)
		if err != nil {
			slog.Debug("[overlay] attach trigger failed", slog.String("id", u.ID), slog.Any("error", err))
			continue
		}

		switch o.states[u.ID] {
		case Untouched:
			o.states[u.ID] = TriggerAttached
		case Analyzing:
			if err := o.page.SetTriggerBusy(ctx, u.ID, true); err != nil {
				slog.Debug("[overlay] busy trigger failed", slog.String("id", u.ID), slog.Any("error", err))
			}
		case ResultShown:
			if !o.hasSurface(ctx, u.ID) {
				o.states[u.ID] = TriggerAttached
			}
		}
		if created {
			slog.Debug("[overlay] trigger attached", slog.String("id", u.ID))
		}
	}
}

func (o *Overlay) activate(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Activations.Inc()
	}
	log := slog.With(slog.String("id", id))

	if _, busy := o.pending[id]; busy {
		// The request stays outstanding; only the surface is toggled.
		if o.hasSurface(ctx, id) {
			o.removeSurface(ctx, id)
		} else {
			o.showLoading(ctx, id)
		}
		return
	}

	if o.states[id] == ResultShown && o.hasSurface(ctx, id) {
		o.removeSurface(ctx, id)
		o.states[id] = TriggerAttached
		return
	}

	if res, ok := o.lookup(ctx, id); ok {
		log.Info("[overlay] cache hit")
		o.showResult(ctx, res)
		return
	}

	log.Info("[overlay] analysing post")
	reqID := o.cfg.NewRequestID()
	// The deadline runs from activation and covers extraction.
	timer := time.AfterFunc(o.cfg.RequestTimeout, func() {
		o.post(ctx, func(ctx context.Context) { o.expire(ctx, id, reqID) })
	})
	o.pending[id] = &pending{requestID: reqID, timer: timer}
	o.states[id] = Analyzing
	if err := o.page.SetTriggerBusy(ctx, id, true); err != nil {
		log.Debug("[overlay] busy trigger failed", slog.Any("error", err))
	}
	o.showLoading(ctx, id)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		rec, err := o.extractor.Extract(ctx, id)
		o.post(ctx, func(ctx context.Context) { o.extracted(ctx, id, reqID, rec, err) })
	}()
}

func (o *Overlay) lookup(ctx context.Context, id string) (types.AnalysisResult, bool) {
	if o.cfg.Cache == nil {
		return types.AnalysisResult{}, false
	}
	res, ok, err := o.cfg.Cache.Get(ctx, id)
	switch {
	case err != nil:
		slog.Warn("[overlay] cache read failed", slog.String("id", id), slog.Any("error", err))
		o.countLookup("error")
		return types.AnalysisResult{}, false
	case ok:
		o.countLookup("hit")
		return res, true
	default:
		o.countLookup("miss")
		return types.AnalysisResult{}, false
	}
}

// extracted sends the request once the fields are in.
func (o *Overlay) extracted(ctx context.Context, id, reqID string, rec types.Record, err error) {
	p, ok := o.pending[id]
	if !ok || p.requestID != reqID {
		return
	}
	if err != nil {
		slog.Warn("[overlay] extraction failed", slog.String("id", id), slog.Any("error", err))
		o.fail(ctx, id, p, types.KindUnitNotFound)
		return
	}

	location, err := o.page.Location(ctx)
	if err != nil {
		slog.Debug("[overlay] location unavailable", slog.Any("error", err))
	}
	info := types.TweetInfo{
		ID:        id,
		URL:       location,
		Cohesive:  scraper.FormatCohesive(rec),
		Fields:    rec,
		TS:        o.cfg.Now().UnixMilli(),
		RequestID: reqID,
	}
	slog.Debug("[overlay] sending post", slog.String("id", id), slog.String("cohesive", info.Cohesive))

	if err := o.port.Send(ctx, types.MessageTweetInfo, info); err != nil {
		o.fail(ctx, id, p, types.KindProviderUnavailable)
	}
}

func (o *Overlay) expire(ctx context.Context, id, reqID string) {
	p, ok := o.pending[id]
	if !ok || p.requestID != reqID {
		return
	}
	slog.Warn("[overlay] analysis timed out", slog.String("id", id), slog.Duration("after", o.cfg.RequestTimeout))
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Analyses.WithLabelValues(string(types.KindTimeout)).Inc()
	}
	o.fail(ctx, id, p, types.KindTimeout)
}

func (o *Overlay) handleFrame(ctx context.Context, frame bus.Frame) {
	env, err := frame.Envelope()
	if err != nil {
		slog.Warn("[overlay] dropping undecodable frame", slog.Any("error", err))
		return
	}
	if env.Type != types.MessageAnalysisResult {
		slog.Debug("[overlay] ignoring message", slog.String("type", env.Type))
		return
	}
	var res types.AnalysisResult
	if err := env.Decode(&res); err != nil {
		slog.Warn("[overlay] dropping malformed reply", slog.Any("error", err))
		return
	}
	o.reply(ctx, res)
}

// reply correlates res with its pending request. Replies without one, and
// replies for posts whose surface is gone, are dropped.
func (o *Overlay) reply(ctx context.Context, res types.AnalysisResult) {
	log := slog.With(slog.String("id", res.TweetID), slog.String("request_id", res.RequestID))

	p, ok := o.pending[res.TweetID]
	if !ok || p.requestID != res.RequestID {
		log.Debug("[overlay] reply has no pending request")
		o.countDropped()
		return
	}
	o.finish(ctx, res.TweetID, p)

	if !o.hasSurface(ctx, res.TweetID) {
		log.Debug("[overlay] reply for a post without a surface")
		o.countDropped()
		return
	}

	if res.OK && o.cfg.Cache != nil {
		if err := o.cfg.Cache.Put(ctx, res); err != nil {
			log.Warn("[overlay] cache write failed", slog.Any("error", err))
		}
	}
	o.showResult(ctx, res)
}

// finish clears the pending request and re-enables the trigger.
func (o *Overlay) finish(ctx context.Context, id string, p *pending) {
	p.stop()
	delete(o.pending, id)
	o.states[id] = TriggerAttached
	if err := o.page.SetTriggerBusy(ctx, id, false); err != nil && !errors.Is(err, page.ErrUnitGone) {
		slog.Debug("[overlay] release trigger failed", slog.String("id", id), slog.Any("error", err))
	}
}

// fail ends a pending request with an error card, unless the user has
// closed the surface in the meantime.
func (o *Overlay) fail(ctx context.Context, id string, p *pending, kind types.ErrorKind) {
	o.finish(ctx, id, p)
	if o.hasSurface(ctx, id) {
		o.showError(ctx, id, kind)
	}
}

func (o *Overlay) dismiss(ctx context.Context, id string) {
	if !o.hasSurface(ctx, id) {
		return
	}
	o.removeSurface(ctx, id)
	if o.states[id] == ResultShown {
		o.states[id] = TriggerAttached
	}
}

func (o *Overlay) showResult(ctx context.Context, res types.AnalysisResult) {
	html, err := o.cfg.Cards.Result(res)
	if err != nil {
		slog.Warn("[overlay] render card failed", slog.String("id", res.TweetID), slog.Any("error", err))
		o.showError(ctx, res.TweetID, types.KindMalformedJudgment)
		return
	}
	o.show(ctx, res.TweetID, html)
}

func (o *Overlay) showError(ctx context.Context, id string, kind types.ErrorKind) {
	html, err := o.cfg.Cards.Error(kind)
	if err != nil {
		slog.Error("[overlay] render error card failed", slog.Any("error", err))
		return
	}
	o.show(ctx, id, html)
}

func (o *Overlay) showLoading(ctx context.Context, id string) {
	html, err := o.cfg.Cards.Loading()
	if err != nil {
		slog.Error("[overlay] render loading card failed", slog.Any("error", err))
		return
	}
	if err := o.page.ShowSurface(ctx, id, html); err != nil {
		slog.Debug("[overlay] show surface failed", slog.String("id", id), slog.Any("error", err))
	}
}

// show renders a final card and moves the post to ResultShown.
func (o *Overlay) show(ctx context.Context, id, html string) {
	if err := o.page.ShowSurface(ctx, id, html); err != nil {
		slog.Debug("[overlay] show surface failed", slog.String("id", id), slog.Any("error", err))
		return
	}
	o.states[id] = ResultShown
}

func (o *Overlay) hasSurface(ctx context.Context, id string) bool {
	ok, err := o.page.HasSurface(ctx, id)
	if err != nil {
		slog.Debug("[overlay] surface lookup failed", slog.String("id", id), slog.Any("error", err))
		return false
	}
	return ok
}

func (o *Overlay) removeSurface(ctx context.Context, id string) {
	if err := o.page.RemoveSurface(ctx, id); err != nil {
		slog.Debug("[overlay] remove surface failed", slog.String("id", id), slog.Any("error", err))
	}
}

func (o *Overlay) countLookup(result string) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (o *Overlay) countDropped() {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.DroppedReplies.Inc()
	}
}
