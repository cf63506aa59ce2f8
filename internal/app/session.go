package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/stereotweet/internal/analyzer"
	"github.com/ibeckermayer/stereotweet/internal/analyzer/providers"
	"github.com/ibeckermayer/stereotweet/internal/bus"
	"github.com/ibeckermayer/stereotweet/internal/card"
	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/metrics"
	"github.com/ibeckermayer/stereotweet/internal/overlay"
	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/render"
	"github.com/ibeckermayer/stereotweet/internal/scheduler"
	"github.com/ibeckermayer/stereotweet/internal/scraper"
	"github.com/ibeckermayer/stereotweet/internal/store"
)

const busBuffer = 64

// SessionOptions overrides parts of a session, mostly for tests and replays.
type SessionOptions struct {
	// Keys defaults to the config file and STEREOTWEET_API_KEY.
	Keys analyzer.KeySource
	// Factory defaults to the provider named in the config.
	Factory analyzer.ProviderFactory
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
}

// Session is one overlay attached to one page, with its analysis worker and
// maintenance jobs.
type Session struct {
	Overlay *overlay.Overlay
	Worker  *analyzer.Worker
	Metrics *metrics.Metrics

	scheduler   *scheduler.Scheduler
	metricsAddr string
}

// OpenCache opens the result cache configured in cfg.
func OpenCache(cfg *config.Config) (*store.Cache, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	cache, err := store.Open(path, store.Options{TTL: cfg.Cache.TTL(), MemoSize: cfg.Cache.MemoSize})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	return cache, nil
}

// ProviderFactory builds the configured provider for each request.
func ProviderFactory(cfg config.AnalysisConfig) analyzer.ProviderFactory {
	return func(apiKey string) (providers.Provider, error) {
		return providers.New(cfg.LLMProvider, apiKey, cfg.Model, providers.Options{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	}
}

// NewSession wires an overlay on p to an analysis worker over a fresh bus.
func NewSession(cfg *config.Config, p page.Page, cache *store.Cache, opts SessionOptions) (*Session, error) {
	if opts.Keys == nil {
		path, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		opts.Keys = config.KeyFile{Path: path}
	}
	if opts.Factory == nil {
		opts.Factory = ProviderFactory(cfg.Analysis)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	cards, err := card.New()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if rpm := cfg.Analysis.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}

	overlayPort, analysisPort := bus.Pair("overlay", "analysis", busBuffer)

	ocfg := overlay.Config{
		Page:           p,
		Port:           overlayPort,
		Cards:          cards,
		RequestTimeout: cfg.Overlay.RequestTimeout(),
		Extract: scraper.Options{
			ImageTimeout: cfg.Overlay.ImageWaitTimeout(),
			PollInterval: cfg.Overlay.ImagePollInterval(),
		},
		Metrics: opts.Metrics,
	}
	if cache != nil {
		ocfg.Cache = cache
	}

	s := &Session{
		Overlay: overlay.New(ocfg),
		Worker: analyzer.NewWorker(analysisPort, analyzer.WorkerConfig{
			Keys:          opts.Keys,
			Factory:       opts.Factory,
			Renderer:      render.New(cfg.Render.PlanePath, cfg.Render.MarkerRadius),
			Limiter:       limiter,
			Metrics:       opts.Metrics,
			SaveExchanges: cfg.Logging.Level == "debug",
		}),
		Metrics:     opts.Metrics,
		scheduler:   scheduler.New(nil, time.Minute),
		metricsAddr: cfg.Metrics.Addr,
	}

	if secs := cfg.Overlay.RescanIntervalSeconds; secs > 0 {
		err := s.scheduler.AddEvery("rescan", time.Duration(secs)*time.Second, func(context.Context) error {
			s.Overlay.Rescan()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if cache != nil && cfg.Cache.PruneDaily {
		err := s.scheduler.AddDaily("prune", "03:00", func(ctx context.Context) error {
			n, err := cache.Prune(ctx)
			if err != nil {
				return err
			}
			slog.Info("[app] pruned expired results", slog.Int64("rows", n))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Run drives the session until ctx is done or one of its parts fails.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Overlay.Run(ctx) })
	g.Go(func() error { return s.Worker.Run(ctx) })
	g.Go(func() error { return s.scheduler.Run(ctx) })
	if s.metricsAddr != "" {
		g.Go(func() error { return s.Metrics.Serve(ctx, s.metricsAddr) })
	}

	return g.Wait()
}
