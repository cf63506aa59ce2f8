package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ibeckermayer/stereotweet/internal/analyzer/providers"
	"github.com/ibeckermayer/stereotweet/internal/bus"
	"github.com/ibeckermayer/stereotweet/internal/metrics"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

// KeySource yields the provider credential. It is consulted before every
// request; an empty key means none is configured.
type KeySource interface {
	APIKey() (string, error)
}

// ProviderFactory builds a provider for one request.
type ProviderFactory func(apiKey string) (providers.Provider, error)

// Renderer turns coordinates into the base64 PNG sent back to the page.
type Renderer interface {
	RenderBase64(types.Coordinates) (string, error)
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Keys     KeySource
	Factory  ProviderFactory
	Renderer Renderer
	// Limiter paces provider calls; nil means unlimited.
	Limiter *rate.Limiter
	Metrics *metrics.Metrics
	// SaveExchanges dumps prompts and responses to ExchangeDir.
	SaveExchanges bool
	ExchangeDir   string
}

// Worker owns the analysis side of the bus. Each request is handled in its
// own goroutine and answered with an independent message.
type Worker struct {
	port *bus.Port
	cfg  WorkerConfig
	wg   sync.WaitGroup
}

// NewWorker creates a worker listening on port.
func NewWorker(port *bus.Port, cfg WorkerConfig) *Worker {
	return &Worker{port: port, cfg: cfg}
}

// Run serves requests until ctx is done or the peer closes the port. It
// waits for in-flight analyses before returning.
func (w *Worker) Run(ctx context.Context) error {
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-w.port.Recv():
			if !ok {
				return nil
			}
			env, err := frame.Envelope()
			if err != nil {
				slog.Warn("[analyzer] dropping undecodable frame", slog.Any("error", err))
				continue
			}
			if env.Type != types.MessageTweetInfo {
				slog.Debug("[analyzer] ignoring message", slog.String("type", env.Type))
				continue
			}
			var info types.TweetInfo
			if err := env.Decode(&info); err != nil {
				slog.Warn("[analyzer] dropping malformed request", slog.Any("error", err))
				continue
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				result := w.Handle(ctx, info)
				if err := w.port.Send(ctx, types.MessageAnalysisResult, result); err != nil {
					slog.Warn("[analyzer] failed to send result",
						slog.String("id", info.ID), slog.Any("error", err))
				}
			}()
		}
	}
}

// Handle analyses one request and builds its reply. Every failure becomes an
// error reply scoped to that post.
func (w *Worker) Handle(ctx context.Context, info types.TweetInfo) types.AnalysisResult {
	log := slog.With(slog.String("id", info.ID), slog.String("request_id", info.RequestID))
	log.Info("[analyzer] analysing post")

	result, err := w.analyse(WithTweetID(ctx, info.ID), info)
	if err != nil {
		kind := types.KindOf(err)
		log.Warn("[analyzer] analysis failed", slog.String("kind", string(kind)), slog.Any("error", err))
		w.count(string(kind))
		return types.AnalysisResult{
			OK:        false,
			TweetID:   info.ID,
			RequestID: info.RequestID,
			Error:     kind.Guidance(),
			ErrorKind: kind,
		}
	}

	log.Info("[analyzer] analysis complete")
	w.count("ok")
	return result
}

func (w *Worker) analyse(ctx context.Context, info types.TweetInfo) (types.AnalysisResult, error) {
	key, err := w.cfg.Keys.APIKey()
	if err != nil {
		return types.AnalysisResult{}, types.NewError(types.KindCredentialMissing, fmt.Errorf("read api key: %w", err))
	}
	if key == "" {
		return types.AnalysisResult{}, types.NewError(types.KindCredentialMissing, errors.New("no api key configured"))
	}

	if w.cfg.Limiter != nil {
		if err := w.cfg.Limiter.Wait(ctx); err != nil {
			return types.AnalysisResult{}, types.NewError(types.KindProviderUnavailable, fmt.Errorf("rate limiter: %w", err))
		}
	}

	provider, err := w.cfg.Factory(key)
	if err != nil {
		return types.AnalysisResult{}, types.NewError(types.KindProviderUnavailable, err)
	}
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.ProviderCalls.WithLabelValues(provider.Name()).Inc()
	}

	judgment, err := NewClient(provider, w.cfg.SaveExchanges, w.cfg.ExchangeDir).Judge(ctx, info.Cohesive)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	image, err := w.cfg.Renderer.RenderBase64(judgment.Coordinates)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("render marker: %w", err)
	}

	return types.AnalysisResult{
		OK:          true,
		TweetID:     info.ID,
		RequestID:   info.RequestID,
		ImageBase64: image,
		Keywords:    judgment.Keywords,
		Reasoning:   judgment.Reasoning,
	}, nil
}

func (w *Worker) count(outcome string) {
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.Analyses.WithLabelValues(outcome).Inc()
	}
}
