// Package metrics holds the prometheus collectors of the overlay pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Activations    prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	Analyses       *prometheus.CounterVec
	DroppedReplies prometheus.Counter
	ImageWait      *prometheus.HistogramVec
	ProviderCalls  *prometheus.CounterVec
}

// New registers a fresh set of collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Activations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stereotweet",
			Name:      "trigger_activations_total",
			Help:      "Trigger activations received from the page.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stereotweet",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stereotweet",
			Name:      "analyses_total",
			Help:      "Completed analysis attempts by outcome.",
		}, []string{"outcome"}),
		DroppedReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stereotweet",
			Name:      "dropped_replies_total",
			Help:      "Replies with no pending request or no live result surface.",
		}),
		ImageWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stereotweet",
			Name:      "image_wait_seconds",
			Help:      "Time spent waiting for a post's media element.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"found"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stereotweet",
			Name:      "provider_calls_total",
			Help:      "Calls to the analysis provider by provider name.",
		}, []string{"provider"}),
	}
	m.Registry.MustRegister(m.Activations, m.CacheLookups, m.Analyses, m.DroppedReplies, m.ImageWait, m.ProviderCalls)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("[metrics] serving", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
