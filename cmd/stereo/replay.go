package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/stereotweet/internal/app"
	"github.com/ibeckermayer/stereotweet/internal/page"
	"github.com/ibeckermayer/stereotweet/internal/store"
	"github.com/ibeckermayer/stereotweet/internal/waitfor"
)

type replayOutcome struct {
	ID        string
	Status    string
	Keywords  string
	Reasoning string
}

func newReplayCmd(e *env) *cobra.Command {
	var (
		location string
		ids      []string
		timeout  time.Duration
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "replay <timeline.html>",
		Short: "Analyse the posts of a saved X page without a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := page.NewMemory(location, string(raw))
			if err != nil {
				return err
			}

			var cache *store.Cache
			if !noCache {
				if cache, err = app.OpenCache(e.cfg); err != nil {
					return err
				}
				defer cache.Close()
			}
			session, err := app.NewSession(e.cfg, doc, cache, app.SessionOptions{Keys: e.keys()})
			if err != nil {
				return err
			}

			outcomes, err := replay(cmd.Context(), session, doc, ids, timeout)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				e.out.Warning("no posts with a permalink found in %s", args[0])
				return nil
			}

			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{o.ID, o.Status, o.Keywords, o.Reasoning})
			}
			return e.out.Table([]string{"Post", "Result", "Keywords", "Reasoning"}, rows)
		},
	}

	cmd.Flags().StringVar(&location, "location", "https://x.com/home", "URL the page was saved from")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "only analyse these post ids")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "give up waiting after this long")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore and do not update the result cache")
	return cmd
}

// replay activates every located post (or only ids) and collects the card
// each one ends up showing.
func replay(ctx context.Context, session *app.Session, doc *page.Memory, ids []string, timeout time.Duration) ([]replayOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })

	outcomes, err := collect(gctx, session, doc, ids, timeout)
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) && err == nil {
		err = werr
	}
	return outcomes, err
}

func collect(ctx context.Context, session *app.Session, doc *page.Memory, ids []string, timeout time.Duration) ([]replayOutcome, error) {
	snap, err := session.Overlay.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		for id := range snap.States {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, ok := snap.States[id]; !ok {
			return nil, fmt.Errorf("post %s is not on the page", id)
		}
		doc.Activate(id)
	}

	outcomes, done, err := waitfor.Until(ctx, waitfor.Options{
		Interval: 100 * time.Millisecond,
		Timeout:  timeout,
	}, func(context.Context) ([]replayOutcome, bool, error) {
		out := make([]replayOutcome, 0, len(ids))
		for _, id := range ids {
			o, done := outcome(doc, id)
			if !done {
				return nil, false, nil
			}
			out = append(out, o)
		}
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("posts still analysing after %s", timeout)
	}
	return outcomes, nil
}

// outcome reads the final card of a post; done is false while it is loading.
func outcome(doc *page.Memory, id string) (replayOutcome, bool) {
	if msg := doc.SurfaceFind(id, ".error-msg"); msg.Length() > 0 {
		return replayOutcome{ID: id, Status: "error", Reasoning: strings.TrimSpace(msg.Text())}, true
	}
	if doc.SurfaceFind(id, "img.img").Length() == 0 {
		return replayOutcome{}, false
	}
	keywords := strings.TrimSpace(doc.SurfaceFind(id, ".keywords-text").Text())
	return replayOutcome{
		ID:        id,
		Status:    "ok",
		Keywords:  strings.TrimSpace(strings.TrimPrefix(keywords, "Keywords:")),
		Reasoning: strings.TrimSpace(doc.SurfaceFind(id, ".reasoning-text").Text()),
	}, true
}
