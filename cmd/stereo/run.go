package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/app"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		headless bool
		url      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open X in Chrome with the overlay attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				e.cfg.Overlay.Headless = headless
			}
			if url != "" {
				e.cfg.Overlay.StartURL = url
			}

			manager, err := e.authManager()
			if err != nil {
				return err
			}
			if !manager.IsAuthenticated() {
				e.out.Warning("no stored X session; run `stereo login` or log in inside the window")
			}

			cache, err := app.OpenCache(e.cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, closeTab, err := app.OpenSession(ctx, e.cfg, manager, cache, app.SessionOptions{Keys: e.keys()})
			if err != nil {
				return err
			}
			defer closeTab()

			e.out.Success("overlay attached to %s, press Ctrl+C to stop", e.cfg.Overlay.StartURL)
			if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			e.out.Info("stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "run Chrome without a window")
	cmd.Flags().StringVar(&url, "url", "", "page to open (default from config)")
	return cmd
}
