package main

import (
	"log/slog"
	"os"

	"github.com/getlantern/systray"

	"github.com/ibeckermayer/stereotweet/internal/app"
	"github.com/ibeckermayer/stereotweet/internal/auth"
	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/logging"
	"github.com/ibeckermayer/stereotweet/internal/tray"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		slog.Warn("could not load .env", slog.Any("error", err))
	}

	// Load or create configuration
	cfg, existed, err := config.LoadOrDefault()
	if err != nil {
		slog.Warn("could not load config, using defaults", slog.Any("error", err))
	}

	closer, err := logging.Init(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", slog.Any("error", err))
		os.Exit(1)
	}
	defer closer.Close()

	if !existed {
		// First run
		if err := cfg.Save(); err != nil {
			slog.Warn("could not save default config", slog.Any("error", err))
		} else {
			path, _ := config.ConfigPath()
			slog.Info("created default config", slog.String("path", path))
		}
	}

	cookieStorePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		slog.Error("failed to get cookie store path", slog.Any("error", err))
		os.Exit(1)
	}
	authManager := auth.NewManager(auth.NewCookieStore(cookieStorePath))

	cache, err := app.OpenCache(cfg)
	if err != nil {
		slog.Error("failed to open result cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer cache.Close()

	if key, err := (config.KeyFile{}).APIKey(); err != nil {
		slog.Warn("could not read API key", slog.Any("error", err))
	} else if key == "" {
		slog.Warn("no API key configured, run `stereo set-key` before analysing posts")
	}

	a := app.New(cfg, authManager, cache)

	slog.Info("stereotweet starting")

	// Run systray (blocks until Quit)
	systray.Run(tray.OnReady(a), tray.OnExit)
}
