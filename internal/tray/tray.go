// Package tray builds the menu bar app around an app.App.
package tray

import (
	"context"
	_ "embed"
	"log/slog"

	"github.com/getlantern/systray"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/stereotweet/internal/app"
	"github.com/ibeckermayer/stereotweet/internal/config"
)

//go:embed icon.png
var iconBytes []byte

func authLabels(connected bool) (status, action string) {
	if connected {
		return "● Connected to X", "Logout"
	}
	return "○ Not connected", "Login to X"
}

func overlayLabel(running bool) string {
	if running {
		return "Stop Overlay"
	}
	return "Open X with Overlay"
}

// OnReady returns a systray onReady callback that sets up the menu.
func OnReady(a *app.App) func() {
	return func() {
		// Template icon for macOS menu bar styling
		systray.SetTemplateIcon(iconBytes, iconBytes)
		systray.SetTitle("")
		systray.SetTooltip("stereotweet - political compass for your timeline")

		status, action := authLabels(a.IsAuthenticated())
		mAuthStatus := systray.AddMenuItem(status, "Authentication status")
		mAuthStatus.Disable()
		mAuthAction := systray.AddMenuItem(action, "Login or logout from X")

		systray.AddSeparator()

		mOverlay := systray.AddMenuItem(overlayLabel(a.IsRunning()), "Open or close the X window with the overlay")
		mClearCache := systray.AddMenuItem("Clear Cached Results", "Forget every stored analysis")

		systray.AddSeparator()

		mEditConfig := systray.AddMenuItem("Edit Config", "Open config file in editor")
		mReloadConfig := systray.AddMenuItem("Reload Config", "Reload configuration from disk")

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit stereotweet")

		updateAuthUI := func() {
			status, action := authLabels(a.IsAuthenticated())
			mAuthStatus.SetTitle(status)
			mAuthAction.SetTitle(action)
		}

		go func() {
			for {
				select {
				case <-mAuthAction.ClickedCh:
					if a.IsAuthenticated() {
						_ = a.TriggerLogout()
					} else {
						_ = a.TriggerLogin()
					}
					updateAuthUI()

				case <-mOverlay.ClickedCh:
					if a.IsRunning() {
						a.StopOverlay()
					} else if err := a.StartOverlay(); err != nil {
						slog.Error("[tray] failed to open overlay", slog.Any("error", err))
					}
					mOverlay.SetTitle(overlayLabel(a.IsRunning()))

				case <-mClearCache.ClickedCh:
					if err := a.ClearCache(context.Background()); err != nil {
						slog.Error("[tray] failed to clear cache", slog.Any("error", err))
					}

				case <-mEditConfig.ClickedCh:
					path, err := config.ConfigPath()
					if err != nil {
						slog.Error("[tray] failed to get config path", slog.Any("error", err))
						continue
					}
					if err := browser.OpenFile(path); err != nil {
						slog.Error("[tray] failed to open config file", slog.Any("error", err))
					}

				case <-mReloadConfig.ClickedCh:
					if err := a.ReloadConfig(); err != nil {
						slog.Error("[tray] failed to reload config", slog.Any("error", err))
					}

				case <-mQuit.ClickedCh:
					a.StopOverlay()
					systray.Quit()
					return
				}
			}
		}()
	}
}

// OnExit is the systray onExit callback.
func OnExit() {
	slog.Info("stereotweet shutting down")
}
