package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	pkgbrowser "github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/browser"
	"github.com/ibeckermayer/stereotweet/internal/config"
)

const botTestURL = "https://bot.sannysoft.com"

func newOpenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache>",
		Short:     "Open the config file or the cache directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			switch args[0] {
			case "config":
				if err := ensureConfig(e); err != nil {
					return err
				}
				target = e.cfgPath
			case "cache":
				path, err := e.cfg.CachePath()
				if err != nil {
					return err
				}
				target = path
			default:
				return fmt.Errorf("unknown target %q, want config or cache", args[0])
			}
			return pkgbrowser.OpenFile(target)
		},
	}
}

// ensureConfig writes the defaults so there is a file to open.
func ensureConfig(e *env) error {
	_, err := config.LoadFile(e.cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return e.cfg.SaveFile(e.cfgPath)
	}
	return err
}

// newBotTestCmd opens a fingerprinting page with the overlay's browser
// options so the stealth flags can be audited by eye.
func newBotTestCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:    "bot-test",
		Short:  "Open " + botTestURL + " with the overlay's browser options",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, cancel, err := browser.NewTab(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cancel()

			err = chromedp.Run(tab,
				chromedp.Navigate(botTestURL),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			)
			if err != nil {
				return fmt.Errorf("navigate: %w", err)
			}

			e.out.Print("Press Enter to close the browser...")
			_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			return nil
		},
	}
}
