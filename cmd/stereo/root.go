package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/auth"
	"github.com/ibeckermayer/stereotweet/internal/config"
	"github.com/ibeckermayer/stereotweet/internal/logging"
)

// env is the state shared by every subcommand once flags are parsed.
type env struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	out    *printer
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "stereo",
		Short: "Place posts on a political compass while you browse X",
		Long: `stereo drives a Chrome window on X and adds a compass button to every
post. Clicking it sends the post to the configured LLM and shows where the
post sits on the political compass, with the model's reasoning.

Example usage:
  stereo set-key               # store the provider API key
  stereo login                 # capture an X session
  stereo run                   # open X with the overlay
  stereo replay timeline.html  # analyse a saved timeline without a browser
  stereo cache list            # show cached results`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.closer != nil {
				return e.closer.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&e.cfgPath, "config", "", "config file (default is the user config dir)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(e),
		newReplayCmd(e),
		newLoginCmd(e),
		newLogoutCmd(e),
		newCacheCmd(e),
		newRenderCmd(e),
		newSetKeyCmd(e),
		newOpenCmd(e),
		newBotTestCmd(e),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	e.out = newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())

	if err := config.LoadEnv(); err != nil {
		e.out.Warning("could not load .env: %v", err)
	}

	if e.cfgPath == "" {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		e.cfgPath = path
	}

	cfg, err := config.LoadFile(e.cfgPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
	case err != nil:
		return err
	}
	e.cfg = cfg

	logCfg := cfg.Logging
	// Only long-running commands write the log file.
	logCfg.File = logCfg.File && (cmd.Name() == "run" || cmd.Name() == "replay")
	if e.verbose {
		logCfg.Level = "debug"
	}
	closer, err := logging.Init(logCfg)
	if err != nil {
		return err
	}
	e.closer = closer
	return nil
}

func (e *env) keys() config.KeyFile {
	return config.KeyFile{Path: e.cfgPath}
}

func (e *env) authManager() (*auth.Manager, error) {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(auth.NewCookieStore(path)), nil
}
