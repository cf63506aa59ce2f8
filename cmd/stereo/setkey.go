package main

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/config"
)

func newSetKeyCmd(e *env) *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "set-key [key]",
		Short: "Store the LLM provider API key in the config file",
		Long: `set-key saves the API key used for analyses. Without an argument the key
is read from the first line of stdin. The running overlay picks it up on the
next analysis.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				e.out.Info("paste the API key and press Enter:")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return err
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty API key")
			}

			cfg := e.cfg
			cfg.Analysis.APIKey = key
			if provider != "" {
				switch provider {
				case config.ProviderGemini, config.ProviderAnthropic, config.ProviderOpenAI:
				default:
					return errors.New("unknown provider " + provider)
				}
				cfg.Analysis.LLMProvider = provider
			}
			if model != "" {
				cfg.Analysis.Model = model
			}

			if err := cfg.SaveFile(e.cfgPath); err != nil {
				return err
			}
			e.out.Success("API key for %s saved to %s", cfg.Analysis.LLMProvider, e.cfgPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "switch provider (gemini, anthropic, openai)")
	cmd.Flags().StringVar(&model, "model", "", "switch model")
	return cmd
}
