package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/render"
	"github.com/ibeckermayer/stereotweet/internal/types"
)

func newRenderCmd(e *env) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render <x> <y>",
		Short: "Draw a compass marker at the given coordinates",
		Long: `render draws the compass image the overlay would show for a post judged
at (x, y). Both axes run from 0 to 20 with the origin in the top-left
corner; values outside are clamped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c types.Coordinates
			var err error
			if c.X, err = strconv.ParseFloat(args[0], 64); err != nil {
				return fmt.Errorf("x: %w", err)
			}
			if c.Y, err = strconv.ParseFloat(args[1], 64); err != nil {
				return fmt.Errorf("y: %w", err)
			}

			png, err := render.New(e.cfg.Render.PlanePath, e.cfg.Render.MarkerRadius).Render(c)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0644); err != nil {
				return err
			}
			e.out.Success("wrote %s", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "compass.png", "output PNG file")
	return cmd
}
