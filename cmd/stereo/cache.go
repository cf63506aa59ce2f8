package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/stereotweet/internal/app"
	"github.com/ibeckermayer/stereotweet/internal/store"
)

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or empty the result cache",
	}
	cmd.AddCommand(newCacheListCmd(e), newCachePruneCmd(e), newCacheClearCmd(e))
	return cmd
}

func (e *env) withCache(fn func(*store.Cache) error) error {
	cache, err := app.OpenCache(e.cfg)
	if err != nil {
		return err
	}
	defer cache.Close()
	return fn(cache)
}

func newCacheListCmd(e *env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withCache(func(cache *store.Cache) error {
				entries, err := cache.List(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					expired := cache.Expired(entry)
					if expired && !all {
						continue
					}
					rows = append(rows, []string{
						entry.TweetID,
						entry.StoredTime().Format(time.DateTime),
						strconv.FormatBool(expired),
						entry.Payload.Keywords,
					})
				}
				if len(rows) == 0 {
					e.out.Info("cache is empty")
					return nil
				}
				return e.out.Table([]string{"Post", "Stored", "Expired", "Keywords"}, rows)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include expired entries")
	return cmd
}

func newCachePruneCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withCache(func(cache *store.Cache) error {
				n, err := cache.Prune(cmd.Context())
				if err != nil {
					return err
				}
				e.out.Success("pruned %d expired results", n)
				return nil
			})
		},
	}
}

func newCacheClearCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withCache(func(cache *store.Cache) error {
				if err := cache.Clear(cmd.Context()); err != nil {
					return err
				}
				e.out.Success("cache cleared")
				return nil
			})
		},
	}
}
