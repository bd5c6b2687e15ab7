package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/inferq/cache/sqlite"
	"github.com/jonwraymond/inferq/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the persistent result cache",
	}

	open := func(ctx context.Context) (*sqlite.Cache, error) {
		cfg, err := config.Load(ctx, configPath)
		if err != nil {
			return nil, err
		}
		if cfg.Cache.Backend != "sqlite" {
			return nil, fmt.Errorf("cache backend is %q; only sqlite caches outlive the daemon", cfg.Cache.Backend)
		}
		return sqlite.Open(cfg.Cache.Path, cfg.CachePolicy())
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of live entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", c.Len(cmd.Context()))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", n)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "inferqd.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
