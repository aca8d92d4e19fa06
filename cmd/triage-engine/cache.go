// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/embedcache"
	"github.com/pdiddy/triage-engine/internal/triage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the embedding and decision stores",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report embedding cache occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.cache.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Embeddings: %d (%d expired)\n", stats.Total, stats.Expired)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired embeddings and audit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		cache, err := embedcache.New(cfg.Store.Dir, nil, cfg.Embedding.CacheTTL, cfg.Embedding.BatchSize)
		if err != nil {
			return err
		}
		defer cache.Close()

		embeddings, err := cache.Prune(context.Background())
		if err != nil {
			return err
		}

		audit, err := triage.NewStore(cfg.Store.Dir, cfg.Store.DecisionTTL)
		if err != nil {
			return err
		}
		defer audit.Close()

		decisions, err := audit.Prune(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Pruned %d embeddings, %d decisions\n", embeddings, decisions)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
