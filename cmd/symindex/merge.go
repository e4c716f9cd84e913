package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symindex/internal/metrics"
	"github.com/standardbeagle/symindex/internal/shard"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

// mergeCommand folds a shard directory into one merged shard
func mergeCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = cfg.Merge.Output
	}
	workers := cfg.Merge.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	pattern := c.String("pattern")
	if pattern == "" {
		pattern = cfg.Merge.Pattern
	}
	kinds, err := types.ParseRefKind(c.StringSlice("kind"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector := metrics.NewMergeCollector(reg)

	result, err := shard.Merge(ctx, c.String("dir"), output, shard.MergeOptions{
		Workers:  workers,
		Pattern:  pattern,
		Filter:   slab.RefFilter{Kinds: kinds},
		Observer: collector,
	})
	if path := c.String("metrics-file"); path != "" {
		// Written for failed merges too, so a textfile collector sees them.
		if werr := prometheus.WriteToTextfile(path, reg); werr != nil && err == nil {
			err = fmt.Errorf("failed to write metrics to %s: %w", path, werr)
		}
	}
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Merged %d of %d shards into %s\n", result.Loaded, result.Shards, output)
	fmt.Fprintf(w, "  Symbols:    %d (%d duplicates dropped)\n", result.Symbols.Len(), result.Duplicates)
	fmt.Fprintf(w, "  References: %d\n", result.Refs.Len())
	if skipped := result.Skipped.ErrorOrNil(); skipped != nil {
		fmt.Fprintf(w, "  Skipped:    %d shard(s)\n", result.Shards-result.Loaded)
	}
	return nil
}

// loadShard reads a merged shard for the query commands
func loadShard(c *cli.Context, mergeOutput string) (*shard.Shard, error) {
	path := c.String("shard")
	if path == "" {
		path = mergeOutput
	}
	return shard.Read(path, slab.RefFilter{})
}
