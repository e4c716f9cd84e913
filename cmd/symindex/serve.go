package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/mcp"
	"github.com/standardbeagle/symindex/internal/metrics"
	"github.com/standardbeagle/symindex/internal/shard"
	"github.com/standardbeagle/symindex/internal/watcher"
)

// serveCommand keeps a FileIndex in sync with a shard directory and answers
// MCP tool calls on stdio. Stdout belongs to the protocol from here on.
func serveCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	fi := index.NewFileIndex(shard.Extractor{}, index.WithQualityWeights(cfg.Ranking))
	sw, err := watcher.New(c.String("dir"), fi, cfg.Watch)
	if err != nil {
		return err
	}

	addr := c.String("metrics-addr")
	if addr == "" {
		addr = cfg.Serve.MetricsAddr
	}
	if addr != "" {
		reg := newServeRegistry(fi)
		sw.SetBatchCallback(metrics.NewWatchCollector(reg).BatchApplied)
		shutdown := startMetricsServer(addr, reg)
		defer shutdown()
	}

	if err := sw.Start(); err != nil {
		_ = sw.Stop()
		return fmt.Errorf("failed to start shard watcher: %w", err)
	}
	defer sw.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := mcp.NewServer(fi, cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// newServeRegistry collects the index gauges and Go runtime metrics.
func newServeRegistry(fi *index.FileIndex) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterIndexGauges(reg, fi.Index())
	return reg
}

// startMetricsServer serves reg on addr. The returned function shuts the
// listener down.
func startMetricsServer(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogWatch("metrics server on %s stopped: %v\n", addr, err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
