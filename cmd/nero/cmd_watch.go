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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nero/internal/logging"
	"nero/internal/metrics"
	"nero/internal/watch"
)

var (
	watchMetricsAddr string
	watchFacts       []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [script]",
	Short: "Re-evaluate a script whenever it changes",
	Long: `Evaluates a script, then watches it and prints the inferred facts again
after every change. With --metrics-addr the evaluation metrics are served on
/metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *metrics.Metrics
	addr := watchMetricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		m = metrics.New(cfg.Metrics.Namespace)
		srv := serveMetrics(addr, m)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out := cmd.OutOrStdout()
	evaluate := func(_ context.Context, path string) error {
		facts, err := readFactFiles(watchFacts)
		if err != nil {
			return err
		}
		text, err := evaluateFile(path, runOptions{facts: facts, debug: cfg.Engine.Debug}, m)
		if err != nil {
			fmt.Fprintf(out, "// %s: %v\n", path, err)
			return err
		}
		fmt.Fprintf(out, "// %s at %s\n%s", path, time.Now().Format(time.TimeOnly), text)
		return nil
	}
	_ = evaluate(ctx, args[0])

	w, err := watch.New(args, cfg.GetWatchDebounce(), evaluate,
		logging.For(logger, cfg.Logging, logging.CategoryWatch))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh
	logger.Info("Received shutdown signal")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
