/*
 * Copyright (c) 2024, ICRAR. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/icrar/vospace/backend"
	"github.com/icrar/vospace/cmn"
	"github.com/icrar/vospace/dispatch"
	"github.com/icrar/vospace/store"
	"github.com/icrar/vospace/xaction"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vospaced: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vospaced",
	Short: "VOSpace 2.1 node/transfer server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file (defaults applied if absent)")
}

func run() error {
	cfg, err := cmn.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := cmn.NewLogger(cfg.Log.Level)

	st, err := store.Open(cfg.Store.DBPath, cfg.Store.LockWaitTimeout, store.AllowAll{})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	be, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}

	eng, err := xaction.NewEngine(st, be, cfg.Transfer)
	if err != nil {
		return fmt.Errorf("init job engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Recover(ctx); err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/vospace/", dispatch.NewRouter(cfg, st, eng, be, log))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("vospaced listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return eng.Wait()
}

// newBackend selects the storage backend adapter named by cfg.Backend.Provider
// (§4.E): "mem" for local development and tests, or one of the cloud object
// store adapters for production deployment.
func newBackend(cfg *cmn.Config) (backend.Provider, error) {
	opt := cfg.Backend.Options
	switch cfg.Backend.Provider {
	case "mem":
		base := opt["base_url"]
		if base == "" {
			base = "http://" + cfg.HTTP.ListenAddr + "/vospace/data"
		}
		return backend.NewMem(base), nil
	case "s3":
		return backend.NewS3(opt["bucket"], opt["region"])
	case "azure":
		return backend.NewAzure(opt["account_name"], opt["account_key"], opt["container"])
	case "gcs":
		return backend.NewGCS(context.Background(), opt["bucket"])
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
}
