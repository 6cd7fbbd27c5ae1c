package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cachesync/cachesync/internal/cachestore"
	"github.com/cachesync/cachesync/internal/config"
	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/gateway"
	"github.com/cachesync/cachesync/internal/gateway/httpgateway"
	"github.com/cachesync/cachesync/internal/gateway/s3gateway"
	"github.com/cachesync/cachesync/internal/ledger"
	"github.com/cachesync/cachesync/internal/logging"
	"github.com/cachesync/cachesync/internal/query"
	"github.com/cachesync/cachesync/internal/remoteserver"
	"github.com/cachesync/cachesync/internal/synccore"
	"github.com/cachesync/cachesync/internal/syncmetrics"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cachesyncd",
		Short:   "Offline-first collection cache with deferred network synchronization",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Local entity store directory")
	rootCmd.PersistentFlags().StringP("listen", "l", ":8090", "Remote server listen address (serve-remote)")
	rootCmd.PersistentFlags().StringP("log-level", "", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("remote-backend", "", "", "Network Gateway backend: http or s3")
	rootCmd.PersistentFlags().StringP("remote-base-url", "", "", "Remote base URL (http backend)")
	rootCmd.PersistentFlags().StringP("remote-app-key", "", "", "Application key sent with every remote request")
	rootCmd.PersistentFlags().StringP("remote-bucket", "", "", "Remote bucket name (s3 backend)")

	rootCmd.AddCommand(newServeRemoteCmd())
	rootCmd.AddCommand(newDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newServeRemoteCmd runs the demo/reference remote collection server: the
// server side of the Network Gateway contract (§6), so the rest of the
// module has something real to synchronize against.
func newServeRemoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-remote",
		Short: "Run the reference remote collection server",
		RunE:  runServeRemote,
	}
}

func runServeRemote(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	store, err := entitystore.NewBadgerStore(entitystore.BadgerOptions{
		DataDir: cfg.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("open entity store: %w", err)
	}
	defer store.Close()

	srv := remoteserver.New(store, cfg.Sync.Namespace, cfg.Remote.AppKey, logger)

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logger.Info("received shutdown signal")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("remote server shutdown error")
		}
	}()

	logger.WithField("listen", cfg.Listen).Info("starting reference remote collection server")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("remote server error: %w", err)
	}
	logger.Info("remote server stopped")
	return nil
}

// newDemoCmd runs a scripted offline-save -> push -> pull session against a
// local Badger directory and a configured remote, printing the dual-phase
// result of each step.
func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted offline-save, push and pull session",
		RunE:  runDemo,
	}
	cmd.Flags().String("collection", "notes", "Collection name to exercise")
	return cmd
}

func runDemo(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	collection, _ := cmd.Flags().GetString("collection")

	localStore, err := entitystore.NewBadgerStore(entitystore.BadgerOptions{
		DataDir: cfg.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("open local entity store: %w", err)
	}
	defer localStore.Close()

	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}

	led := ledger.New(localStore, cfg.Sync.Namespace, cfg.Sync.LedgerCollection)

	var recorder *syncmetrics.Recorder
	if cfg.Metrics.Enable {
		recorder, err = syncmetrics.NewRecorder(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go serveMetrics(cfg.Metrics, logger)
	}

	store, err := cachestore.New(cachestore.Config{
		Collection:  collection,
		Namespace:   cfg.Sync.Namespace,
		AppKey:      cfg.Remote.AppKey,
		EntityStore: localStore,
		Ledger:      led,
		Gateway:     gw,
		FanOut:      cfg.Sync.FanOut,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build cache store: %w", err)
	}

	ctx := context.Background()
	opts := gateway.Options{Timeout: cfg.Remote.Timeout(), UseDeltaFetch: cfg.Remote.UseDeltaFetch}

	logger.Info("step 1: offline save")
	stored, pushResult, err := store.Save(ctx, &entity.Entity{Fields: map[string]any{"title": "write the demo"}}, opts)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	logger.WithFields(logrus.Fields{"cache_id": stored.ID, "local": stored.IsLocal()}).Info("save: cache phase complete")
	if recorder != nil {
		recorder.ObservePush(pushResult)
	}
	logPushResult(logger, "save's immediate push", pushResult)

	logger.Info("step 2: explicit sync (push then pull)")
	syncResult, err := store.Sync(ctx, query.Empty(), opts)
	if err != nil {
		logger.WithError(err).Warn("sync reported an error")
	}
	if syncResult != nil {
		if recorder != nil {
			recorder.ObservePush(syncResult.Push)
			recorder.ObservePull(collection, len(syncResult.Pull))
		}
		logPushResult(logger, "sync's push phase", syncResult.Push)
		logger.WithField("fetched", len(syncResult.Pull)).Info("sync: pull phase complete")
	}

	logger.Info("step 3: find (cache value, then reconciled network value)")
	dr, err := store.Find(ctx, query.Empty(), opts)
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	logger.WithField("count", len(dr.Cache)).Info("find: cache phase")
	network, err := dr.Network()
	if err != nil {
		logger.WithError(err).Warn("find: network phase error")
	} else {
		logger.WithField("count", len(network)).Info("find: network phase reconciled")
	}
	return nil
}

func logPushResult(logger *logrus.Logger, label string, result *synccore.PushResult) {
	if result == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"step":    label,
		"success": len(result.Success),
		"errors":  len(result.Error),
	}).Info("push result")
	for _, e := range result.Error {
		logger.WithFields(logrus.Fields{"id": e.ID, "error": e.Err}).Warn("push entry failed")
	}
}

func buildGateway(cfg *config.Config, logger *logrus.Logger) (gateway.Gateway, error) {
	switch cfg.Remote.Backend {
	case "s3":
		return s3gateway.New(s3gateway.Config{
			Bucket:          cfg.Remote.Bucket,
			Region:          cfg.Remote.Region,
			Endpoint:        cfg.Remote.Endpoint,
			AccessKeyID:     cfg.Remote.AccessKeyID,
			SecretAccessKey: cfg.Remote.SecretAccessKey,
			UsePathStyle:    cfg.Remote.UsePathStyle,
			Logger:          logger,
		})
	default:
		return httpgateway.New(cfg.Remote.BaseURL, cfg.Remote.AppKey, logger), nil
	}
}

func serveMetrics(cfg config.MetricsConfig, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	logger.WithFields(logrus.Fields{"listen": cfg.Listen, "path": cfg.Path}).Info("starting metrics endpoint")
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Warn("metrics endpoint stopped")
	}
}
