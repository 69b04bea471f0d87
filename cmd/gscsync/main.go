// Package main wires together the GSC sync service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/feirasderua/gsc-sync/internal/api"
	"github.com/feirasderua/gsc-sync/internal/archive"
	"github.com/feirasderua/gsc-sync/internal/clock/system"
	"github.com/feirasderua/gsc-sync/internal/config"
	"github.com/feirasderua/gsc-sync/internal/gsc"
	"github.com/feirasderua/gsc-sync/internal/logging"
	"github.com/feirasderua/gsc-sync/internal/metrics"
	"github.com/feirasderua/gsc-sync/internal/notify"
	"github.com/feirasderua/gsc-sync/internal/pipeline"
	"github.com/feirasderua/gsc-sync/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var loader *store.Loader
	if cfg.DB.DSN != "" {
		loader, err = store.NewLoader(ctx, store.Config{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		}, logger.Named("store"))
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer loader.Close()
	} else {
		logger.Warn("db.dsn not configured; trigger requests will be rejected")
	}

	var archiver archive.Provider = archive.NoOp{}
	if cfg.Archive.Provider == "gcs" {
		gcs, err := archive.NewGCSProvider(ctx, cfg.Archive.Bucket, logger.Named("archive"))
		if err != nil {
			logger.Fatal("gcs init failed", zap.Error(err))
		}
		archiver = gcs
	}

	var publisher notify.Publisher = notify.NoOp{}
	if cfg.Notify.Provider == "pubsub" {
		ps, err := notify.NewPubSubPublisher(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID, logger.Named("notify"))
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		publisher = ps
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher failed", zap.Error(err))
		}
	}()

	source := &gsc.Source{
		CredentialsFile: cfg.GSC.CredentialsFile,
		Scopes:          cfg.GSC.Scopes,
		RowLimit:        cfg.GSC.RowLimit,
		Logger:          logger.Named("gsc"),
	}
	auth := func(ctx context.Context) (pipeline.Fetcher, error) {
		return source.Authenticate(ctx)
	}

	runner := pipeline.NewRunner(
		auth,
		loader,
		archiver,
		publisher,
		system.New(),
		pipeline.Config{
			SiteURL:       cfg.GSC.SiteURL,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger.Named("pipeline"),
	)

	apiServer := api.NewServer(runner, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
