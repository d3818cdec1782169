// objstored is the ocean-observing object store's daemon.
//
// It reads configuration from objstore.json in the working directory,
// connects to PostgreSQL (only when the blob or commit store is
// configured for the postgres backend), opens the blob/commit store
// backends, seeds the
// bootstrap catalog, and starts an HTTP server exposing push/pull/
// checkout/fetch_blobs/put_blobs plus the subscribeCommits feed.
//
// Usage:
//
//	./objstored                # reads ./objstore.json, starts server
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/config"
	"github.com/oceanobs/objstore/internal/notify"
	"github.com/oceanobs/objstore/internal/preload"
	"github.com/oceanobs/objstore/internal/server"
	"github.com/oceanobs/objstore/internal/store"
	"github.com/oceanobs/objstore/internal/workbench"
)

func main() {
	configPath := flag.String("config", "objstore.json", "path to configuration file")
	dev := flag.Bool("dev", false, "use a development (console, debug-level) logger")
	flag.Parse()

	logger := newLogger(*dev)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Info("config loaded",
		zap.String("listenAddr", cfg.ListenAddr),
		zap.String("dbName", cfg.DBName),
		zap.String("blobCache", cfg.BlobCache),
		zap.String("commitCache", cfg.CommitCache),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	var db *store.DB
	if cfg.BlobCache == "postgres" || cfg.CommitCache == "postgres" {
		db, err = store.Open(ctx, cfg.ConnString())
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("database connected, schema bootstrapped")
	}

	blobs, err := blobstore.Open(cfg.BlobCache, blobstore.Deps{DB: db, RedisAddr: cfg.RedisAddr})
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}

	commits, err := commitstore.Open(cfg.CommitCache, commitstore.Deps{DB: db})
	if err != nil {
		logger.Fatal("failed to open commit store", zap.Error(err))
	}

	wb := workbench.NewManager(blobs, commits, cfg.CacheSize, cfg.VerifyAfterPut)

	var persister *notify.Persister
	if db != nil {
		persister = notify.NewPersister(db)
	}
	events := notify.NewManager(persister)
	events.SetLogger(logger.Named("notify"))
	wb.SetEvents(events)

	preloader := preload.New(wb)
	preloader.SetLogger(logger.Named("preload"))
	if err := preloader.Run(ctx, cfg.Preload); err != nil {
		logger.Fatal("preload failed", zap.Error(err))
	}

	srv := server.New(cfg, wb, events)
	srv.SetLogger(logger.Named("server"))
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("objstored stopped")
}

func newLogger(dev bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
