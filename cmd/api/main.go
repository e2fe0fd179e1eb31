package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/knotbyt/BF6-application/internal/app"
	"github.com/knotbyt/BF6-application/internal/config"
	"github.com/knotbyt/BF6-application/internal/media"
	"github.com/knotbyt/BF6-application/internal/mirror"
	"github.com/knotbyt/BF6-application/internal/search"
	"github.com/knotbyt/BF6-application/internal/session"
	"github.com/knotbyt/BF6-application/internal/store"
)

func main() {
	baseLogger, err := zap.NewProduction()
	if err != nil {
		os.Exit(2)
	}
	defer baseLogger.Sync()
	logger := baseLogger.Sugar()

	cfg := config.Load()
	ctx := context.Background()

	if dir := filepath.Dir(cfg.ClansFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalw("create data dir", "dir", dir, "error", err)
		}
	}
	fileStore := store.NewFileStore(cfg.ClansFile)
	if err := fileStore.Init(); err != nil {
		logger.Fatalw("initialize clan store", "path", cfg.ClansFile, "error", err)
	}

	// The document DB mirror is best-effort; a down database never blocks
	// startup or writes.
	var replica *mirror.Replicator
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warnw("secondary store unavailable, continuing without mirror", "error", err)
		} else {
			defer db.Close()
			secondary := store.NewPostgresStore(db)
			if err := secondary.EnsureSchema(ctx); err != nil {
				logger.Warnw("secondary schema setup failed, continuing without mirror", "error", err)
			} else {
				replica = mirror.New(secondary, logger)
				logger.Infow("mirroring to secondary store")
			}
		}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewStoreScan(fileStore), logger)

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatalw("redis connection failed", "error", err)
		}
		defer redisStore.Close()
		logger.Infow("using redis for refresh tokens")
		service = app.NewWithSessionStore(cfg, fileStore, redisStore, searchService, logger)
	} else {
		logger.Infow("no redis configured, refresh tokens disabled")
		service = app.New(cfg, fileStore, searchService, logger)
	}
	service.AttachMirror(replica)

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaService, err := media.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.MinioPublicURL)
		if err != nil {
			logger.Warnw("object storage unavailable, crest uploads disabled", "error", err)
		} else {
			service.AttachMedia(mediaService)
		}
	}

	if err := service.Bootstrap(ctx); err != nil {
		logger.Warnw("bootstrap failed, will retry on next restart", "error", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infow("clanhub api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown error", "error", err)
	}
}
