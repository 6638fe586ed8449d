package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/davidgr87/whats-that-sound/internal/config"
	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/mover"
	"github.com/davidgr87/whats-that-sound/internal/oracle"
	"github.com/davidgr87/whats-that-sound/internal/progress"
	"github.com/davidgr87/whats-that-sound/internal/proposal"
	"github.com/davidgr87/whats-that-sound/internal/scanner"
	"github.com/davidgr87/whats-that-sound/internal/server"
	"github.com/davidgr87/whats-that-sound/internal/store"
	"github.com/davidgr87/whats-that-sound/internal/tags"
	"github.com/davidgr87/whats-that-sound/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("Starting whats-that-sound",
		"provider", cfg.Provider,
		"source", cfg.SourceDir,
		"target", cfg.TargetDir,
		"workers", cfg.Workers,
		"port", cfg.Port)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("Failed to open job store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	if err := os.MkdirAll(cfg.TargetDir, constants.DirPermissions); err != nil {
		log.Error("Failed to create target directory", "error", err, "path", cfg.TargetDir)
		os.Exit(1)
	}

	orc, err := oracle.New(cfg, log)
	if err != nil {
		log.Error("Failed to build oracle", "error", err)
		os.Exit(1)
	}

	reader := tags.NewReader(log)
	sc := scanner.New(st, reader, log)
	mv := mover.New(cfg.TargetDir, log)
	pt := progress.NewTracker()
	gen := proposal.NewGenerator(orc, log)

	dispatcher := worker.NewDispatcher()
	dispatcher.Register(domain.JobTypeScan, &worker.ScanHandler{Store: st, Scanner: sc})
	dispatcher.Register(domain.JobTypeAnalyze, &worker.AnalyzeHandler{Store: st, Oracle: orc, Generator: gen})
	dispatcher.Register(domain.JobTypeMove, &worker.MoveHandler{Store: st, Mover: mv, Progress: pt})

	if err := enqueueInitialScan(st, cfg.SourceDir, log); err != nil {
		log.Error("Failed to enqueue initial scan", "error", err)
		os.Exit(1)
	}

	pool := worker.NewPool(st, dispatcher, pt, cfg.Workers, log)
	pool.Start()
	defer pool.Stop()

	srv := server.New(st, sc, pt, cfg.SourceDir, cfg.TargetDir, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("Control plane listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	srv.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown failed", "error", err)
	}
}

// enqueueInitialScan queues a scan of the source root unless one is already
// pending, so restarts do not pile up duplicate scans.
func enqueueInitialScan(st *store.Store, sourceDir string, log *logger.Logger) error {
	pending, err := st.HasAnyForFolder(sourceDir, domain.JobStatusQueued, domain.JobStatusAnalyzing)
	if err != nil {
		return err
	}
	if pending {
		log.Info("Scan already pending for source", "source", sourceDir)
		return nil
	}
	if _, err := st.Enqueue(&domain.Job{FolderPath: sourceDir, Type: domain.JobTypeScan}); err != nil {
		return err
	}
	log.Info("Enqueued initial scan", "source", sourceDir)
	return nil
}
