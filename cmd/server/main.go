package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docgraph/internal/api"
	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/convert"
	"github.com/dgallion1/docgraph/internal/metrics"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pathstore"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/dgallion1/docgraph/internal/rebuild"
	"github.com/dgallion1/docgraph/internal/store"
	"github.com/dgallion1/docgraph/internal/style"
	"github.com/dgallion1/docgraph/internal/watch"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	vocab := style.Default()
	if cfg.StyleVocabularyFile != "" {
		v, err := style.LoadVocabulary(cfg.StyleVocabularyFile)
		if err != nil {
			return err
		}
		vocab = v
		log.Info("loaded style vocabulary", "path", cfg.StyleVocabularyFile)
	}

	records, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer records.Close()

	m := metrics.New()
	conv := convert.New(style.New(vocab), parser.Options{
		Logger:            log,
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
	}, m)

	rb := rebuild.New(log)
	rb.BaseSize = cfg.HeadingBaseSize
	rb.Step = cfg.HeadingStep

	// Keep graph a nil interface when the sink is disabled.
	var (
		ps    *pathstore.Client
		graph pipeline.GraphWriter
	)
	if cfg.GraphEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		defer ps.Close()
		graph = ps
		log.Info("graph sink enabled", "url", cfg.PathstoreURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:        cfg.WorkerCount,
		MaxQueueSize:       cfg.MaxQueueSize,
		MaxConcurrentStore: cfg.MaxConcurrentStore,
		JobTTL:             cfg.JobTTL,
	}, conv, records, graph, m, log)
	orch.Start(ctx)

	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Converter:    conv,
		Rebuilder:    rb,
		Store:        records,
		Graph:        ps,
		Metrics:      m,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.WatchDir != "" {
		w := watch.New(cfg.WatchDir, orch, cfg.MaxUploadBytes, log)
		g.Go(func() error {
			if err := w.Run(gCtx); err != nil {
				return fmt.Errorf("watch %s: %w", cfg.WatchDir, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Info("starting docgraph", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown error", "error", err)
		}
		orch.Stop()
		return nil
	})

	return g.Wait()
}
