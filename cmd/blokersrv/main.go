package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/cors"

	"github.com/Mr-Super09/Bloker/pkg/api"
	"github.com/Mr-Super09/Bloker/pkg/server"
)

func main() {
	var (
		listen     string
		dbPath     string
		debugLevel string
		voteWindow time.Duration
		betWindow  time.Duration
		sweep      time.Duration
		retention  time.Duration
	)
	flag.StringVar(&listen, "listen", "127.0.0.1:8080", "Address to listen on")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.DurationVar(&voteWindow, "votewindow", 0, "Settings vote window (0 = default)")
	flag.DurationVar(&betWindow, "betwindow", 0, "Betting window per round (0 = default)")
	flag.DurationVar(&sweep, "sweepinterval", 0, "Deadline sweep interval (0 = default)")
	flag.DurationVar(&retention, "retention", 0, "How long finished sessions are kept (0 = default)")
	flag.Parse()

	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "bloker.sqlite")
	}

	// Logging backend
	backend := slog.NewBackend(os.Stdout)
	log := backend.Logger("SRVR")
	if lvl, ok := slog.LevelFromString(debugLevel); ok {
		log.SetLevel(lvl)
	}

	// Init store
	store, err := server.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	cfg := server.DefaultConfig()
	if voteWindow > 0 {
		cfg.Game.VoteWindow = voteWindow
	}
	if betWindow > 0 {
		cfg.Game.BetWindow = betWindow
	}
	if sweep > 0 {
		cfg.SweepInterval = sweep
	}
	if retention > 0 {
		cfg.FinishedRetention = retention
	}

	srv := server.NewServer(store, store, store, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunSupervisor(ctx)

	r := mux.NewRouter()
	handlers := api.NewHandlers(srv, store, backend.Logger("API"))
	handlers.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	httpSrv := &http.Server{
		Addr:         listen,
		Handler:      c.Handler(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Listening on %s (db %s)", listen, dbPath)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP serve error: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	log.Infof("Shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
}
