package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gutcheck/api/internal/app"
	"gutcheck/api/internal/archive"
	"gutcheck/api/internal/bundle"
	"gutcheck/api/internal/config"
	"gutcheck/api/internal/search"
	"gutcheck/api/internal/session"
	"gutcheck/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalf("failed to create archive dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	files := bundle.NewLoader(bundle.DefaultLevelAliases())
	archiveService := archive.New(cfg.ArchiveDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var pins *session.PinStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		pins, err = session.NewPinStore(cfg.RedisURL, cfg.PinTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer pins.Close()
		log.Printf("Session pinning enabled via Redis")
	} else {
		log.Printf("Session pinning disabled (REDIS_URL not set)")
	}

	service := app.New(cfg, dataStore, files, pins, searchService, archiveService)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Gutcheck API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
