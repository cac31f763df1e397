package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobarin/topicreel/internal/api"
	"github.com/bobarin/topicreel/internal/app"
	"github.com/bobarin/topicreel/internal/config"
	"github.com/bobarin/topicreel/internal/db"
	"github.com/bobarin/topicreel/internal/queue"
	"github.com/bobarin/topicreel/internal/storage"
	"github.com/bobarin/topicreel/internal/worker"
	"github.com/bobarin/topicreel/internal/workspace"
)

func main() {
	log.Println("Starting Topicreel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateService(); err != nil {
		log.Fatalf("Invalid service config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize publishing
	var publisher storage.Publisher
	switch cfg.StorageBackend {
	case "supabase":
		publisher = storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		log.Println("Initialized Supabase storage")
	case "s3":
		s3pub, err := storage.NewS3Publisher(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		publisher = s3pub
		log.Printf("Initialized S3 storage (bucket: %s)", cfg.S3Bucket)
	default:
		log.Println("No storage backend, renders stay on local disk")
	}

	// Sweep abandoned working storage
	reaper := workspace.NewReaper(cfg.CacheDir, cfg.SessionTimeout)
	if err := reaper.Start(cfg.ReaperSchedule); err != nil {
		log.Fatalf("Failed to start session reaper: %v", err)
	}
	defer reaper.Stop()

	// Create API handler
	handler := api.NewHandler(database, q, publisher, app.SettingsSnapshot(cfg.RenderSettings()))
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		p, err := app.NewPipeline(cfg)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		outputDir := filepath.Join(filepath.Dir(cfg.OutputPath), "runs")
		w := worker.New(database, q, publisher, p, outputDir, filepath.Base(cfg.OutputPath))

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go func() {
			w.Start(workerCtx, cfg.MaxConcurrentJobs)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	select {
	case <-workerDone:
	case <-ctx.Done():
		log.Println("Worker did not stop in time")
	}

	log.Println("Server exited")
}
