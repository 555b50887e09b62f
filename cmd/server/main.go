package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docstream/internal/config"
	"docstream/internal/events"
	claudeextractor "docstream/internal/extractor/claude"
	"docstream/internal/handler"
	"docstream/internal/repository/postgres"
	"docstream/internal/router"
	"docstream/internal/service"
	s3storage "docstream/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	docTypeRepo := postgres.NewDocumentTypeRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	batchRepo := postgres.NewBatchRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize event bus and services
	bus := events.NewBus()
	ext := claudeextractor.NewExtractor(&cfg.Extractor)
	webhook := service.NewWebhookNotifier(&cfg.Webhook)
	documentSvc := service.NewDocumentService(docRepo, docTypeRepo, s3Client, cfg.S3.Bucket)
	extractionSvc := service.NewExtractionService(docRepo, docTypeRepo, jobRepo, s3Client, ext, bus)
	batchSvc := service.NewBatchService(batchRepo, jobRepo, docRepo, docTypeRepo, extractionSvc, bus, webhook, cfg.Batch)

	// Initialize handlers
	batchH := handler.NewBatchHandler(batchSvc)
	documentH := handler.NewDocumentHandler(documentSvc, extractionSvc)
	eventsH := handler.NewEventsHandler(bus, nil)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg.CORS.AllowedOrigins, batchH, documentH, eventsH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down, draining in-flight batches...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	batchSvc.Wait()
	log.Printf("Shutdown complete")

	return nil
}
