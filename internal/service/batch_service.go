package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"docstream/internal/config"
	"docstream/internal/domain"
	"docstream/internal/events"
	"docstream/internal/port"
)

// CreateBatchInput is the DTO for creating a batch of extraction jobs.
type CreateBatchInput struct {
	DocumentTypeID uuid.UUID
	DocumentIDs    []uuid.UUID
	WebhookURL     string
}

// BatchService orchestrates batches of extraction jobs: bounded-concurrency
// dispatch, progress counters, cooperative cancellation, and completion
// notification.
type BatchService interface {
	// CreateBatch persists a batch with one pending job per document and
	// starts processing it in the background.
	CreateBatch(ctx context.Context, input *CreateBatchInput) (*domain.Batch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, []domain.Job, error)
	// CancelBatch requests cancellation: no new jobs are dispatched and
	// pending jobs are cancelled; in-flight jobs run to completion and still
	// count. Cancelling a terminal batch is a no-op; alreadyFinished reports
	// whether the batch was terminal before the request.
	CancelBatch(ctx context.Context, batchID uuid.UUID) (batch *domain.Batch, alreadyFinished bool, err error)
	// Wait blocks until all background batch runs have finished.
	Wait()
}

type batchService struct {
	batchRepo   port.BatchRepository
	jobRepo     port.JobRepository
	docRepo     port.DocumentRepository
	docTypeRepo port.DocumentTypeRepository
	extraction  ExtractionService
	bus         *events.Bus
	webhook     *WebhookNotifier
	cfg         config.BatchConfig
	wg          sync.WaitGroup
}

// NewBatchService creates a new BatchService.
func NewBatchService(
	batchRepo port.BatchRepository,
	jobRepo port.JobRepository,
	docRepo port.DocumentRepository,
	docTypeRepo port.DocumentTypeRepository,
	extraction ExtractionService,
	bus *events.Bus,
	webhook *WebhookNotifier,
	cfg config.BatchConfig,
) BatchService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeoutSecs <= 0 {
		cfg.JobTimeoutSecs = 300
	}
	return &batchService{
		batchRepo:   batchRepo,
		jobRepo:     jobRepo,
		docRepo:     docRepo,
		docTypeRepo: docTypeRepo,
		extraction:  extraction,
		bus:         bus,
		webhook:     webhook,
		cfg:         cfg,
	}
}

func (s *batchService) CreateBatch(ctx context.Context, input *CreateBatchInput) (*domain.Batch, error) {
	if len(input.DocumentIDs) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if _, err := s.docTypeRepo.GetByID(ctx, input.DocumentTypeID); err != nil {
		return nil, err
	}

	docs, err := s.docRepo.ListByIDs(ctx, input.DocumentIDs)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]*domain.Document, len(docs))
	for i := range docs {
		found[docs[i].ID] = &docs[i]
	}
	for _, id := range input.DocumentIDs {
		doc, ok := found[id]
		if !ok {
			return nil, domain.ErrDocumentNotFound
		}
		if doc.DocumentTypeID != input.DocumentTypeID {
			return nil, domain.ErrDocumentTypeMismatch
		}
		if !domain.AllowedContentTypes[doc.ContentType] {
			return nil, domain.ErrUnsupportedFileType
		}
	}

	batch := &domain.Batch{
		ID:             uuid.New(),
		DocumentTypeID: input.DocumentTypeID,
		Total:          len(input.DocumentIDs),
		Status:         domain.BatchStatusPending,
		WebhookURL:     input.WebhookURL,
	}
	jobs := make([]domain.Job, 0, len(input.DocumentIDs))
	for _, docID := range input.DocumentIDs {
		jobs = append(jobs, domain.Job{
			ID:         uuid.New(),
			DocumentID: docID,
			BatchID:    &batch.ID,
			Status:     domain.JobStatusPending,
		})
	}
	if err := s.batchRepo.CreateWithJobs(ctx, batch, jobs); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBatch(batch.ID)
	}()

	return batch, nil
}

func (s *batchService) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, []domain.Job, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := s.jobRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return batch, jobs, nil
}

func (s *batchService) CancelBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, bool, error) {
	cancelled, err := s.batchRepo.RequestCancel(ctx, batchID)
	if err != nil {
		return nil, false, err
	}
	if cancelled {
		n, err := s.jobRepo.CancelPending(ctx, batchID)
		if err != nil {
			log.Printf("batchService.CancelBatch: batch %s: cancelling pending jobs: %v", batchID, err)
		} else if n > 0 {
			log.Printf("batchService.CancelBatch: batch %s: cancelled %d pending jobs", batchID, n)
		}
	}
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, false, err
	}
	return batch, !cancelled, nil
}

func (s *batchService) Wait() {
	s.wg.Wait()
}

// runBatch drives one batch to a terminal state. It uses a fresh context so
// the batch keeps processing after the creating request returns.
func (s *batchService) runBatch(batchID uuid.UUID) {
	ctx := context.Background()

	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		log.Printf("batchService.runBatch: batch %s: %v", batchID, err)
		return
	}

	if err := s.batchRepo.MarkProcessing(ctx, batchID); err != nil {
		// Already cancelled before the first dispatch.
		if errors.Is(err, domain.ErrBatchAlreadyTerminal) {
			s.finishBatch(ctx, batchID)
			return
		}
		s.failBatch(ctx, batch, err)
		return
	}
	batch.Status = domain.BatchStatusProcessing
	s.bus.Broadcast(domain.NewBatchStarted(batch))

	jobs, err := s.jobRepo.ListByBatch(ctx, batchID)
	if err != nil {
		s.failBatch(ctx, batch, err)
		return
	}

	jobTimeout := time.Duration(s.cfg.JobTimeoutSecs) * time.Second
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	log.Printf("batchService.runBatch: batch %s: dispatching %d jobs (concurrency=%d)",
		batchID, len(jobs), s.cfg.Concurrency)

	for i := range jobs {
		// Re-check status before each dispatch so cancellation stops new
		// work promptly while in-flight jobs drain.
		current, err := s.batchRepo.GetByID(ctx, batchID)
		if err != nil {
			log.Printf("batchService.runBatch: batch %s: reload: %v", batchID, err)
			break
		}
		if current.Status == domain.BatchStatusCancelled {
			log.Printf("batchService.runBatch: batch %s: cancelled, stopping dispatch", batchID)
			break
		}

		job := jobs[i] // copy for goroutine

		sem <- struct{}{} // acquire
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // release

			jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			s.runBatchJob(jobCtx, batch, &job)
		}()
	}

	wg.Wait()
	s.finishBatch(ctx, batchID)
}

// runBatchJob runs one job and folds its outcome into the batch counters.
func (s *batchService) runBatchJob(ctx context.Context, batch *domain.Batch, job *domain.Job) {
	err := s.extraction.RunJob(ctx, job)

	var counters *port.BatchCounters
	var incErr error
	switch {
	case err == nil:
		counters, incErr = s.batchRepo.IncrementCompleted(ctx, batch.ID)
	case errors.Is(err, domain.ErrJobAlreadyTerminal):
		// Cancelled before the job started; it counts as neither.
		return
	default:
		counters, incErr = s.batchRepo.IncrementFailed(ctx, batch.ID)
	}
	if incErr != nil {
		log.Printf("batchService: batch %s: counter update: %v", batch.ID, incErr)
		return
	}

	s.bus.Broadcast(domain.NewBatchProgress(
		batch.ID, batch.DocumentTypeID,
		counters.Total, counters.Completed, counters.Failed))
}

// finishBatch records and publishes the batch's terminal state once all
// dispatched jobs have drained.
func (s *batchService) finishBatch(ctx context.Context, batchID uuid.UUID) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		log.Printf("batchService.finishBatch: batch %s: %v", batchID, err)
		return
	}

	if batch.Status == domain.BatchStatusCancelled {
		// Pending jobs were cancelled at request time, but a job may have
		// slipped to pending between that sweep and the dispatch stop.
		if _, err := s.jobRepo.CancelPending(ctx, batchID); err != nil {
			log.Printf("batchService.finishBatch: batch %s: cancelling pending jobs: %v", batchID, err)
		}
		s.bus.Broadcast(domain.NewBatchCancelled(batch))
	} else {
		// A batch completes even when every job failed; failures are
		// reported through the counters.
		if err := s.batchRepo.MarkTerminal(ctx, batchID, domain.BatchStatusCompleted, time.Now().UTC()); err != nil {
			log.Printf("batchService.finishBatch: batch %s: %v", batchID, err)
		}
		batch.Status = domain.BatchStatusCompleted
		now := time.Now().UTC()
		batch.CompletedAt = &now
		s.bus.Broadcast(domain.NewBatchCompleted(batch))
	}

	if batch.WebhookURL != "" && s.webhook != nil {
		s.webhook.Notify(batch.WebhookURL, batch)
	}

	log.Printf("batchService: batch %s finished (status=%s, completed=%d, failed=%d, total=%d)",
		batchID, batch.Status, batch.Completed, batch.Failed, batch.Total)
}

// failBatch records a structural batch failure (not per-job failures).
func (s *batchService) failBatch(ctx context.Context, batch *domain.Batch, cause error) {
	log.Printf("batchService: batch %s failed: %v", batch.ID, cause)
	if err := s.batchRepo.MarkTerminal(ctx, batch.ID, domain.BatchStatusFailed, time.Now().UTC()); err != nil {
		log.Printf("batchService.failBatch: batch %s: %v", batch.ID, err)
	}
	batch.Status = domain.BatchStatusFailed
	s.bus.Broadcast(domain.NewBatchFailed(batch, cause.Error()))

	if batch.WebhookURL != "" && s.webhook != nil {
		s.webhook.Notify(batch.WebhookURL, batch)
	}
}
