package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"docstream/internal/domain"
	"docstream/internal/events"
	"docstream/internal/extractor"
	"docstream/internal/jsonfix"
	"docstream/internal/port"
)

// progressCeiling caps mid-stream progress so 100 is reserved for completion.
const progressCeiling = 99

// ExtractionService runs single extraction jobs end to end: validation,
// streamed extraction with incremental parsing, persistence, and events.
type ExtractionService interface {
	// ProcessDocument creates and runs an ad-hoc job for one document,
	// blocking until the job reaches a terminal state.
	ProcessDocument(ctx context.Context, docID uuid.UUID) (*domain.Job, error)
	// ProcessDocumentStream is ProcessDocument with a per-event callback for
	// the caller's own connection. A callback error aborts the stream.
	ProcessDocumentStream(ctx context.Context, docID uuid.UUID, send func(domain.Event) error) (*domain.Job, error)
	// RunJob executes an already-persisted job. The job's terminal state is
	// always recorded before the corresponding event is published.
	RunJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	// CancelJob marks a pending or processing job cancelled. A processing
	// job's stream stops cooperatively at its next progress update.
	CancelJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
}

type extractionService struct {
	docRepo     port.DocumentRepository
	docTypeRepo port.DocumentTypeRepository
	jobRepo     port.JobRepository
	storage     port.ObjectStorage
	extractor   port.Extractor
	bus         *events.Bus
}

// NewExtractionService creates a new ExtractionService.
func NewExtractionService(
	docRepo port.DocumentRepository,
	docTypeRepo port.DocumentTypeRepository,
	jobRepo port.JobRepository,
	storage port.ObjectStorage,
	ext port.Extractor,
	bus *events.Bus,
) ExtractionService {
	return &extractionService{
		docRepo:     docRepo,
		docTypeRepo: docTypeRepo,
		jobRepo:     jobRepo,
		storage:     storage,
		extractor:   ext,
		bus:         bus,
	}
}

func (s *extractionService) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.jobRepo.GetByID(ctx, jobID)
}

func (s *extractionService) CancelJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	if err := s.jobRepo.MarkCancelled(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobRepo.GetByID(ctx, jobID)
}

func (s *extractionService) ProcessDocument(ctx context.Context, docID uuid.UUID) (*domain.Job, error) {
	job, err := s.createAdHocJob(ctx, docID)
	if err != nil {
		return nil, err
	}

	if runErr := s.runJob(ctx, job, nil, false); runErr != nil {
		log.Printf("extractionService.ProcessDocument: job %s: %v", job.ID, runErr)
	}
	return s.jobRepo.GetByID(ctx, job.ID)
}

func (s *extractionService) ProcessDocumentStream(ctx context.Context, docID uuid.UUID, send func(domain.Event) error) (*domain.Job, error) {
	job, err := s.createAdHocJob(ctx, docID)
	if err != nil {
		return nil, err
	}

	if runErr := s.runJob(ctx, job, send, true); runErr != nil {
		log.Printf("extractionService.ProcessDocumentStream: job %s: %v", job.ID, runErr)
	}
	return s.jobRepo.GetByID(ctx, job.ID)
}

func (s *extractionService) RunJob(ctx context.Context, job *domain.Job) error {
	// Batch jobs use the blocking structured call; per-job progress inside a
	// batch is reported through the batch counters instead.
	return s.runJob(ctx, job, nil, false)
}

func (s *extractionService) createAdHocJob(ctx context.Context, docID uuid.UUID) (*domain.Job, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !domain.AllowedContentTypes[doc.ContentType] {
		return nil, domain.ErrUnsupportedFileType
	}

	job := &domain.Job{
		ID:         uuid.New(),
		DocumentID: docID,
		Status:     domain.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// runJob drives one job through its lifecycle. send, when non-nil, receives
// every event this job publishes in addition to the shared bus; stream
// selects delta streaming over a single blocking extraction call.
func (s *extractionService) runJob(ctx context.Context, job *domain.Job, send func(domain.Event) error, stream bool) error {
	doc, err := s.docRepo.GetByID(ctx, job.DocumentID)
	if err != nil {
		return s.failJob(ctx, job, nil, send, fmt.Sprintf("loading document: %v", err))
	}
	docType, err := s.docTypeRepo.GetByID(ctx, doc.DocumentTypeID)
	if err != nil {
		return s.failJob(ctx, job, nil, send, fmt.Sprintf("loading document type: %v", err))
	}

	startedAt := time.Now().UTC()
	if err := s.jobRepo.MarkProcessing(ctx, job.ID, startedAt); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyTerminal) {
			// Cancelled before dispatch.
			return err
		}
		return s.failJob(ctx, job, &docType.ID, send, fmt.Sprintf("starting job: %v", err))
	}
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &startedAt
	s.publish(domain.NewJobStarted(job, docType.ID), send)

	fileBytes, err := s.storage.Download(ctx, doc.S3Bucket, doc.S3Key)
	if err != nil {
		if aborted(ctx, err) {
			return s.cancelAbortedJob(job, err)
		}
		return s.failJob(ctx, job, &docType.ID, send, fmt.Sprintf("downloading document: %v", err))
	}

	input := port.ExtractInput{
		FileBytes:   fileBytes,
		ContentType: doc.ContentType,
		Schema:      docType.Schema,
		ModelName:   docType.ModelName,
	}

	if docType.ValidationInstructions != "" {
		matches, reason, err := s.extractor.Validate(ctx, input, docType.ValidationInstructions)
		if err != nil {
			if aborted(ctx, err) {
				return s.cancelAbortedJob(job, err)
			}
			return s.failJob(ctx, job, &docType.ID, send, fmt.Sprintf("validating document: %v", err))
		}
		if !matches {
			vErr := &extractor.ValidationError{Reason: reason}
			return s.failJob(ctx, job, &docType.ID, send, vErr.Error())
		}
	}

	var extracted json.RawMessage
	if stream {
		extracted, err = s.extractStreaming(ctx, job, docType, input, send)
	} else {
		extracted, err = s.extractor.Extract(ctx, input)
	}
	if err != nil {
		if aborted(ctx, err) {
			return s.cancelAbortedJob(job, err)
		}
		return s.failJob(ctx, job, &docType.ID, send, err.Error())
	}

	warnings := s.schemaWarnings(docType, extracted)

	if err := s.jobRepo.MarkCompleted(ctx, job.ID, extracted, warnings); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyTerminal) {
			return err
		}
		return s.failJob(ctx, job, &docType.ID, send, fmt.Sprintf("completing job: %v", err))
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.ExtractedData = extracted
	job.SchemaWarnings = warnings
	s.publish(domain.NewJobCompleted(job, docType.ID, extracted), send)
	return nil
}

// extractStreaming feeds model deltas through an incremental parse session,
// persisting and publishing each accepted partial snapshot.
func (s *extractionService) extractStreaming(ctx context.Context, job *domain.Job, docType *domain.DocumentType, input port.ExtractInput, send func(domain.Event) error) (json.RawMessage, error) {
	session := jsonfix.NewSession()
	progress := 0

	err := s.extractor.ExtractStream(ctx, input, func(chunk string) error {
		snapshot, accepted := session.Feed(chunk)
		if !accepted {
			return nil
		}

		partial, err := json.Marshal(snapshot)
		if err != nil {
			return nil
		}
		if progress < progressCeiling {
			progress += (progressCeiling - progress) / 4
			if progress < 1 {
				progress = 1
			}
		}
		if err := s.jobRepo.UpdateProgress(ctx, job.ID, progress, partial); err != nil {
			if errors.Is(err, domain.ErrJobAlreadyTerminal) {
				return err
			}
			log.Printf("extractionService: job %s: progress update: %v", job.ID, err)
			return nil
		}
		job.Progress = progress
		job.PartialData = partial
		s.publish(domain.NewJobProgress(job, docType.ID, partial), send)
		return nil
	})
	if err != nil {
		return nil, err
	}

	final, err := session.Final()
	if err != nil {
		return nil, err
	}
	return json.Marshal(final)
}

// schemaWarnings reports conformance violations of the extracted data against
// the document type's schema. Violations never fail a job; the model's output
// is still the best available extraction.
func (s *extractionService) schemaWarnings(docType *domain.DocumentType, extracted json.RawMessage) json.RawMessage {
	if len(docType.Schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(docType.Schema)); err != nil {
		log.Printf("extractionService: document type %s: schema resource: %v", docType.ID, err)
		return nil
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		log.Printf("extractionService: document type %s: schema compile: %v", docType.ID, err)
		return nil
	}

	var value interface{}
	if err := json.Unmarshal(extracted, &value); err != nil {
		return nil
	}

	if err := schema.Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		var messages []string
		if errors.As(err, &ve) {
			for _, cause := range ve.BasicOutput().Errors {
				if cause.Error == "" {
					continue
				}
				loc := cause.InstanceLocation
				if loc == "" {
					loc = "/"
				}
				messages = append(messages, fmt.Sprintf("%s: %s", loc, cause.Error))
			}
		} else {
			messages = append(messages, err.Error())
		}
		warnings, _ := json.Marshal(messages)
		return warnings
	}
	return nil
}

// aborted reports whether an operation failed because the caller went away,
// as opposed to a genuine processing failure.
func aborted(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}

// cancelAbortedJob records a caller-initiated abort as a silent cancellation:
// the job is marked cancelled with no failure event. The caller's context is
// already dead, so the write uses a fresh one.
func (s *extractionService) cancelAbortedJob(job *domain.Job, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.jobRepo.MarkCancelled(ctx, job.ID); err != nil && !errors.Is(err, domain.ErrJobAlreadyTerminal) {
		log.Printf("extractionService: job %s: marking cancelled after abort: %v", job.ID, err)
	}
	job.Status = domain.JobStatusCancelled
	return cause
}

func (s *extractionService) failJob(ctx context.Context, job *domain.Job, docTypeID *uuid.UUID, send func(domain.Event) error, errMsg string) error {
	if err := s.jobRepo.MarkFailed(ctx, job.ID, errMsg); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyTerminal) {
			return err
		}
		log.Printf("extractionService: job %s: marking failed: %v", job.ID, err)
	}
	job.Status = domain.JobStatusFailed
	job.Error = errMsg
	s.publish(domain.NewJobFailed(job, docTypeID, errMsg), send)
	return fmt.Errorf("%s", errMsg)
}

func (s *extractionService) publish(ev domain.Event, send func(domain.Event) error) {
	s.bus.Broadcast(ev)
	if send != nil {
		if err := send(ev); err != nil {
			log.Printf("extractionService: caller stream closed: %v", err)
		}
	}
}
