package service

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"docstream/internal/domain"
	"docstream/internal/port"
)

// UploadDocumentInput is the DTO for registering a new document.
type UploadDocumentInput struct {
	DocumentTypeID uuid.UUID
	Filename       string
	ContentType    string
	Content        []byte
}

// DocumentService manages document storage: upload to object storage plus the
// database record, and removal of both.
type DocumentService interface {
	Upload(ctx context.Context, input *UploadDocumentInput) (*domain.Document, error)
	Delete(ctx context.Context, docID uuid.UUID) error
}

type documentService struct {
	docRepo     port.DocumentRepository
	docTypeRepo port.DocumentTypeRepository
	storage     port.ObjectStorage
	bucket      string
}

// NewDocumentService creates a new DocumentService storing objects in bucket.
func NewDocumentService(
	docRepo port.DocumentRepository,
	docTypeRepo port.DocumentTypeRepository,
	storage port.ObjectStorage,
	bucket string,
) DocumentService {
	return &documentService{
		docRepo:     docRepo,
		docTypeRepo: docTypeRepo,
		storage:     storage,
		bucket:      bucket,
	}
}

func (s *documentService) Upload(ctx context.Context, input *UploadDocumentInput) (*domain.Document, error) {
	if !domain.AllowedContentTypes[input.ContentType] {
		return nil, domain.ErrUnsupportedFileType
	}
	if _, err := s.docTypeRepo.GetByID(ctx, input.DocumentTypeID); err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:             uuid.New(),
		DocumentTypeID: input.DocumentTypeID,
		Filename:       input.Filename,
		ContentType:    input.ContentType,
		S3Bucket:       s.bucket,
	}
	doc.S3Key = fmt.Sprintf("documents/%s/%s", doc.ID, input.Filename)

	location, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      doc.S3Bucket,
		Key:         doc.S3Key,
		Body:        bytes.NewReader(input.Content),
		ContentType: input.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("uploading document: %w", err)
	}
	log.Printf("documentService.Upload: stored %s at %s", doc.ID, location)

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// The object is orphaned; remove it so storage stays consistent.
		if delErr := s.storage.Delete(ctx, doc.S3Bucket, doc.S3Key); delErr != nil {
			log.Printf("documentService.Upload: removing orphaned object %s: %v", doc.S3Key, delErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Delete(ctx context.Context, docID uuid.UUID) error {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, doc.S3Bucket, doc.S3Key); err != nil {
		return fmt.Errorf("deleting document object: %w", err)
	}
	return s.docRepo.Delete(ctx, docID)
}
