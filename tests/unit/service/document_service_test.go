package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docstream/internal/domain"
	"docstream/internal/port"
	"docstream/internal/service"
	"docstream/mocks"
)

type documentFixture struct {
	docRepo     *mocks.MockDocumentRepo
	docTypeRepo *mocks.MockDocumentTypeRepo
	storage     *mocks.MockObjectStorage
	svc         service.DocumentService
	docType     *domain.DocumentType
}

func newDocumentFixture() *documentFixture {
	f := &documentFixture{
		docRepo:     new(mocks.MockDocumentRepo),
		docTypeRepo: new(mocks.MockDocumentTypeRepo),
		storage:     new(mocks.MockObjectStorage),
		docType:     &domain.DocumentType{ID: uuid.New(), Name: "invoice"},
	}
	f.svc = service.NewDocumentService(f.docRepo, f.docTypeRepo, f.storage, "docstream-uploads")
	return f
}

func TestDocumentService_Upload_Success(t *testing.T) {
	f := newDocumentFixture()

	f.docTypeRepo.On("GetByID", mock.Anything, f.docType.ID).Return(f.docType, nil)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "docstream-uploads" &&
			strings.HasPrefix(in.Key, "documents/") &&
			strings.HasSuffix(in.Key, "/invoice.pdf") &&
			in.ContentType == "application/pdf"
	})).Return("s3://docstream-uploads/documents/x/invoice.pdf", nil)
	f.docRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	doc, err := f.svc.Upload(context.Background(), &service.UploadDocumentInput{
		DocumentTypeID: f.docType.ID,
		Filename:       "invoice.pdf",
		ContentType:    "application/pdf",
		Content:        []byte("%PDF-1.7"),
	})

	assert.NoError(t, err)
	assert.Equal(t, f.docType.ID, doc.DocumentTypeID)
	assert.Equal(t, "docstream-uploads", doc.S3Bucket)
	assert.Contains(t, doc.S3Key, doc.ID.String())
	f.docRepo.AssertCalled(t, "Create", mock.Anything, doc)
}

func TestDocumentService_Upload_UnsupportedContentType(t *testing.T) {
	f := newDocumentFixture()

	doc, err := f.svc.Upload(context.Background(), &service.UploadDocumentInput{
		DocumentTypeID: f.docType.ID,
		Filename:       "notes.txt",
		ContentType:    "text/plain",
		Content:        []byte("hello"),
	})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	assert.Nil(t, doc)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDocumentService_Upload_UnknownDocumentType(t *testing.T) {
	f := newDocumentFixture()

	f.docTypeRepo.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentTypeNotFound)

	_, err := f.svc.Upload(context.Background(), &service.UploadDocumentInput{
		DocumentTypeID: uuid.New(),
		Filename:       "invoice.pdf",
		ContentType:    "application/pdf",
	})

	assert.ErrorIs(t, err, domain.ErrDocumentTypeNotFound)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDocumentService_Upload_OrphanRemovedOnCreateFailure(t *testing.T) {
	f := newDocumentFixture()

	f.docTypeRepo.On("GetByID", mock.Anything, f.docType.ID).Return(f.docType, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return("location", nil)
	dbErr := errors.New("insert failed")
	f.docRepo.On("Create", mock.Anything, mock.Anything).Return(dbErr)
	f.storage.On("Delete", mock.Anything, "docstream-uploads", mock.Anything).Return(nil)

	_, err := f.svc.Upload(context.Background(), &service.UploadDocumentInput{
		DocumentTypeID: f.docType.ID,
		Filename:       "invoice.pdf",
		ContentType:    "application/pdf",
	})

	assert.ErrorIs(t, err, dbErr)
	f.storage.AssertCalled(t, "Delete", mock.Anything, "docstream-uploads", mock.Anything)
}

func TestDocumentService_Delete_Success(t *testing.T) {
	f := newDocumentFixture()

	doc := &domain.Document{
		ID:       uuid.New(),
		S3Bucket: "docstream-uploads",
		S3Key:    "documents/abc/invoice.pdf",
	}
	f.docRepo.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
	f.storage.On("Delete", mock.Anything, doc.S3Bucket, doc.S3Key).Return(nil)
	f.docRepo.On("Delete", mock.Anything, doc.ID).Return(nil)

	err := f.svc.Delete(context.Background(), doc.ID)

	assert.NoError(t, err)
	f.storage.AssertExpectations(t)
	f.docRepo.AssertExpectations(t)
}

func TestDocumentService_Delete_UnknownDocument(t *testing.T) {
	f := newDocumentFixture()

	f.docRepo.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentNotFound)

	err := f.svc.Delete(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	f.storage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
