package domain

import "errors"

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentTypeNotFound = errors.New("document type not found")
	ErrJobNotFound          = errors.New("job not found")
	ErrBatchNotFound        = errors.New("batch not found")
	ErrDocumentTypeMismatch = errors.New("documents span multiple document types")
	ErrEmptyBatch           = errors.New("batch requires at least one document")
	ErrBatchAlreadyTerminal = errors.New("batch has already finished")
	ErrJobAlreadyTerminal   = errors.New("job has already finished")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
)
