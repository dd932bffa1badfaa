package repository

import (
	"context"
)

// DocumentRepository defines the interface for document data access operations
type DocumentRepository interface {
	// FetchDocument validates the URL and retrieves the raw document
	FetchDocument(ctx context.Context, documentURL string) (*Document, error)

	// ValidateDocumentURL validates if the provided URL is acceptable
	ValidateDocumentURL(documentURL string) error
}

// Document is a fetched, not yet interpreted, PDF or image
type Document struct {
	URL      string
	Data     []byte
	Metadata DocumentMetadata
}

// DocumentMetadata contains metadata about a fetched document
type DocumentMetadata struct {
	ContentType   string
	ContentLength int64
}
