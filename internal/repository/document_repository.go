package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/imageio"
	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/storage"
	"go-doc-verifier/pkg/validation"

	"github.com/sirupsen/logrus"
)

// FetcherRepository implements DocumentRepository on top of a DocumentFetcher
type FetcherRepository struct {
	fetcher   storage.DocumentFetcher
	validator *validation.URLValidator
}

// NewFetcherRepository creates a repository that validates before fetching
func NewFetcherRepository(fetcher storage.DocumentFetcher, validator *validation.URLValidator) DocumentRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &FetcherRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// ValidateDocumentURL validates if the provided URL is acceptable
func (r *FetcherRepository) ValidateDocumentURL(documentURL string) error {
	return r.validator.ValidateDocumentURL(documentURL)
}

// FetchDocument retrieves a document and classifies failures as AppErrors
func (r *FetcherRepository) FetchDocument(ctx context.Context, documentURL string) (*Document, error) {
	if err := r.ValidateDocumentURL(documentURL); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := r.fetcher.FetchDocument(ctx, documentURL)
	if err != nil {
		return nil, classifyFetchError(documentURL, err)
	}

	logger.WithFields(logrus.Fields{
		"url":      documentURL,
		"bytes":    len(data),
		"duration": time.Since(start),
	}).Debug("Document fetched")

	return &Document{
		URL:  documentURL,
		Data: data,
		Metadata: DocumentMetadata{
			ContentType:   imageio.ContentType(data),
			ContentLength: int64(len(data)),
		},
	}, nil
}

func classifyFetchError(documentURL string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Document fetch timed out", err)
	case errors.Is(err, storage.ErrDocumentNotFound):
		return apperrors.NewNotFoundError(
			fmt.Sprintf("Document not found: %s", documentURL),
			fmt.Errorf("%w: %v", ErrDocumentNotFound, err),
		)
	case errors.Is(err, storage.ErrUnsupportedScheme):
		return apperrors.NewValidationError("URL scheme not supported",
			fmt.Errorf("%w: %v", ErrInvalidDocumentURL, err))
	case errors.Is(err, storage.ErrDocumentTooLarge):
		return apperrors.NewValidationError("Document too large", err)
	default:
		return apperrors.NewNetworkError("Failed to fetch document",
			fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err))
	}
}
