package repository

import "errors"

var (
	// ErrInvalidDocumentURL indicates a document URL failed validation
	ErrInvalidDocumentURL = errors.New("invalid document URL")

	// ErrDocumentNotFound indicates the source has no such document
	ErrDocumentNotFound = errors.New("document not found")

	// ErrRepositoryUnavailable indicates the document source could not be reached
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
