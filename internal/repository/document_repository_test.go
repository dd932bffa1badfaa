package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/storage"
	"go-doc-verifier/pkg/validation"
)

type stubFetcher struct {
	data  []byte
	err   error
	calls int
}

func (s *stubFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func TestFetchDocument_Success(t *testing.T) {
	fetcher := &stubFetcher{data: []byte("%PDF-1.4\n%")}
	repo := NewFetcherRepository(fetcher, nil)

	doc, err := repo.FetchDocument(context.Background(), "https://certs.example.com/a.pdf")
	if err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if doc.Metadata.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", doc.Metadata.ContentType)
	}
	if doc.Metadata.ContentLength != int64(len(fetcher.data)) {
		t.Errorf("ContentLength = %d", doc.Metadata.ContentLength)
	}
	if doc.URL != "https://certs.example.com/a.pdf" {
		t.Errorf("URL = %q", doc.URL)
	}
}

func TestFetchDocument_InvalidURLSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	repo := NewFetcherRepository(fetcher, validation.NewURLValidatorWithOptions([]string{"https"}, nil))

	_, err := repo.FetchDocument(context.Background(), "http://certs.example.com/a.pdf")
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("Expected no fetch, got %d calls", fetcher.calls)
	}
}

func TestFetchDocument_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType apperrors.ErrorType
		wantCode int
		sentinel error
	}{
		{"not found", fmt.Errorf("%w: client error: status code 404", storage.ErrDocumentNotFound), apperrors.ErrorTypeNotFound, http.StatusNotFound, ErrDocumentNotFound},
		{"unsupported scheme", fmt.Errorf("%w: %q", storage.ErrUnsupportedScheme, "ftp"), apperrors.ErrorTypeValidation, http.StatusBadRequest, ErrInvalidDocumentURL},
		{"too large", storage.ErrDocumentTooLarge, apperrors.ErrorTypeValidation, http.StatusBadRequest, storage.ErrDocumentTooLarge},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), apperrors.ErrorTypeTimeout, http.StatusGatewayTimeout, context.DeadlineExceeded},
		{"server error", errors.New("server error: status code 503"), apperrors.ErrorTypeNetwork, http.StatusBadGateway, ErrRepositoryUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFetcherRepository(&stubFetcher{err: tt.err}, nil)
			_, err := repo.FetchDocument(context.Background(), "https://certs.example.com/a.pdf")
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s error, got %v", tt.wantType, err)
			}
			if code := apperrors.GetStatusCode(err); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Expected %v in chain of %v", tt.sentinel, err)
			}
		})
	}
}
