package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
)

// DefaultMaxDocumentSize bounds how much of a remote document is read
const DefaultMaxDocumentSize = 25 << 20

var (
	// ErrUnsupportedScheme is returned for URLs no fetcher is registered for
	ErrUnsupportedScheme = errors.New("unsupported document URL scheme")
	// ErrDocumentTooLarge is returned when a document exceeds the size limit
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	// ErrDocumentNotFound is returned when the source reports the document missing
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentFetcher retrieves raw document bytes (PDF or image) from a location
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, documentURL string) ([]byte, error)
}

// MultiFetcher routes a URL to the fetcher registered for its scheme
type MultiFetcher struct {
	fetchers map[string]DocumentFetcher
}

// NewMultiFetcher creates an empty router
func NewMultiFetcher() *MultiFetcher {
	return &MultiFetcher{fetchers: make(map[string]DocumentFetcher)}
}

// Register binds fetcher to each scheme
func (m *MultiFetcher) Register(fetcher DocumentFetcher, schemes ...string) *MultiFetcher {
	for _, s := range schemes {
		m.fetchers[s] = fetcher
	}
	return m
}

// FetchDocument implements DocumentFetcher
func (m *MultiFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	u, err := url.Parse(documentURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	fetcher, ok := m.fetchers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return fetcher.FetchDocument(ctx, documentURL)
}

// readLimited reads r fully, failing once more than limit bytes arrive
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDocumentTooLarge, limit)
	}
	return data, nil
}
