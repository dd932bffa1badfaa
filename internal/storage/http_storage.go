package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"go-doc-verifier/internal/logger"

	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

// HTTPDocumentFetcher fetches documents over HTTP(S) with retries on
// transient failures
type HTTPDocumentFetcher struct {
	client  *http.Client
	maxSize int64
	backoff func(attempt int) time.Duration
}

// NewHTTPDocumentFetcher creates an HTTP fetcher bounded by timeout
func NewHTTPDocumentFetcher(timeout time.Duration) *HTTPDocumentFetcher {
	transport := &http.Transport{
		// Two documents per request, rarely from the same host twice
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression:     false,
		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &HTTPDocumentFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxSize: DefaultMaxDocumentSize,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

// FetchDocument retries network errors and 5xx responses up to three
// times; 4xx responses fail immediately
func (h *HTTPDocumentFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, retry, err := h.attempt(ctx, documentURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Debug("Retrying document fetch")

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to fetch document: %w", ctx.Err())
			case <-time.After(h.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch document after %d attempts: %w", maxAttempts, lastErr)
}

func (h *HTTPDocumentFetcher) attempt(ctx context.Context, documentURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "application/pdf, image/png, image/jpeg, image/tiff, */*")
	req.Header.Set("User-Agent", "Go-Doc-Verifier/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: client error: status code %d", ErrDocumentNotFound, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, h.maxSize)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}
