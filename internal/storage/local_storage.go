package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// localHost is the only authority accepted in local:// URLs
const localHost = "files"

// LocalFetcher serves local://files/<name> from a directory
type LocalFetcher struct {
	root    string
	maxSize int64
}

// NewLocalFetcher creates a fetcher rooted at dir
func NewLocalFetcher(dir string) *LocalFetcher {
	return &LocalFetcher{root: dir, maxSize: DefaultMaxDocumentSize}
}

// Resolve maps a local:// URL to a path inside the root directory
func (l *LocalFetcher) Resolve(documentURL string) (string, error) {
	u, err := url.Parse(documentURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "local" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host != localHost {
		return "", fmt.Errorf("invalid local URL %q: want local://%s/<name>", documentURL, localHost)
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" || !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid document path %q", u.Path)
	}
	return filepath.Join(l.root, filepath.FromSlash(name)), nil
}

// FetchDocument implements DocumentFetcher
func (l *LocalFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.Resolve(documentURL)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentURL)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrDocumentNotFound, documentURL)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDocumentTooLarge, l.maxSize)
	}
	return os.ReadFile(path)
}
