package factory

import (
	"errors"
	"fmt"
	"io"

	"go-doc-verifier/internal/analyzer"
	"go-doc-verifier/internal/config"
	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/ocr"
	"go-doc-verifier/internal/ocr/tesseract"
	"go-doc-verifier/internal/storage"
	"go-doc-verifier/internal/vision/gocvengine"

	"github.com/sirupsen/logrus"
)

// StorageType represents different types of document sources
type StorageType string

const (
	// HTTPStorage for HTTP-based document fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// ErrAzureNotConfigured is returned when blob access is requested without credentials
var ErrAzureNotConfigured = errors.New("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")

// AnalyzerFactory creates document verifiers
type AnalyzerFactory interface {
	CreateVerifier() (analyzer.DocumentVerifier, error)
}

// StorageFactory creates document fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.DocumentFetcher, error)
	CreateRouter() (*storage.MultiFetcher, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	cfg *config.Config
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config) AnalyzerFactory {
	return &analyzerFactory{cfg: cfg}
}

// CreateVerifier wires the OpenCV engine and, unless disabled, Tesseract
// into a verifier. Closing the verifier releases the engine.
func (f *analyzerFactory) CreateVerifier() (analyzer.DocumentVerifier, error) {
	opts := f.cfg.AnalyzerOptions()

	var text ocr.TextExtractor
	if !opts.DisableOCR {
		text = tesseract.New(f.cfg.OCRLanguage)
	}

	engine := gocvengine.New(f.cfg.FaceCascadePath)
	verifier, err := analyzer.NewDocumentVerifier(engine, text, opts)
	if err != nil {
		engine.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"ocr":      !opts.DisableOCR,
		"parallel": opts.Parallel,
		"workers":  opts.MaxWorkers,
		"cascade":  f.cfg.FaceCascadePath,
	}).Info("Document verifier created")

	return &ownedVerifier{DocumentVerifier: verifier, engine: engine}, nil
}

// ownedVerifier closes the engine after the verifier's workers stop
type ownedVerifier struct {
	analyzer.DocumentVerifier
	engine io.Closer
}

func (v *ownedVerifier) Close() error {
	return errors.Join(v.DocumentVerifier.Close(), v.engine.Close())
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.DocumentFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPDocumentFetcher(f.cfg.DocumentFetchTimeout), nil
	case AzureStorage:
		if f.cfg.AzureStorageAccount == "" || f.cfg.AzureStorageKey == "" {
			return nil, ErrAzureNotConfigured
		}
		return storage.NewAzureBlobFetcher(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey)
	case LocalStorage:
		return storage.NewLocalFetcher(f.cfg.LocalStorageDir), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateRouter registers every configured source by URL scheme. Azure is
// skipped when no credentials are set.
func (f *storageFactory) CreateRouter() (*storage.MultiFetcher, error) {
	router := storage.NewMultiFetcher()

	web, err := f.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}
	router.Register(web, "http", "https")

	local, err := f.CreateStorage(LocalStorage)
	if err != nil {
		return nil, err
	}
	router.Register(local, "local")

	blobs, err := f.CreateStorage(AzureStorage)
	switch {
	case errors.Is(err, ErrAzureNotConfigured):
		logger.Debug("Azure storage not configured, azblob:// URLs disabled")
	case err != nil:
		return nil, err
	default:
		router.Register(blobs, "azblob")
	}

	return router, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
