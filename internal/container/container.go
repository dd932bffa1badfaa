package container

import (
	"fmt"
	"net/http"

	"go-doc-verifier/internal/analyzer"
	"go-doc-verifier/internal/config"
	"go-doc-verifier/internal/factory"
	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/observer"
	"go-doc-verifier/internal/render"
	"go-doc-verifier/internal/repository"
	"go-doc-verifier/internal/service"
	"go-doc-verifier/internal/transport"
	"go-doc-verifier/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config              *config.Config
	verifier            analyzer.DocumentVerifier
	documentRepository  repository.DocumentRepository
	verificationService service.VerificationService
	events              *observer.EventPublisher
	metrics             *observer.MetricsObserver
	handler             http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	fetcher, err := components.StorageFactory.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to create document storage: %w", err)
	}
	verifier, err := components.AnalyzerFactory.CreateVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	documentRepository := repository.NewFetcherRepository(fetcher, validation.NewURLValidator())
	verificationService := service.NewVerificationService(service.Dependencies{
		Repo:            documentRepository,
		Rasterizer:      render.NewRasterizer(cfg.RenderDPI),
		Verifier:        verifier,
		ScanMetrics:     analyzer.NewScanMetricsCalculator(),
		Quality:         validation.NewQualityValidator(),
		Events:          events,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	handler := transport.NewHandler(verificationService, metrics, cfg)

	return &Container{
		config:              cfg,
		verifier:            verifier,
		documentRepository:  documentRepository,
		verificationService: verificationService,
		events:              events,
		metrics:             metrics,
		handler:             handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the verification service
func (c *Container) Service() service.VerificationService {
	return c.verificationService
}

// Close drains pending events and releases the verifier
func (c *Container) Close() error {
	c.events.Wait()
	return c.verifier.Close()
}
