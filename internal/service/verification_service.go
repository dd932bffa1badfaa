package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go-doc-verifier/internal/analyzer"
	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/imageio"
	"go-doc-verifier/internal/observer"
	"go-doc-verifier/internal/render"
	"go-doc-verifier/internal/repository"
	"go-doc-verifier/pkg/models"
	"go-doc-verifier/pkg/validation"

	"github.com/oklog/ulid/v2"
)

// ErrNoRepository is returned by VerifyURLs when no document source is wired
var ErrNoRepository = errors.New("no document repository configured")

// VerificationService compares an uploaded document against its original
type VerificationService interface {
	// VerifyDocuments verifies two documents given as PDF or image bytes
	VerifyDocuments(ctx context.Context, original, uploaded []byte) (*models.VerificationResponse, error)

	// VerifyURLs fetches both documents and verifies them
	VerifyURLs(ctx context.Context, originalURL, uploadedURL string) (*models.VerificationResponse, error)
}

// Dependencies are the collaborators a verificationService needs. Repo and
// Events are optional.
type Dependencies struct {
	Repo            repository.DocumentRepository
	Rasterizer      render.Rasterizer
	Verifier        analyzer.DocumentVerifier
	ScanMetrics     analyzer.ScanMetricsCalculator
	Quality         *validation.QualityValidator
	Events          observer.Subject
	AnalysisTimeout time.Duration
}

type verificationService struct {
	repo            repository.DocumentRepository
	rasterizer      render.Rasterizer
	verifier        analyzer.DocumentVerifier
	scans           analyzer.ScanMetricsCalculator
	quality         *validation.QualityValidator
	events          observer.Subject
	analysisTimeout time.Duration
}

// NewVerificationService creates a new verification service
func NewVerificationService(deps Dependencies) VerificationService {
	s := &verificationService{
		repo:            deps.Repo,
		rasterizer:      deps.Rasterizer,
		verifier:        deps.Verifier,
		scans:           deps.ScanMetrics,
		quality:         deps.Quality,
		events:          deps.Events,
		analysisTimeout: deps.AnalysisTimeout,
	}
	if s.rasterizer == nil {
		s.rasterizer = render.NewRasterizer(render.DefaultDPI)
	}
	if s.scans == nil {
		s.scans = analyzer.NewScanMetricsCalculator()
	}
	if s.quality == nil {
		s.quality = validation.NewQualityValidator()
	}
	return s
}

// preparedDocument is a rasterised input and its bookkeeping
type preparedDocument struct {
	image  image.Image
	source models.DocumentSource
}

// VerifyDocuments implements VerificationService
func (s *verificationService) VerifyDocuments(ctx context.Context, original, uploaded []byte) (*models.VerificationResponse, error) {
	id := newVerificationID()
	start := time.Now()
	s.notify(ctx, observer.VerificationEvent{EventType: observer.VerificationStarted, VerificationID: id})

	return s.verify(ctx, id, start, [2][]byte{original, uploaded}, [2]string{})
}

// VerifyURLs implements VerificationService
func (s *verificationService) VerifyURLs(ctx context.Context, originalURL, uploadedURL string) (*models.VerificationResponse, error) {
	if s.repo == nil {
		return nil, apperrors.NewValidationError("Document URLs are not supported", ErrNoRepository)
	}
	urls := [2]string{originalURL, uploadedURL}
	for _, u := range urls {
		if err := s.repo.ValidateDocumentURL(u); err != nil {
			return nil, err
		}
	}

	id := newVerificationID()
	start := time.Now()
	s.notify(ctx, observer.VerificationEvent{EventType: observer.VerificationStarted, VerificationID: id})

	var (
		data [2][]byte
		errs [2]error
		wg   sync.WaitGroup
	)
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			doc, err := s.repo.FetchDocument(ctx, u)
			if err != nil {
				errs[i] = err
				s.notify(ctx, observer.VerificationEvent{
					EventType:      observer.DocumentFetchFailed,
					VerificationID: id,
					DocumentURL:    u,
					ErrorMessage:   err.Error(),
				})
				return
			}
			data[i] = doc.Data
			s.notify(ctx, observer.VerificationEvent{
				EventType:      observer.DocumentFetched,
				VerificationID: id,
				DocumentURL:    u,
				Success:        true,
				Metadata: map[string]interface{}{
					"content_type": doc.Metadata.ContentType,
					"bytes":        doc.Metadata.ContentLength,
				},
			})
		}(i, u)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, s.fail(ctx, id, start, err)
		}
	}

	return s.verify(ctx, id, start, data, urls)
}

func (s *verificationService) verify(ctx context.Context, id string, start time.Time, data [2][]byte, urls [2]string) (*models.VerificationResponse, error) {
	if s.verifier == nil {
		return nil, s.fail(ctx, id, start, apperrors.NewInternalError("Verifier not configured", analyzer.ErrNoEngine))
	}

	var docs [2]preparedDocument
	for i := range data {
		doc, err := s.prepare(ctx, data[i])
		if err != nil {
			return nil, s.fail(ctx, id, start, err)
		}
		doc.source.URL = urls[i]
		docs[i] = doc
	}

	result, err := s.analyze(ctx, docs[0].image, docs[1].image)
	if err != nil {
		return nil, s.fail(ctx, id, start, err)
	}

	elapsed := time.Since(start)
	response := &models.VerificationResponse{
		AggregateResult:   result,
		VerificationID:    id,
		ProcessingTimeSec: elapsed.Seconds(),
		Documents:         []models.DocumentSource{docs[0].source, docs[1].source},
	}

	s.notify(ctx, observer.VerificationEvent{
		EventType:      observer.VerificationCompleted,
		VerificationID: id,
		ProcessingTime: elapsed,
		Success:        true,
		OverallStatus:  result.OverallStatus,
		Metadata: map[string]interface{}{
			"layout":    result.Layout.Status,
			"photo":     result.Photo.Status,
			"seal":      result.Seal.Status,
			"signature": result.Signature.Status,
		},
	})

	return response, nil
}

// prepare rasterises one input and records scan-quality diagnostics
func (s *verificationService) prepare(ctx context.Context, data []byte) (preparedDocument, error) {
	page, err := s.rasterizer.RasterizePage(ctx, data)
	if err != nil {
		return preparedDocument{}, err
	}

	metrics := s.scans.Calculate(page.Image)
	issues := s.quality.ValidateScan(metrics)

	return preparedDocument{
		image: page.Image,
		source: models.DocumentSource{
			ContentType:   imageio.ContentType(data),
			ContentLength: int64(len(data)),
			Pages:         page.Pages,
			Width:         metrics.Width,
			Height:        metrics.Height,
			InputWarnings: s.quality.ConvertIssuesToMessages(issues),
		},
	}, nil
}

type analysisOutcome struct {
	result models.AggregateResult
	err    error
}

// analyze runs the aggregator under the analysis timeout. A result that
// arrives after the deadline is dropped.
func (s *verificationService) analyze(ctx context.Context, original, uploaded image.Image) (models.AggregateResult, error) {
	if s.analysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.analysisTimeout)
		defer cancel()
	}

	done := make(chan analysisOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analysisOutcome{err: apperrors.NewProcessingError("Verification failed", fmt.Errorf("panic: %v", r))}
			}
		}()
		done <- analysisOutcome{result: s.verifier.Verify(original, uploaded)}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return models.AggregateResult{}, apperrors.NewTimeoutError("Verification timed out", ctx.Err())
	}
}

func (s *verificationService) fail(ctx context.Context, id string, start time.Time, err error) error {
	s.notify(ctx, observer.VerificationEvent{
		EventType:      observer.VerificationFailed,
		VerificationID: id,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
	})
	return err
}

func (s *verificationService) notify(ctx context.Context, event observer.VerificationEvent) {
	if s.events == nil {
		return
	}
	// Observers outlive the request
	s.events.NotifyObservers(context.WithoutCancel(ctx), event)
}

func newVerificationID() string {
	return ulid.Make().String()
}
