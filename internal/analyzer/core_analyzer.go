package analyzer

import (
	"errors"
	"image"
	"sync"
	"time"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/ocr"
	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrNoEngine is returned when a verifier is built without vision primitives
var ErrNoEngine = errors.New("vision engine is required")

// documentVerifier implements DocumentVerifier and orchestrates the four aspects
type documentVerifier struct {
	workerPool *WorkerPool
	layout     LayoutVerifier
	photo      PhotoVerifier
	seal       SealVerifier
	signature  SignatureVerifier
	opts       Options
}

// NewDocumentVerifier creates a verifier over engine. text may be nil, in
// which case the layout OCR check is skipped. The engine stays owned by the
// caller.
func NewDocumentVerifier(engine vision.Engine, text ocr.TextExtractor, opts Options) (DocumentVerifier, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}

	var pool *WorkerPool
	if opts.Parallel {
		pool = NewWorkerPool(opts.MaxWorkers)
		pool.Start()
	}

	return &documentVerifier{
		workerPool: pool,
		layout:     NewLayoutAnalyzer(engine, text, opts),
		photo:      NewPhotoAnalyzer(engine, opts),
		seal:       NewSealAnalyzer(engine, opts),
		signature:  NewSignatureAnalyzer(engine, opts),
		opts:       opts,
	}, nil
}

// Verify runs all four aspects. Each reads only the two inputs, so running
// them concurrently gives the same result as running them in order.
func (dv *documentVerifier) Verify(original, uploaded image.Image) models.AggregateResult {
	start := time.Now()
	var result models.AggregateResult

	jobs := []func(){
		func() { result.Layout = dv.layout.Verify(original, uploaded) },
		func() { result.Photo = dv.photo.Verify(original, uploaded) },
		func() { result.Seal = dv.seal.Verify(original, uploaded) },
		func() { result.Signature = dv.signature.Verify(original, uploaded) },
	}

	if dv.workerPool == nil {
		for _, job := range jobs {
			job()
		}
	} else {
		dv.runParallel(jobs)
	}

	result.OverallStatus = models.OverallStatus(result.Statuses()...)

	logger.WithFields(logrus.Fields{
		"overall_status":   result.OverallStatus,
		"layout_status":    result.Layout.Status,
		"photo_status":     result.Photo.Status,
		"seal_status":      result.Seal.Status,
		"signature_status": result.Signature.Status,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("Document verification completed")

	return result
}

// runParallel waits only for this call's jobs; the pool may be shared by
// concurrent requests. A closed pool falls back to running inline.
func (dv *documentVerifier) runParallel(jobs []func()) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		submitted := dv.workerPool.Submit(func() {
			defer wg.Done()
			job()
		})
		if !submitted {
			job()
			wg.Done()
		}
	}
	wg.Wait()
}

// Close stops the worker pool
func (dv *documentVerifier) Close() error {
	if dv.workerPool != nil {
		dv.workerPool.Close()
	}
	return nil
}
