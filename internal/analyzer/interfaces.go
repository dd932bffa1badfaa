package analyzer

import (
	"image"

	"go-doc-verifier/pkg/models"
	"go-doc-verifier/pkg/validation"
)

// DocumentVerifier runs every aspect over an original/uploaded pair
type DocumentVerifier interface {
	Verify(original, uploaded image.Image) models.AggregateResult

	// Lifecycle management
	Close() error
}

// LayoutVerifier compares page structure against the template
type LayoutVerifier interface {
	Verify(original, uploaded image.Image) models.LayoutVerdict
}

// PhotoVerifier compares the embedded portrait
type PhotoVerifier interface {
	Verify(original, uploaded image.Image) models.PhotoVerdict
}

// SealVerifier compares the stamp or seal
type SealVerifier interface {
	Verify(original, uploaded image.Image) models.SealVerdict
}

// SignatureVerifier compares the handwritten signature
type SignatureVerifier interface {
	Verify(original, uploaded image.Image) models.SignatureVerdict
}

// ScanMetricsCalculator measures capture quality of an input page
type ScanMetricsCalculator interface {
	Calculate(img image.Image) validation.ScanMetrics
}
