package analyzer

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

var photoParity = parityMessages{
	noneExpected: "No photo expected, none found",
	unexpected:   "Photo present in upload but not in original",
	missing:      "Missing photo in uploaded certificate",
}

type photoAnalyzer struct {
	engine  vision.Engine
	regions RegionDetector
	scorer  SimilarityScorer
	opts    Options
}

// NewPhotoAnalyzer creates the portrait analyzer
func NewPhotoAnalyzer(engine vision.Engine, opts Options) PhotoVerifier {
	return &photoAnalyzer{
		engine:  engine,
		regions: NewRegionDetector(engine, opts.Thresholds),
		scorer:  NewSimilarityScorer(engine),
		opts:    opts,
	}
}

// photoSignals are the three comparison metrics on the portrait crops
type photoSignals struct {
	matchRatio float64
	ssim       float64
	edgeChange float64
}

func decidePhoto(s photoSignals, th Thresholds) (bool, string) {
	var reasons []string
	if s.matchRatio < th.PhotoMinMatchRatio {
		reasons = append(reasons, fmt.Sprintf("low ORB match %.2f", s.matchRatio))
	}
	if s.ssim < th.PhotoMinSSIM {
		reasons = append(reasons, fmt.Sprintf("low SSIM %.2f", s.ssim))
	}
	if s.edgeChange > th.PhotoMaxEdgeChange {
		reasons = append(reasons, fmt.Sprintf("excess edge change %.2f", s.edgeChange))
	}
	if len(reasons) == 0 {
		return true, "Photo region appears consistent with original"
	}
	return false, "Photo region differs from original (" + strings.Join(reasons, ", ") + ")"
}

func (a *photoAnalyzer) Verify(original, uploaded image.Image) (verdict models.PhotoVerdict) {
	verdict.Verdict = tampered(models.ModelPhoto, "")
	defer func() {
		if r := recover(); r != nil {
			verdict.Verdict = errorVerdict(models.ModelPhoto, r)
		}
	}()

	originalFaces, err := a.regions.Portraits(original)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelPhoto, err)
		return verdict
	}
	uploadedFaces, err := a.regions.Portraits(uploaded)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelPhoto, err)
		return verdict
	}

	p := presence{inOriginal: len(originalFaces) > 0, inUploaded: len(uploadedFaces) > 0}
	verdict.PresentInOriginal = models.Flag(p.inOriginal)
	verdict.PresentInUploaded = models.Flag(p.inUploaded)
	verdict.NumInUploaded = len(uploadedFaces)
	if v, done := p.resolve(models.ModelPhoto, photoParity); done {
		verdict.Verdict = v
		return verdict
	}

	originalCrop := a.portraitCrop(original, originalFaces)
	uploadedCrop := a.portraitCrop(uploaded, uploadedFaces)
	if vision.IsEmpty(originalCrop) || vision.IsEmpty(uploadedCrop) {
		verdict.Verdict = tampered(models.ModelPhoto, "Unable to crop face regions for comparison")
		return verdict
	}
	uploadedCrop, err = a.engine.Resize(uploadedCrop, vision.Size(originalCrop))
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelPhoto, err)
		return verdict
	}

	signals, err := a.compare(originalCrop, uploadedCrop)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelPhoto, err)
		return verdict
	}
	verdict.Similarity = signals.matchRatio
	verdict.SSIM = signals.ssim
	verdict.EdgeChange = signals.edgeChange

	matched, message := decidePhoto(signals, a.opts.Thresholds)
	verdict.Matched = models.Flag(matched)
	if matched {
		verdict.Verdict = authentic(models.ModelPhoto, message)
	} else {
		verdict.Verdict = tampered(models.ModelPhoto, message)
	}

	logger.WithFields(logrus.Fields{
		"status":      verdict.Status,
		"match_ratio": signals.matchRatio,
		"ssim":        signals.ssim,
		"edge_change": signals.edgeChange,
	}).Debug("Photo verified")

	return verdict
}

// compare computes the three signals. Missing descriptors count as no
// matches and edge failures as total change, so both fail closed.
func (a *photoAnalyzer) compare(originalCrop, uploadedCrop *image.Gray) (photoSignals, error) {
	th := a.opts.Thresholds

	ratio, err := a.scorer.DescriptorMatchRatio(originalCrop, uploadedCrop, th.PhotoMaxFeatures, th.PhotoMatchDistance)
	if err != nil && !errors.Is(err, vision.ErrNoDescriptors) {
		return photoSignals{}, err
	}

	ssim, _, err := a.scorer.SSIM(originalCrop, uploadedCrop)
	if err != nil {
		return photoSignals{}, err
	}

	edge, err := a.scorer.EdgeChangeRatio(originalCrop, uploadedCrop)
	if err != nil {
		edge = 1
	}

	return photoSignals{matchRatio: ratio, ssim: ssim, edgeChange: edge}, nil
}

// portraitCrop cuts the largest face, expanded to cover the portrait frame
func (a *photoAnalyzer) portraitCrop(img image.Image, faces []image.Rectangle) *image.Gray {
	gray := vision.ToGray(img)
	box := padBoxUniform(largestBox(faces), a.opts.Thresholds.PortraitPadFraction, gray.Bounds())
	return vision.Crop(gray, box)
}
