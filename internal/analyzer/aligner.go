package analyzer

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/vision"

	"github.com/sirupsen/logrus"
)

// ErrNotEnoughMatches is returned when too few correspondences survive for a homography
var ErrNotEnoughMatches = errors.New("not enough matches for homography")

// Alignment failure reasons reported in layout diagnostics
const (
	reasonAligned             = "aligned"
	reasonInsufficientFeature = "Insufficient features for alignment"
	reasonNotEnoughMatches    = "Not enough matches for homography"
	reasonHomographyFailed    = "Homography estimation failed"
)

// AlignmentResult describes an attempt to warp an image into a template's frame.
// A failed alignment is not fatal: callers continue on the unaligned input.
type AlignmentResult struct {
	Aligned    image.Image
	Success    bool
	Reason     string
	MatchCount int
	Err        error
}

// ImageOr returns the aligned image, or fallback when alignment failed
func (r AlignmentResult) ImageOr(fallback image.Image) image.Image {
	if r.Success && r.Aligned != nil {
		return r.Aligned
	}
	return fallback
}

// Aligner warps an uploaded image into a template's coordinate frame
type Aligner interface {
	Align(uploaded, template image.Image) AlignmentResult
}

type aligner struct {
	engine     vision.Engine
	thresholds Thresholds
}

// NewAligner creates a feature-based aligner
func NewAligner(engine vision.Engine, thresholds Thresholds) Aligner {
	return &aligner{engine: engine, thresholds: thresholds}
}

// Align matches keypoints, fits a robust homography and warps uploaded
func (a *aligner) Align(uploaded, template image.Image) AlignmentResult {
	if vision.IsEmpty(uploaded) || vision.IsEmpty(template) {
		return AlignmentResult{Reason: reasonInsufficientFeature, Err: vision.ErrEmptyImage}
	}

	matches, err := a.engine.MatchFeatures(vision.ToGray(uploaded), vision.ToGray(template), a.thresholds.AlignMaxFeatures)
	if err != nil {
		return AlignmentResult{Reason: reasonInsufficientFeature, Err: err}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > a.thresholds.AlignKeepMatches {
		matches = matches[:a.thresholds.AlignKeepMatches]
	}
	if len(matches) < a.thresholds.AlignMinMatches {
		return AlignmentResult{
			Reason:     reasonNotEnoughMatches,
			MatchCount: len(matches),
			Err:        fmt.Errorf("%w: %d < %d", ErrNotEnoughMatches, len(matches), a.thresholds.AlignMinMatches),
		}
	}

	src := make([]vision.Point, len(matches))
	dst := make([]vision.Point, len(matches))
	for i, m := range matches {
		src[i] = m.Query
		dst[i] = m.Train
	}

	h, err := a.engine.FindHomography(src, dst, a.thresholds.AlignReprojError)
	if err != nil {
		return AlignmentResult{Reason: reasonHomographyFailed, MatchCount: len(matches), Err: err}
	}

	warped, err := a.engine.WarpPerspective(uploaded, h, vision.Size(template))
	if err != nil {
		return AlignmentResult{Reason: reasonHomographyFailed, MatchCount: len(matches), Err: err}
	}

	logger.WithFields(logrus.Fields{
		"match_count": len(matches),
	}).Debug("Aligned document to template")

	return AlignmentResult{
		Aligned:    warped,
		Success:    true,
		Reason:     reasonAligned,
		MatchCount: len(matches),
	}
}
