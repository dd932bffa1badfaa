package analyzer

import (
	"errors"
	"fmt"
	"image"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

var sealParity = parityMessages{
	noneExpected: "No seal expected, none found",
	unexpected:   "Seal present in upload but not in original",
	missing:      "Missing seal in uploaded certificate",
}

type sealAnalyzer struct {
	engine  vision.Engine
	aligner Aligner
	regions RegionDetector
	opts    Options
}

// NewSealAnalyzer creates the stamp analyzer
func NewSealAnalyzer(engine vision.Engine, opts Options) SealVerifier {
	return &sealAnalyzer{
		engine:  engine,
		aligner: NewAligner(engine, opts.Thresholds),
		regions: NewRegionDetector(engine, opts.Thresholds),
		opts:    opts,
	}
}

// requiredGoodMatches is max(floor, ratio*total)
func requiredGoodMatches(total int, th Thresholds) int {
	need := int(th.SealMinGoodRatio * float64(total))
	if need < th.SealMinGoodMatches {
		need = th.SealMinGoodMatches
	}
	return need
}

func (a *sealAnalyzer) Verify(original, uploaded image.Image) (verdict models.SealVerdict) {
	verdict.Verdict = tampered(models.ModelSeal, "")
	defer func() {
		if r := recover(); r != nil {
			verdict.Verdict = errorVerdict(models.ModelSeal, r)
		}
	}()

	if vision.IsEmpty(original) || vision.IsEmpty(uploaded) {
		verdict.Verdict = errorVerdict(models.ModelSeal, vision.ErrEmptyImage)
		return verdict
	}

	alignment := a.aligner.Align(uploaded, original)
	aligned := alignment.ImageOr(uploaded)
	verdict.Aligned = models.Flag(alignment.Success)

	originalSeals, err := a.regions.Seals(original, a.opts.SealColorFilter)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSeal, err)
		return verdict
	}
	uploadedSeals, err := a.regions.Seals(aligned, a.opts.SealColorFilter)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSeal, err)
		return verdict
	}
	verdict.ColorFiltered = models.Flag(originalSeals.ColorFiltered || uploadedSeals.ColorFiltered)

	p := presence{inOriginal: len(originalSeals.Circles) > 0, inUploaded: len(uploadedSeals.Circles) > 0}
	verdict.PresentInOriginal = models.Flag(p.inOriginal)
	verdict.PresentInUploaded = models.Flag(p.inUploaded)
	if v, done := p.resolve(models.ModelSeal, sealParity); done {
		verdict.Verdict = v
		return verdict
	}

	templateGray := vision.ToGray(original)
	roi := a.sealROI(originalSeals.Circles[0], templateGray.Bounds())
	if roi != templateGray.Bounds() {
		box := models.BoxFromRect(roi)
		verdict.ROI = &box
	}

	// aligned is in template space, so one rectangle cuts both
	alignedGray := vision.ToGray(aligned)
	if alignedGray.Bounds().Size() != templateGray.Bounds().Size() {
		alignedGray, err = a.engine.Resize(alignedGray, templateGray.Bounds().Size())
		if err != nil {
			verdict.Verdict = errorVerdict(models.ModelSeal, err)
			return verdict
		}
	}

	matches, err := a.engine.MatchFeatures(vision.Crop(templateGray, roi), vision.Crop(alignedGray, roi), a.opts.Thresholds.SealMaxFeatures)
	if errors.Is(err, vision.ErrNoDescriptors) {
		verdict.Verdict = tampered(models.ModelSeal, "Unable to compute descriptors for seal comparison")
		return verdict
	}
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSeal, err)
		return verdict
	}
	if len(matches) == 0 {
		verdict.Verdict = tampered(models.ModelSeal, "No descriptor matches for seal")
		return verdict
	}

	good := countGood(matches, a.opts.Thresholds.SealGoodDistance)
	need := requiredGoodMatches(len(matches), a.opts.Thresholds)
	verdict.TotalMatches = len(matches)
	verdict.GoodMatches = good

	if good >= need {
		verdict.Matched = 1
		verdict.Verdict = authentic(models.ModelSeal, "Seal appears consistent with original")
	} else {
		verdict.Verdict = tampered(models.ModelSeal,
			fmt.Sprintf("Seal differs from the original (%d good matches of %d, need %d)", good, len(matches), need))
	}

	logger.WithFields(logrus.Fields{
		"status":         verdict.Status,
		"aligned":        alignment.Success,
		"color_filtered": verdict.ColorFiltered,
		"good_matches":   good,
		"total_matches":  len(matches),
	}).Debug("Seal verified")

	return verdict
}

// sealROI is the padded square around a circle, or the whole page when the
// circle falls outside it
func (a *sealAnalyzer) sealROI(c vision.Circle, bounds image.Rectangle) image.Rectangle {
	r := int(float64(c.Radius) * (1 + a.opts.Thresholds.SealROIPadFraction))
	roi := image.Rect(c.X-r, c.Y-r, c.X+r, c.Y+r).Intersect(bounds)
	if roi.Empty() {
		return bounds
	}
	return roi
}
