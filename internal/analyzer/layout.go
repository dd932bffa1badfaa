package analyzer

import (
	"fmt"
	"image"
	"strings"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/ocr"
	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

type layoutAnalyzer struct {
	engine  vision.Engine
	aligner Aligner
	regions RegionDetector
	scorer  SimilarityScorer
	text    ocr.TextExtractor
	opts    Options
}

// NewLayoutAnalyzer creates the page-structure analyzer. text may be nil.
func NewLayoutAnalyzer(engine vision.Engine, text ocr.TextExtractor, opts Options) LayoutVerifier {
	return &layoutAnalyzer{
		engine:  engine,
		aligner: NewAligner(engine, opts.Thresholds),
		regions: NewRegionDetector(engine, opts.Thresholds),
		scorer:  NewSimilarityScorer(engine),
		text:    text,
		opts:    opts,
	}
}

// layoutSignals are the inputs of the layout decision
type layoutSignals struct {
	aligned        bool
	ssim           float64
	regions        int
	textSimilarity *float64
}

// decideLayout applies the layout policy; every triggering reason is reported
func decideLayout(s layoutSignals, th Thresholds) (models.Status, string) {
	var reasons []string
	if !s.aligned {
		reasons = append(reasons, "Layout could not be aligned to template")
	}
	if s.ssim < th.LayoutMinSSIM {
		reasons = append(reasons, fmt.Sprintf("Low SSIM score: %.3f", s.ssim))
	}
	if s.regions > 0 {
		reasons = append(reasons, "Regions differ from template")
	}
	if s.textSimilarity != nil && *s.textSimilarity < th.LayoutMinTextSimilarity {
		reasons = append(reasons, "Extracted text significantly differs")
	}

	if len(reasons) == 0 {
		return models.StatusAuthentic, "Layout matches the original template"
	}
	return models.StatusTampered, strings.Join(reasons, "; ")
}

func (a *layoutAnalyzer) Verify(original, uploaded image.Image) (verdict models.LayoutVerdict) {
	verdict = models.LayoutVerdict{
		Verdict:         tampered(models.ModelLayout, ""),
		TamperedRegions: []models.Box{},
		IgnoredRegions:  []models.Box{},
	}
	defer func() {
		if r := recover(); r != nil {
			verdict.Verdict = errorVerdict(models.ModelLayout, r)
		}
	}()

	if vision.IsEmpty(original) || vision.IsEmpty(uploaded) {
		verdict.Verdict = errorVerdict(models.ModelLayout, vision.ErrEmptyImage)
		return verdict
	}

	alignment := a.aligner.Align(uploaded, original)
	aligned := alignment.ImageOr(uploaded)
	verdict.Aligned = models.Flag(alignment.Success)
	verdict.MatchCount = alignment.MatchCount
	verdict.AlignmentReason = alignment.Reason

	templateGray := vision.ToGray(original)
	bounds := templateGray.Bounds()
	ignore := a.ignoreRegions(original, aligned, bounds)
	verdict.IgnoredRegions = toBoxes(ignore)

	score, diff, err := a.scorer.MaskedSSIM(templateGray, vision.ToGray(aligned), ignore)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelLayout, err)
		return verdict
	}
	verdict.SSIMScore = score

	boxes, err := a.changedRegions(diff)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelLayout, err)
		return verdict
	}
	boxes = dropIgnored(boxes, ignore, a.opts.Thresholds.LayoutIgnoreOverlap)
	verdict.TamperedRegions = toBoxes(boxes)

	similarity, wer := a.compareText(original, aligned)
	verdict.OCRTextSimilarity = similarity
	verdict.OCRWordErrorRate = wer

	status, message := decideLayout(layoutSignals{
		aligned:        alignment.Success,
		ssim:           score,
		regions:        len(boxes),
		textSimilarity: similarity,
	}, a.opts.Thresholds)
	verdict.Status = status
	verdict.Message = message

	logger.WithFields(logrus.Fields{
		"status":           status,
		"ssim":             score,
		"aligned":          alignment.Success,
		"tampered_regions": len(boxes),
		"ignored_regions":  len(ignore),
	}).Debug("Layout verified")

	return verdict
}

// ignoreRegions unions padded portrait boxes from both images. A detector
// failure disables masking rather than failing the aspect.
func (a *layoutAnalyzer) ignoreRegions(original, aligned image.Image, bounds image.Rectangle) []image.Rectangle {
	var out []image.Rectangle
	for _, img := range []image.Image{original, aligned} {
		faces, err := a.regions.Portraits(img)
		if err != nil {
			logger.WithError(err).Debug("Portrait detection unavailable; layout compared without masking")
			return nil
		}
		for _, f := range faces {
			if r := padBox(f, a.opts.Thresholds.PortraitPadFraction, bounds); !r.Empty() {
				out = append(out, r)
			}
		}
	}
	return out
}

// changedRegions binarises the diff map and returns boxes large enough to matter
func (a *layoutAnalyzer) changedRegions(diff *image.Gray) ([]image.Rectangle, error) {
	bin, err := a.engine.OtsuThreshold(diff)
	if err != nil {
		return nil, err
	}
	closed, err := a.engine.Morph(bin, vision.MorphClose, 5, a.opts.Thresholds.LayoutCloseIterations)
	if err != nil {
		return nil, err
	}
	contours, err := a.engine.ExternalContours(closed)
	if err != nil {
		return nil, err
	}

	var boxes []image.Rectangle
	for _, c := range contours {
		if area(c.Box) >= a.opts.Thresholds.LayoutMinRegionArea {
			boxes = append(boxes, c.Box)
		}
	}
	return boxes, nil
}

// dropIgnored removes boxes that mostly lie inside an ignore region
func dropIgnored(boxes, ignore []image.Rectangle, maxOverlap float64) []image.Rectangle {
	if len(ignore) == 0 {
		return boxes
	}
	kept := boxes[:0:0]
	for _, b := range boxes {
		covered := false
		for _, ig := range ignore {
			if overlapFraction(b, ig) > maxOverlap {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, b)
		}
	}
	return kept
}

// compareText returns nil metrics when OCR is disabled or either side is blank
func (a *layoutAnalyzer) compareText(original, aligned image.Image) (*float64, *float64) {
	if a.opts.DisableOCR || a.text == nil {
		return nil, nil
	}
	templateText, err := a.text.ExtractText(original)
	if err != nil {
		logger.WithError(err).Debug("OCR failed on template")
		return nil, nil
	}
	alignedText, err := a.text.ExtractText(aligned)
	if err != nil {
		logger.WithError(err).Debug("OCR failed on upload")
		return nil, nil
	}
	templateText, alignedText = ocr.Normalize(templateText), ocr.Normalize(alignedText)
	if templateText == "" || alignedText == "" {
		return nil, nil
	}

	similarity := ocr.TextSimilarity(templateText, alignedText)
	wer := ocr.WordErrorRate(templateText, alignedText)
	return &similarity, &wer
}
