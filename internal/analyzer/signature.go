package analyzer

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"

	"github.com/sirupsen/logrus"
)

var signatureParity = parityMessages{
	noneExpected: "No signature expected, none found",
	unexpected:   "Signature present in upload but not in original",
	missing:      "Missing signature in uploaded certificate",
}

type signatureAnalyzer struct {
	engine  vision.Engine
	regions RegionDetector
	scorer  SimilarityScorer
	opts    Options
}

// NewSignatureAnalyzer creates the handwritten signature analyzer
func NewSignatureAnalyzer(engine vision.Engine, opts Options) SignatureVerifier {
	return &signatureAnalyzer{
		engine:  engine,
		regions: NewRegionDetector(engine, opts.Thresholds),
		scorer:  NewSimilarityScorer(engine),
		opts:    opts,
	}
}

func decideSignature(ssim, diffArea float64, th Thresholds) (bool, string) {
	if ssim >= th.SignatureMinSSIM && diffArea <= th.SignatureMaxDiffArea {
		return true, "Signature matches the original"
	}
	return false, fmt.Sprintf("Signature differs from the original (SSIM %.3f, diff area %.3f)", ssim, diffArea)
}

func (a *signatureAnalyzer) Verify(original, uploaded image.Image) (verdict models.SignatureVerdict) {
	verdict.Verdict = tampered(models.ModelSignature, "")
	defer func() {
		if r := recover(); r != nil {
			verdict.Verdict = errorVerdict(models.ModelSignature, r)
		}
	}()

	originalRegion, err := a.regions.Signature(original)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}
	uploadedRegion, err := a.regions.Signature(uploaded)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}

	originalCrop := vision.Crop(vision.ToGray(original), originalRegion.Box)
	uploadedCrop := vision.Crop(vision.ToGray(uploaded), uploadedRegion.Box)
	uploadedCrop, err = a.engine.Resize(uploadedCrop, vision.Size(originalCrop))
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}

	originalInk, err := a.hasInk(originalCrop)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}
	uploadedInk, err := a.hasInk(uploadedCrop)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}

	p := presence{inOriginal: originalInk, inUploaded: uploadedInk}
	verdict.PresentInOriginal = models.Flag(p.inOriginal)
	verdict.PresentInUploaded = models.Flag(p.inUploaded)
	if v, done := p.resolve(models.ModelSignature, signatureParity); done {
		verdict.Verdict = v
		return verdict
	}

	ssim, diff, err := a.scorer.SSIM(originalCrop, uploadedCrop)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}
	mask, contours, err := a.diffContours(diff)
	if err != nil {
		verdict.Verdict = errorVerdict(models.ModelSignature, err)
		return verdict
	}
	diffArea := DiffAreaRatio(mask)

	verdict.SSIM = ssim
	verdict.DiffAreaRatio = diffArea
	verdict.DiffContours = len(contours)

	matched, message := decideSignature(ssim, diffArea, a.opts.Thresholds)
	verdict.Matched = models.Flag(matched)
	if matched {
		verdict.Verdict = authentic(models.ModelSignature, message)
	} else {
		verdict.Verdict = tampered(models.ModelSignature, message)
	}

	if a.opts.DebugOutputDir != "" {
		path, err := writeSignatureDebug(a.opts.DebugOutputDir, originalCrop, uploadedCrop, contours)
		if err != nil {
			logger.WithError(err).Warn("Failed to write signature debug image")
		} else {
			verdict.DebugImage = path
		}
	}

	logger.WithFields(logrus.Fields{
		"status":        verdict.Status,
		"ssim":          ssim,
		"diff_area":     diffArea,
		"diff_contours": len(contours),
	}).Debug("Signature verified")

	return verdict
}

// hasInk reports whether the edge density of region exceeds the ink threshold
func (a *signatureAnalyzer) hasInk(region *image.Gray) (bool, error) {
	if vision.IsEmpty(region) {
		return false, nil
	}
	edges, err := a.engine.Canny(region, 50, 150)
	if err != nil {
		return false, err
	}
	return DiffAreaRatio(edges) > a.opts.Thresholds.SignatureInkDensity, nil
}

// diffContours binarises the diff map, removes speckle and returns the mask
// together with the outlines of what changed
func (a *signatureAnalyzer) diffContours(diff *image.Gray) (*image.Gray, []vision.Contour, error) {
	bin, err := a.engine.Threshold(diff, a.opts.Thresholds.SignatureDiffThreshold)
	if err != nil {
		return nil, nil, err
	}
	opened, err := a.engine.Morph(bin, vision.MorphOpen, 3, 1)
	if err != nil {
		return nil, nil, err
	}
	cleaned, err := a.engine.Morph(opened, vision.MorphClose, 3, 1)
	if err != nil {
		return nil, nil, err
	}
	contours, err := a.engine.ExternalContours(cleaned)
	if err != nil {
		return nil, nil, err
	}
	return cleaned, contours, nil
}

var debugOutline = color.RGBA{R: 255, A: 255}

// writeSignatureDebug saves the uploaded region with changed areas outlined.
// The file name is derived from the pixels so reruns overwrite, not pile up.
func writeSignatureDebug(dir string, original, uploaded *image.Gray, contours []vision.Contour) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}

	h := fnv.New64a()
	h.Write(original.Pix)
	h.Write(uploaded.Pix)
	path := filepath.Join(dir, fmt.Sprintf("signature_diff_%016x.png", h.Sum64()))

	canvas := image.NewRGBA(uploaded.Bounds())
	draw.Draw(canvas, canvas.Bounds(), uploaded, uploaded.Bounds().Min, draw.Src)
	for _, c := range contours {
		strokeRect(canvas, c.Box, debugOutline)
	}

	if err := writeFileAtomic(path, func(w io.Writer) error { return png.Encode(w, canvas) }); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic encodes into a temp file in the same directory and renames
// it over path, so concurrent writers never expose a partial file
func writeFileAtomic(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create debug image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode debug image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write debug image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish debug image: %w", err)
	}
	return nil
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}
