package analyzer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"go-doc-verifier/internal/vision"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SSIM constants: 7x7 uniform window, 8-bit dynamic range
const (
	ssimWindow    = 7
	ssimK1        = 0.01
	ssimK2        = 0.03
	ssimDataRange = 255.0
)

// ssimPlanes recycles the per-pixel float planes of an SSIM pass
var ssimPlanes = sync.Pool{
	New: func() interface{} {
		return make([]float64, 0, 1024)
	},
}

// planeSet hands out pooled planes of n values and returns them together
type planeSet struct {
	n    int
	held [][]float64
}

func (p *planeSet) get() []float64 {
	buf := ssimPlanes.Get().([]float64)
	if cap(buf) < p.n {
		buf = make([]float64, p.n)
	}
	buf = buf[:p.n]
	p.held = append(p.held, buf)
	return buf
}

func (p *planeSet) release() {
	for _, buf := range p.held {
		ssimPlanes.Put(buf[:0])
	}
	p.held = nil
}

// ErrSizeMismatch is returned when two regions must share dimensions but don't
var ErrSizeMismatch = errors.New("region sizes differ")

// ErrRegionTooSmall is returned when a region is smaller than the SSIM window
var ErrRegionTooSmall = errors.New("region smaller than similarity window")

// SimilarityScorer compares two grayscale regions
type SimilarityScorer interface {
	// SSIM returns the mean structural similarity and a difference map where
	// 255 means fully dissimilar
	SSIM(a, b *image.Gray) (float64, *image.Gray, error)

	// MaskedSSIM scores candidate against template after copying template
	// pixels into every ignore rectangle. Candidate is resized to the
	// template's dimensions first if needed.
	MaskedSSIM(template, candidate *image.Gray, ignore []image.Rectangle) (float64, *image.Gray, error)

	// DescriptorMatchRatio is the share of cross-checked matches whose
	// distance is below cutoff
	DescriptorMatchRatio(a, b *image.Gray, maxFeatures int, cutoff float64) (float64, error)

	// EdgeChangeRatio is the share of pixels whose edge/no-edge state differs
	EdgeChangeRatio(a, b *image.Gray) (float64, error)
}

type similarityScorer struct {
	engine vision.Engine
}

// NewSimilarityScorer creates a scorer backed by engine for edges and descriptors
func NewSimilarityScorer(engine vision.Engine) SimilarityScorer {
	return &similarityScorer{engine: engine}
}

func (s *similarityScorer) SSIM(a, b *image.Gray) (float64, *image.Gray, error) {
	return structuralSimilarity(a, b)
}

func (s *similarityScorer) MaskedSSIM(template, candidate *image.Gray, ignore []image.Rectangle) (float64, *image.Gray, error) {
	template = vision.ToGray(template)
	matched, err := s.matchSize(candidate, template.Bounds().Size())
	if err != nil {
		return 0, nil, err
	}
	if len(ignore) > 0 {
		matched = applyMask(template, matched, ignore)
	}
	return structuralSimilarity(template, matched)
}

func (s *similarityScorer) DescriptorMatchRatio(a, b *image.Gray, maxFeatures int, cutoff float64) (float64, error) {
	matches, err := s.engine.MatchFeatures(a, b, maxFeatures)
	if err != nil {
		return 0, err
	}
	return goodMatchRatio(matches, cutoff), nil
}

func (s *similarityScorer) EdgeChangeRatio(a, b *image.Gray) (float64, error) {
	b, err := s.matchSize(b, a.Bounds().Size())
	if err != nil {
		return 1, err
	}
	ea, err := s.engine.Canny(a, 50, 150)
	if err != nil {
		return 1, err
	}
	eb, err := s.engine.Canny(b, 50, 150)
	if err != nil {
		return 1, err
	}
	total := len(ea.Pix)
	if total == 0 {
		return 1, vision.ErrEmptyImage
	}
	changed := 0
	for i := range ea.Pix {
		if (ea.Pix[i] != 0) != (eb.Pix[i] != 0) {
			changed++
		}
	}
	return float64(changed) / float64(total), nil
}

func (s *similarityScorer) matchSize(g *image.Gray, size image.Point) (*image.Gray, error) {
	if g.Bounds().Size() == size {
		return vision.ToGray(g), nil
	}
	return s.engine.Resize(g, size)
}

// goodMatchRatio counts matches under cutoff. No matches yields 0.
func goodMatchRatio(matches []vision.Match, cutoff float64) float64 {
	if len(matches) == 0 {
		return 0
	}
	return float64(countGood(matches, cutoff)) / float64(len(matches))
}

func countGood(matches []vision.Match, cutoff float64) int {
	good := 0
	for _, m := range matches {
		if m.Distance < cutoff {
			good++
		}
	}
	return good
}

// DiffAreaRatio is the fraction of set pixels in a binary difference mask
func DiffAreaRatio(bin *image.Gray) float64 {
	total := bin.Rect.Dx() * bin.Rect.Dy()
	if total == 0 {
		return 0
	}
	return float64(vision.CountNonZero(bin)) / float64(total)
}

// applyMask returns a copy of candidate with template pixels inside every rect
func applyMask(template, candidate *image.Gray, rects []image.Rectangle) *image.Gray {
	out := image.NewGray(candidate.Bounds())
	copy(out.Pix, candidate.Pix)
	bounds := out.Bounds()
	for _, r := range rects {
		r = r.Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			src := template.Pix[template.PixOffset(r.Min.X, y):template.PixOffset(r.Max.X, y)]
			copy(out.Pix[out.PixOffset(r.Min.X, y):], src)
		}
	}
	return out
}

// structuralSimilarity computes SSIM with a uniform window and sample
// covariance. Borders are reflected for the full map; the mean excludes a
// half-window margin.
func structuralSimilarity(a, b *image.Gray) (float64, *image.Gray, error) {
	a, b = vision.ToGray(a), vision.ToGray(b)
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0, nil, fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w < ssimWindow || h < ssimWindow {
		return 0, nil, fmt.Errorf("%w: %dx%d", ErrRegionTooSmall, w, h)
	}

	n := w * h
	planes := &planeSet{n: n}
	defer planes.release()

	x, y := planes.get(), planes.get()
	for i := 0; i < n; i++ {
		x[i] = float64(a.Pix[i])
		y[i] = float64(b.Pix[i])
	}

	// one scratch plane serves every filter pass; products reuse a single
	// plane because each is consumed before the next is formed
	tmp, prod := planes.get(), planes.get()
	ux := uniformFilter(planes.get(), tmp, x, w, h, ssimWindow)
	uy := uniformFilter(planes.get(), tmp, y, w, h, ssimWindow)
	floats.MulTo(prod, x, x)
	uxx := uniformFilter(planes.get(), tmp, prod, w, h, ssimWindow)
	floats.MulTo(prod, y, y)
	uyy := uniformFilter(planes.get(), tmp, prod, w, h, ssimWindow)
	floats.MulTo(prod, x, y)
	uxy := uniformFilter(planes.get(), tmp, prod, w, h, ssimWindow)

	np := float64(ssimWindow * ssimWindow)
	covNorm := np / (np - 1)
	c1 := (ssimK1 * ssimDataRange) * (ssimK1 * ssimDataRange)
	c2 := (ssimK2 * ssimDataRange) * (ssimK2 * ssimDataRange)

	diff := image.NewGray(image.Rect(0, 0, w, h))
	pad := (ssimWindow - 1) / 2
	interior := planes.get()[:0]

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			vx := covNorm * (uxx[i] - ux[i]*ux[i])
			vy := covNorm * (uyy[i] - uy[i]*uy[i])
			vxy := covNorm * (uxy[i] - ux[i]*uy[i])

			num := (2*ux[i]*uy[i] + c1) * (2*vxy + c2)
			den := (ux[i]*ux[i] + uy[i]*uy[i] + c1) * (vx + vy + c2)
			s := num / den

			diff.Pix[i] = diffPixel(s)
			if row >= pad && row < h-pad && col >= pad && col < w-pad {
				interior = append(interior, s)
			}
		}
	}

	return stat.Mean(interior, nil), diff, nil
}

// diffPixel maps a local similarity to 0 (identical) .. 255 (dissimilar)
func diffPixel(s float64) uint8 {
	v := (1 - s) * 255
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// uniformFilter is a separable box mean with mirror-reflected borders. It
// writes into out, using tmp as scratch; both must hold len(src) values.
func uniformFilter(out, tmp, src []float64, w, h, size int) []float64 {
	r := size / 2
	inv := 1 / float64(size)

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += row[reflectIndex(x+k, w)]
			}
			tmp[y*w+x] = sum * inv
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += tmp[reflectIndex(y+k, h)*w+x]
			}
			out[y*w+x] = sum * inv
		}
	}
	return out
}

// reflectIndex folds i into [0, n) as d c b a | a b c d | d c b a
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}
