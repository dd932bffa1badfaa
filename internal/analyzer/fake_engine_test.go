package analyzer

import (
	"bytes"
	"image"
	"image/color"

	"go-doc-verifier/internal/vision"
)

// Marker intensities the fake detectors look for
const (
	faceMarker = 77
	sealMarker = 150
)

// fakeEngine is a deterministic pure-Go stand-in for the OpenCV engine.
// Faces and seals are found by marker intensity, descriptors match at
// distance 0 when two images are pixel-identical and at 100 otherwise.
type fakeEngine struct {
	matchFn       func(q, t *image.Gray) ([]vision.Match, error)
	homographyErr error
	facesErr      error
	hueMaskFn     func(img image.Image) *image.Gray
}

var _ vision.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

func (f *fakeEngine) MatchFeatures(query, train *image.Gray, maxFeatures int) ([]vision.Match, error) {
	query, train = vision.ToGray(query), vision.ToGray(train)
	if f.matchFn != nil {
		return f.matchFn(query, train)
	}
	if isUniform(query) || isUniform(train) {
		return nil, vision.ErrNoDescriptors
	}

	distance := 100.0
	if query.Bounds().Size() == train.Bounds().Size() && bytes.Equal(query.Pix, train.Pix) {
		distance = 0
	}
	return gridMatches(50, distance), nil
}

func gridMatches(n int, distance float64) []vision.Match {
	matches := make([]vision.Match, n)
	for i := range matches {
		p := vision.Point{X: float64(i%10) * 10, Y: float64(i/10) * 10}
		matches[i] = vision.Match{Query: p, Train: p, Distance: distance}
	}
	return matches
}

func (f *fakeEngine) FindHomography(src, dst []vision.Point, reprojThreshold float64) (vision.Homography, error) {
	if f.homographyErr != nil {
		return vision.Homography{}, f.homographyErr
	}
	if len(src) < 4 {
		return vision.Homography{}, vision.ErrHomography
	}
	return vision.Identity(), nil
}

func (f *fakeEngine) WarpPerspective(img image.Image, h vision.Homography, size image.Point) (image.Image, error) {
	return f.Resize(vision.ToGray(img), size)
}

func (f *fakeEngine) Canny(gray *image.Gray, low, high float64) (*image.Gray, error) {
	gray = vision.ToGray(gray)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(gray.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(gray.Pix[y*w+x])
			edge := false
			if x+1 < w && absf(v-float64(gray.Pix[y*w+x+1])) >= low {
				edge = true
			}
			if y+1 < h && absf(v-float64(gray.Pix[(y+1)*w+x])) >= low {
				edge = true
			}
			if edge {
				out.Pix[y*w+x] = 255
			}
		}
	}
	return out, nil
}

func (f *fakeEngine) OtsuThreshold(gray *image.Gray) (*image.Gray, error) {
	gray = vision.ToGray(gray)
	lo, hi := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return image.NewGray(gray.Rect), nil
	}
	return f.Threshold(gray, (float64(lo)+float64(hi))/2)
}

func (f *fakeEngine) Threshold(gray *image.Gray, thresh float64) (*image.Gray, error) {
	gray = vision.ToGray(gray)
	out := image.NewGray(gray.Rect)
	for i, v := range gray.Pix {
		if float64(v) > thresh {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

func (f *fakeEngine) Morph(bin *image.Gray, op vision.MorphOp, kernelSize, iterations int) (*image.Gray, error) {
	out := image.NewGray(bin.Rect)
	copy(out.Pix, vision.ToGray(bin).Pix)
	return out, nil
}

// ExternalContours reports one contour bounding every set pixel
func (f *fakeEngine) ExternalContours(bin *image.Gray) ([]vision.Contour, error) {
	box, ok := boundsOf(vision.ToGray(bin), func(v uint8) bool { return v != 0 })
	if !ok {
		return nil, nil
	}
	return []vision.Contour{{Box: box, Area: float64(box.Dx() * box.Dy())}}, nil
}

func (f *fakeEngine) HueMask(img image.Image, ranges []vision.HueRange) (*image.Gray, error) {
	if f.hueMaskFn != nil {
		return f.hueMaskFn(img), nil
	}
	b := img.Bounds()
	return image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy())), nil
}

func (f *fakeEngine) MedianBlur(gray *image.Gray, ksize int) (*image.Gray, error) {
	return vision.ToGray(gray), nil
}

func (f *fakeEngine) HoughCircles(gray *image.Gray, params vision.CircleParams) ([]vision.Circle, error) {
	box, ok := boundsOf(vision.ToGray(gray), func(v uint8) bool { return v == sealMarker })
	if !ok {
		return nil, nil
	}
	radius := box.Dx()
	if box.Dy() > radius {
		radius = box.Dy()
	}
	return []vision.Circle{{
		X:      (box.Min.X + box.Max.X) / 2,
		Y:      (box.Min.Y + box.Max.Y) / 2,
		Radius: radius / 2,
	}}, nil
}

func (f *fakeEngine) DetectFaces(gray *image.Gray, params vision.FaceParams) ([]image.Rectangle, error) {
	if f.facesErr != nil {
		return nil, f.facesErr
	}
	box, ok := boundsOf(vision.ToGray(gray), func(v uint8) bool { return v == faceMarker })
	if !ok {
		return nil, nil
	}
	return []image.Rectangle{box}, nil
}

// Resize uses nearest-neighbour sampling
func (f *fakeEngine) Resize(gray *image.Gray, size image.Point) (*image.Gray, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, vision.ErrEmptyImage
	}
	src := vision.ToGray(gray)
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if sw == 0 || sh == 0 {
		return nil, vision.ErrEmptyImage
	}
	out := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		sy := y * sh / size.Y
		for x := 0; x < size.X; x++ {
			out.Pix[y*size.X+x] = src.Pix[sy*sw+x*sw/size.X]
		}
	}
	return out, nil
}

func (f *fakeEngine) Close() error { return nil }

func boundsOf(gray *image.Gray, match func(uint8) bool) (image.Rectangle, bool) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	box := image.Rectangle{}
	found := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !match(gray.Pix[y*w+x]) {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = px, true
			} else {
				box = box.Union(px)
			}
		}
	}
	return box, found
}

func isUniform(gray *image.Gray) bool {
	if len(gray.Pix) == 0 {
		return true
	}
	first := gray.Pix[0]
	for _, v := range gray.Pix {
		if v != first {
			return false
		}
	}
	return true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Synthetic certificate: header stripes, a framed portrait, a small seal
// and a striped signature in the lower half, on a white page.
const docSize = 200

var (
	portraitFrame = image.Rect(20, 40, 70, 100)
	sealCenter    = image.Pt(150, 70)
	sealRadius    = 7
	signatureArea = image.Rect(60, 150, 140, 166)
)

func blankDocument() *image.Gray {
	return uniformImage(docSize, docSize, 255)
}

func uniformImage(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func testDocument() *image.Gray {
	g := blankDocument()
	drawHeader(g)
	drawPortrait(g, 0)
	drawSeal(g)
	drawSignature(g)
	return g
}

func drawHeader(g *image.Gray) {
	for y := 10; y < 20; y++ {
		for x := 20; x < 180; x++ {
			if (x/2)%2 == 0 {
				g.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}

// drawPortrait frames a textured face; variant changes only the interior
func drawPortrait(g *image.Gray, variant int) {
	r := portraitFrame
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			border := x < r.Min.X+2 || x >= r.Max.X-2 || y < r.Min.Y+2 || y >= r.Max.Y-2
			switch {
			case border:
				g.SetGray(x, y, color.Gray{Y: faceMarker})
			case variant == 0 && ((x/4)+(y/4))%2 == 0:
				g.SetGray(x, y, color.Gray{Y: 30})
			case variant == 0:
				g.SetGray(x, y, color.Gray{Y: 220})
			case (y/3)%2 == 0:
				g.SetGray(x, y, color.Gray{Y: 10})
			default:
				g.SetGray(x, y, color.Gray{Y: 200})
			}
		}
	}
}

func drawSeal(g *image.Gray) {
	for dy := -sealRadius; dy <= sealRadius; dy++ {
		for dx := -sealRadius; dx <= sealRadius; dx++ {
			if dx*dx+dy*dy <= sealRadius*sealRadius {
				g.SetGray(sealCenter.X+dx, sealCenter.Y+dy, color.Gray{Y: sealMarker})
			}
		}
	}
}

func paintOverSeal(g *image.Gray) {
	r := image.Rect(sealCenter.X-sealRadius, sealCenter.Y-sealRadius, sealCenter.X+sealRadius+1, sealCenter.Y+sealRadius+1)
	fill(g, r, 255)
}

func drawSignature(g *image.Gray) {
	r := signatureArea
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if x%3 == 0 {
				g.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}

func fill(g *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func cloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	copy(out.Pix, g.Pix)
	return out
}
