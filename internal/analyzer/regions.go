package analyzer

import (
	"image"
	"sort"

	"go-doc-verifier/internal/vision"
)

var (
	portraitParams = vision.FaceParams{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      image.Pt(40, 40),
	}

	sealCircleParams = vision.CircleParams{
		DP:        1.2,
		MinDist:   40,
		Param1:    100,
		Param2:    30,
		MinRadius: 10,
		MaxRadius: 400,
	}

	// Red wraps around the hue circle, so it needs two bands
	sealHueRanges = []vision.HueRange{
		{Low: 0, High: 10, MinSaturation: 70, MinValue: 70},
		{Low: 170, High: 180, MinSaturation: 70, MinValue: 70},
		{Low: 100, High: 130, MinSaturation: 70, MinValue: 70},
	}
)

// SealDetection holds circle candidates and whether the hue mask was used
type SealDetection struct {
	Circles       []vision.Circle
	ColorFiltered bool
}

// SignatureRegion is the heuristic signature box. Found is false when the
// whole image was returned as a fallback.
type SignatureRegion struct {
	Box   image.Rectangle
	Found bool
}

// RegionDetector locates portraits, seals and signatures
type RegionDetector interface {
	Portraits(img image.Image) ([]image.Rectangle, error)
	Seals(img image.Image, colorFilter bool) (SealDetection, error)
	Signature(img image.Image) (SignatureRegion, error)
}

type regionDetector struct {
	engine     vision.Engine
	thresholds Thresholds
}

// NewRegionDetector creates the heuristic region detector
func NewRegionDetector(engine vision.Engine, thresholds Thresholds) RegionDetector {
	return &regionDetector{engine: engine, thresholds: thresholds}
}

// Portraits returns raw face boxes in image coordinates
func (d *regionDetector) Portraits(img image.Image) ([]image.Rectangle, error) {
	if vision.IsEmpty(img) {
		return nil, vision.ErrEmptyImage
	}
	faces, err := d.engine.DetectFaces(vision.ToGray(img), portraitParams)
	if err != nil {
		return nil, err
	}
	return faces, nil
}

// Seals returns circle candidates, hue-filtered when requested and the mask
// has enough ink to be meaningful
func (d *regionDetector) Seals(img image.Image, colorFilter bool) (SealDetection, error) {
	if vision.IsEmpty(img) {
		return SealDetection{}, vision.ErrEmptyImage
	}

	source := vision.ToGray(img)
	filtered := false
	if colorFilter {
		mask, err := d.engine.HueMask(img, sealHueRanges)
		if err != nil {
			return SealDetection{}, err
		}
		if vision.CountNonZero(mask) >= d.thresholds.SealMinMaskPixels {
			source = mask
			filtered = true
		}
	}

	blurred, err := d.engine.MedianBlur(source, 5)
	if err != nil {
		return SealDetection{}, err
	}
	circles, err := d.engine.HoughCircles(blurred, sealCircleParams)
	if err != nil {
		return SealDetection{}, err
	}
	return SealDetection{Circles: circles, ColorFiltered: filtered}, nil
}

// Signature finds the largest edge contour in the lower half of the page
func (d *regionDetector) Signature(img image.Image) (SignatureRegion, error) {
	if vision.IsEmpty(img) {
		return SignatureRegion{}, vision.ErrEmptyImage
	}
	gray := vision.ToGray(img)
	bounds := gray.Bounds()
	whole := SignatureRegion{Box: bounds}

	top := int(float64(bounds.Dy()) * 0.5)
	lower := vision.Crop(gray, image.Rect(0, top, bounds.Dx(), bounds.Dy()))
	if vision.IsEmpty(lower) {
		return whole, nil
	}

	edges, err := d.engine.Canny(lower, 50, 150)
	if err != nil {
		return whole, err
	}
	contours, err := d.engine.ExternalContours(edges)
	if err != nil {
		return whole, err
	}
	if len(contours) == 0 {
		return whole, nil
	}

	largest := largestContour(contours)
	pad := d.thresholds.SignaturePad
	box := largest.Box.Add(image.Pt(0, top)).Inset(-pad).Intersect(bounds)
	if box.Empty() {
		return whole, nil
	}
	return SignatureRegion{Box: box, Found: true}, nil
}

// largestContour picks the contour with the greatest area; ties keep the first
func largestContour(contours []vision.Contour) vision.Contour {
	best := contours[0]
	for _, c := range contours[1:] {
		if c.Area > best.Area {
			best = c
		}
	}
	return best
}

// padBox grows r by fraction of its own size on every side, clipped to bounds
func padBox(r image.Rectangle, fraction float64, bounds image.Rectangle) image.Rectangle {
	padW := int(float64(r.Dx()) * fraction)
	padH := int(float64(r.Dy()) * fraction)
	return image.Rect(r.Min.X-padW, r.Min.Y-padH, r.Max.X+padW, r.Max.Y+padH).Intersect(bounds)
}

// padBoxUniform grows r by max(8, fraction of its larger side) on every side
func padBoxUniform(r image.Rectangle, fraction float64, bounds image.Rectangle) image.Rectangle {
	side := r.Dx()
	if r.Dy() > side {
		side = r.Dy()
	}
	pad := int(float64(side) * fraction)
	if pad < 8 {
		pad = 8
	}
	return r.Inset(-pad).Intersect(bounds)
}

// largestBox returns the rectangle with the greatest area
func largestBox(boxes []image.Rectangle) image.Rectangle {
	sorted := make([]image.Rectangle, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return area(sorted[i]) > area(sorted[j])
	})
	return sorted[0]
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// overlapFraction is the share of r covered by other
func overlapFraction(r, other image.Rectangle) float64 {
	a := area(r)
	if a <= 0 {
		a = 1
	}
	return float64(area(r.Intersect(other))) / float64(a)
}
