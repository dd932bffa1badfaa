// Package gocvengine implements vision.Engine on top of OpenCV through gocv.
package gocvengine

import (
	"fmt"
	"image"
	"sync"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/vision"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Engine is safe for concurrent use. Every call allocates its own Mats; only
// the cascade classifier is shared and it is guarded by a mutex.
type Engine struct {
	cascadeMu     sync.Mutex
	cascade       gocv.CascadeClassifier
	cascadeLoaded bool
	cascadePath   string
}

var _ vision.Engine = (*Engine)(nil)

// New creates an engine. A missing cascade file is not fatal: face detection
// then reports vision.ErrDetectorUnavailable.
func New(cascadePath string) *Engine {
	e := &Engine{
		cascade:     gocv.NewCascadeClassifier(),
		cascadePath: cascadePath,
	}
	if cascadePath != "" {
		e.cascadeLoaded = e.cascade.Load(cascadePath)
	}
	if !e.cascadeLoaded {
		logger.WithField("cascade_path", cascadePath).Warn("Face cascade not loaded; portrait detection disabled")
	}
	return e
}

// Close releases the cascade classifier
func (e *Engine) Close() error {
	e.cascadeMu.Lock()
	defer e.cascadeMu.Unlock()
	return e.cascade.Close()
}

// MatchFeatures runs ORB on both images and cross-checked Hamming matching
func (e *Engine) MatchFeatures(query, train *image.Gray, maxFeatures int) ([]vision.Match, error) {
	qm, err := grayMat(query)
	defer qm.Close()
	if err != nil {
		return nil, err
	}
	tm, err := grayMat(train)
	defer tm.Close()
	if err != nil {
		return nil, err
	}

	orb := gocv.NewORBWithParams(maxFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	qKeys, qDesc := orb.DetectAndCompute(qm, mask)
	defer qDesc.Close()
	tKeys, tDesc := orb.DetectAndCompute(tm, mask)
	defer tDesc.Close()

	if qDesc.Empty() || tDesc.Empty() || len(qKeys) == 0 || len(tKeys) == 0 {
		return nil, vision.ErrNoDescriptors
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	raw := matcher.Match(qDesc, tDesc)
	matches := make([]vision.Match, 0, len(raw))
	for _, m := range raw {
		if m.QueryIdx < 0 || m.QueryIdx >= len(qKeys) || m.TrainIdx < 0 || m.TrainIdx >= len(tKeys) {
			continue
		}
		q, t := qKeys[m.QueryIdx], tKeys[m.TrainIdx]
		matches = append(matches, vision.Match{
			Query:    vision.Point{X: q.X, Y: q.Y},
			Train:    vision.Point{X: t.X, Y: t.Y},
			Distance: m.Distance,
		})
	}

	logger.WithFields(logrus.Fields{
		"query_keypoints": len(qKeys),
		"train_keypoints": len(tKeys),
		"matches":         len(matches),
	}).Debug("Matched ORB descriptors")

	return matches, nil
}

// FindHomography estimates src->dst with RANSAC. OpenCV seeds its sampler
// with a fixed value, so repeated calls on the same input agree.
func (e *Engine) FindHomography(src, dst []vision.Point, reprojThreshold float64) (vision.Homography, error) {
	if len(src) < 4 || len(src) != len(dst) {
		return vision.Homography{}, vision.ErrHomography
	}

	srcMat := pointsMat(src)
	defer srcMat.Close()
	dstMat := pointsMat(dst)
	defer dstMat.Close()
	inliers := gocv.NewMat()
	defer inliers.Close()

	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomograpyMethodRANSAC, reprojThreshold, &inliers, 2000, 0.995)
	defer h.Close()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return vision.Homography{}, vision.ErrHomography
	}

	var out vision.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	return out, nil
}

// WarpPerspective maps img through h into a canvas of the given size
func (e *Engine) WarpPerspective(img image.Image, h vision.Homography, size image.Point) (image.Image, error) {
	src, err := colorMat(img)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	hm := homographyMat(h)
	defer hm.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspective(src, &dst, hm, size)
	if dst.Empty() {
		return nil, fmt.Errorf("warp produced an empty image")
	}
	return dst.ToImage()
}

// Canny returns the binary edge map of gray
func (e *Engine) Canny(gray *image.Gray, low, high float64) (*image.Gray, error) {
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, float32(low), float32(high))
	return matGray(edges)
}

// OtsuThreshold binarises gray with an automatically chosen cutoff
func (e *Engine) OtsuThreshold(gray *image.Gray) (*image.Gray, error) {
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return matGray(dst)
}

// Threshold sets pixels above thresh to 255 and the rest to 0
func (e *Engine) Threshold(gray *image.Gray, thresh float64) (*image.Gray, error) {
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, float32(thresh), 255, gocv.ThresholdBinary)
	return matGray(dst)
}

// Morph applies opening or closing with a square kernel. Iterations follow
// OpenCV semantics: all dilations (or erosions) first, then the inverse.
func (e *Engine) Morph(bin *image.Gray, op vision.MorphOp, kernelSize, iterations int) (*image.Gray, error) {
	src, err := grayMat(bin)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	if iterations < 1 {
		iterations = 1
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	cur := src.Clone()
	defer func() { cur.Close() }()

	step := func(dilate bool) {
		next := gocv.NewMat()
		if dilate {
			gocv.Dilate(cur, &next, kernel)
		} else {
			gocv.Erode(cur, &next, kernel)
		}
		cur.Close()
		cur = next
	}
	closing := op == vision.MorphClose
	for i := 0; i < iterations; i++ {
		step(closing)
	}
	for i := 0; i < iterations; i++ {
		step(!closing)
	}
	return matGray(cur)
}

// ExternalContours returns the outer contours of a binary image
func (e *Engine) ExternalContours(bin *image.Gray) ([]vision.Contour, error) {
	src, err := grayMat(bin)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	found := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]vision.Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		c := found.At(i)
		contours = append(contours, vision.Contour{
			Box:  gocv.BoundingRect(c),
			Area: gocv.ContourArea(c),
		})
	}
	return contours, nil
}

// HueMask keeps pixels whose HSV value falls in any of the given ranges
func (e *Engine) HueMask(img image.Image, ranges []vision.HueRange) (*image.Gray, error) {
	src, err := colorMat(img)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	for i, r := range ranges {
		part := gocv.NewMat()
		gocv.InRangeWithScalar(hsv,
			gocv.NewScalar(r.Low, r.MinSaturation, r.MinValue, 0),
			gocv.NewScalar(r.High, 255, 255, 0),
			&part)
		if i == 0 {
			part.CopyTo(&mask)
		} else {
			gocv.BitwiseOr(mask, part, &mask)
		}
		part.Close()
	}
	if mask.Empty() {
		return image.NewGray(image.Rect(0, 0, src.Cols(), src.Rows())), nil
	}
	return matGray(mask)
}

// MedianBlur smooths gray with an odd aperture
func (e *Engine) MedianBlur(gray *image.Gray, ksize int) (*image.Gray, error) {
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MedianBlur(src, &dst, ksize)
	return matGray(dst)
}

// HoughCircles runs the gradient circle transform
func (e *Engine) HoughCircles(gray *image.Gray, params vision.CircleParams) ([]vision.Circle, error) {
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	found := gocv.NewMat()
	defer found.Close()
	gocv.HoughCirclesWithParams(src, &found, gocv.HoughGradient,
		params.DP, params.MinDist, params.Param1, params.Param2,
		params.MinRadius, params.MaxRadius)

	circles := make([]vision.Circle, 0, found.Cols())
	for i := 0; i < found.Cols(); i++ {
		v := found.GetVecfAt(0, i)
		if len(v) < 3 {
			continue
		}
		circles = append(circles, vision.Circle{
			X:      int(v[0] + 0.5),
			Y:      int(v[1] + 0.5),
			Radius: int(v[2] + 0.5),
		})
	}
	return circles, nil
}

// DetectFaces runs the frontal-face cascade
func (e *Engine) DetectFaces(gray *image.Gray, params vision.FaceParams) ([]image.Rectangle, error) {
	if !e.cascadeLoaded {
		return nil, fmt.Errorf("%w: cascade %q not loaded", vision.ErrDetectorUnavailable, e.cascadePath)
	}
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}

	e.cascadeMu.Lock()
	defer e.cascadeMu.Unlock()
	return e.cascade.DetectMultiScaleWithParams(src, params.ScaleFactor, params.MinNeighbors, 0, params.MinSize, image.Point{}), nil
}

// Resize scales gray to size with bilinear interpolation
func (e *Engine) Resize(gray *image.Gray, size image.Point) (*image.Gray, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, vision.ErrEmptyImage
	}
	if gray.Bounds().Size() == size {
		return vision.ToGray(gray), nil
	}
	src, err := grayMat(gray)
	defer src.Close()
	if err != nil {
		return nil, err
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, size, 0, 0, gocv.InterpolationLinear)
	return matGray(dst)
}
