package vision

import (
	"errors"
	"image"
)

var (
	// ErrNoDescriptors is returned when either image yields no keypoint descriptors
	ErrNoDescriptors = errors.New("no keypoint descriptors")

	// ErrHomography is returned when a projective transform cannot be estimated
	ErrHomography = errors.New("homography estimation failed")

	// ErrEmptyImage is returned for nil or zero-sized inputs
	ErrEmptyImage = errors.New("empty image")

	// ErrDetectorUnavailable is returned when a trained detector could not be loaded
	ErrDetectorUnavailable = errors.New("detector unavailable")
)

// Point is a sub-pixel image coordinate
type Point struct {
	X, Y float64
}

// Match pairs a keypoint from the query image with one from the train image
type Match struct {
	Query    Point
	Train    Point
	Distance float64
}

// Homography is a row-major 3x3 projective transform
type Homography [9]float64

// Identity returns the identity transform
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Circle is a detected circle candidate
type Circle struct {
	X, Y, Radius int
}

// Contour summarises an extracted contour
type Contour struct {
	Box  image.Rectangle
	Area float64
}

// HueRange selects pixels in HSV space. Hue uses the 0-180 scale.
type HueRange struct {
	Low, High     float64
	MinSaturation float64
	MinValue      float64
}

// CircleParams configures the circle transform
type CircleParams struct {
	DP        float64
	MinDist   float64
	Param1    float64
	Param2    float64
	MinRadius int
	MaxRadius int
}

// FaceParams configures the cascade face detector
type FaceParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
}

// MorphOp selects a morphological operation
type MorphOp int

const (
	MorphOpen MorphOp = iota
	MorphClose
)

func (op MorphOp) String() string {
	switch op {
	case MorphOpen:
		return "open"
	case MorphClose:
		return "close"
	default:
		return "unknown"
	}
}
