package vision

import "image"

// FeatureMatcher finds corresponding keypoints between two grayscale images
type FeatureMatcher interface {
	// MatchFeatures detects up to maxFeatures keypoints per image and matches
	// their descriptors with mutual nearest-neighbour consistency.
	MatchFeatures(query, train *image.Gray, maxFeatures int) ([]Match, error)
}

// GeometryEstimator estimates and applies projective transforms
type GeometryEstimator interface {
	FindHomography(src, dst []Point, reprojThreshold float64) (Homography, error)
	WarpPerspective(img image.Image, h Homography, size image.Point) (image.Image, error)
}

// EdgeExtractor covers edge maps, binarisation, morphology and contours
type EdgeExtractor interface {
	Canny(gray *image.Gray, low, high float64) (*image.Gray, error)
	OtsuThreshold(gray *image.Gray) (*image.Gray, error)
	Threshold(gray *image.Gray, thresh float64) (*image.Gray, error)
	Morph(bin *image.Gray, op MorphOp, kernelSize, iterations int) (*image.Gray, error)
	ExternalContours(bin *image.Gray) ([]Contour, error)
}

// ShapeDetector locates circles and faces
type ShapeDetector interface {
	HueMask(img image.Image, ranges []HueRange) (*image.Gray, error)
	MedianBlur(gray *image.Gray, ksize int) (*image.Gray, error)
	HoughCircles(gray *image.Gray, params CircleParams) ([]Circle, error)
	DetectFaces(gray *image.Gray, params FaceParams) ([]image.Rectangle, error)
}

// Engine is the full set of vision primitives the verifier depends on
type Engine interface {
	FeatureMatcher
	GeometryEstimator
	EdgeExtractor
	ShapeDetector

	Resize(gray *image.Gray, size image.Point) (*image.Gray, error)
	Close() error
}
