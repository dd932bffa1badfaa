package gocvengine

import (
	"fmt"
	"image"

	"go-doc-verifier/internal/vision"

	"gocv.io/x/gocv"
)

// grayMat copies a grayscale image into a single-channel Mat. Caller closes.
func grayMat(gray *image.Gray) (gocv.Mat, error) {
	if gray == nil || gray.Bounds().Empty() {
		return gocv.NewMat(), vision.ErrEmptyImage
	}
	// ImageGrayToMatGray expects a tightly packed buffer anchored at the origin
	return gocv.ImageGrayToMatGray(vision.ToGray(gray))
}

// colorMat copies any image into a BGR Mat. Caller closes.
func colorMat(img image.Image) (gocv.Mat, error) {
	if vision.IsEmpty(img) {
		return gocv.NewMat(), vision.ErrEmptyImage
	}
	return gocv.ImageToMatRGB(img)
}

// matGray converts a single-channel Mat back into an image.Gray
func matGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, vision.ErrEmptyImage
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mat: %w", err)
	}
	return vision.ToGray(img), nil
}

// pointsMat packs points into an Nx1 two-channel float64 Mat. Caller closes.
func pointsMat(points []vision.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(points), 1, gocv.MatTypeCV64FC2)
	for i, p := range points {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}

// homographyMat packs a transform into a 3x3 float64 Mat. Caller closes.
func homographyMat(h vision.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r*3+c])
		}
	}
	return m
}
