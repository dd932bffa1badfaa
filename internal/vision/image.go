package vision

import (
	"image"
	"image/draw"
)

// ToGray converts img to an 8-bit grayscale copy anchored at the origin
func ToGray(img image.Image) *image.Gray {
	if img == nil {
		return image.NewGray(image.Rectangle{})
	}
	bounds := img.Bounds()
	if g, ok := img.(*image.Gray); ok && bounds.Min == (image.Point{}) && g.Stride == bounds.Dx() {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// Crop copies r out of gray. r is clipped to the image first.
func Crop(gray *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(gray.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), gray, r.Min, draw.Src)
	return out
}

// IsEmpty reports whether img has no pixels
func IsEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

// CountNonZero counts set pixels in a binary or grayscale image
func CountNonZero(gray *image.Gray) int {
	count := 0
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
	}
	return count
}

// Size returns the dimensions of img as a point
func Size(img image.Image) image.Point {
	return img.Bounds().Size()
}
