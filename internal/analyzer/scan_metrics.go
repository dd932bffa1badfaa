package analyzer

import (
	"image"
	"sync"

	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/validation"

	"gonum.org/v1/gonum/stat"
)

// inkLevel is the gray value below which a pixel counts as printed
const inkLevel = 128

// scanMetricsCalculator implements ScanMetricsCalculator with pooled buffers
type scanMetricsCalculator struct {
	slicePool sync.Pool
}

// NewScanMetricsCalculator creates a calculator for input quality diagnostics
func NewScanMetricsCalculator() ScanMetricsCalculator {
	return &scanMetricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Calculate measures size, sharpness, exposure, contrast and ink coverage
func (c *scanMetricsCalculator) Calculate(img image.Image) validation.ScanMetrics {
	if vision.IsEmpty(img) {
		return validation.ScanMetrics{}
	}
	gray := vision.ToGray(img)
	size := vision.Size(gray)

	values := c.borrow(len(gray.Pix))
	defer c.slicePool.Put(values[:0])

	ink := 0
	for _, v := range gray.Pix {
		values = append(values, float64(v))
		if v < inkLevel {
			ink++
		}
	}
	mean, std := stat.MeanStdDev(values, nil)

	return validation.ScanMetrics{
		Width:      size.X,
		Height:     size.Y,
		Sharpness:  c.laplacianVariance(gray),
		Brightness: mean,
		Contrast:   std,
		InkRatio:   float64(ink) / float64(len(gray.Pix)),
	}
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response
func (c *scanMetricsCalculator) laplacianVariance(gray *image.Gray) float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	data := c.borrow((w - 2) * (h - 2))
	defer c.slicePool.Put(data[:0])

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < h-1; y++ {
		row := y * gray.Stride
		for x := 1; x < w-1; x++ {
			i := row + x
			center := float64(gray.Pix[i])
			top := float64(gray.Pix[i-gray.Stride])
			bottom := float64(gray.Pix[i+gray.Stride])
			left := float64(gray.Pix[i-1])
			right := float64(gray.Pix[i+1])
			data = append(data, top+bottom+left+right-4*center)
		}
	}

	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

func (c *scanMetricsCalculator) borrow(n int) []float64 {
	data := c.slicePool.Get().([]float64)
	if cap(data) < n {
		data = make([]float64, 0, n)
	}
	return data[:0]
}
