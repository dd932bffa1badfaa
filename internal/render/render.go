// Package render turns uploaded documents into page images at a fixed DPI.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	apperrors "go-doc-verifier/internal/errors"
	"go-doc-verifier/internal/imageio"
	"go-doc-verifier/internal/logger"

	"github.com/gen2brain/go-fitz"
	"github.com/nfnt/resize"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// DefaultDPI is the resolution pages are rendered at
const DefaultDPI = 150

// pointsPerInch is the PDF user-space unit
const pointsPerInch = 72.0

var (
	// ErrEmptyPDF is returned for a PDF with zero pages
	ErrEmptyPDF = errors.New("Empty PDF")

	pdfMagic = []byte("%PDF")
)

// Page is the first page of a document, rasterised
type Page struct {
	Image       image.Image
	ContentType string
	Pages       int
}

// Rasterizer converts document bytes into an image
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte) (image.Image, error)
	RasterizePage(ctx context.Context, data []byte) (Page, error)
}

type rasterizer struct {
	dpi  int
	conf *model.Configuration
}

// NewRasterizer creates a rasterizer rendering PDF pages at dpi
func NewRasterizer(dpi int) Rasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &rasterizer{dpi: dpi, conf: conf}
}

// IsPDF reports whether data starts with the PDF magic number
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func (r *rasterizer) Rasterize(ctx context.Context, data []byte) (image.Image, error) {
	page, err := r.RasterizePage(ctx, data)
	if err != nil {
		return nil, err
	}
	return page.Image, nil
}

// RasterizePage renders page one of a PDF, or decodes any other input as an image
func (r *rasterizer) RasterizePage(ctx context.Context, data []byte) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, apperrors.NewTimeoutError("Rendering cancelled", err)
	}
	if !IsPDF(data) {
		img, err := imageio.Decode(data)
		if err != nil {
			return Page{}, err
		}
		return Page{Image: img, ContentType: imageio.ContentType(data), Pages: 1}, nil
	}
	return r.renderPDF(data)
}

func (r *rasterizer) renderPDF(data []byte) (page Page, err error) {
	// pdfcpu panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			err = apperrors.NewRenderError("Unable to read PDF", fmt.Errorf("panic: %v", rec))
		}
	}()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), r.conf)
	if err != nil {
		return Page{}, apperrors.NewRenderError("Unable to read PDF", err)
	}
	if pdfCtx.PageCount == 0 {
		return Page{}, apperrors.NewRenderError(ErrEmptyPDF.Error(), ErrEmptyPDF)
	}

	dims, err := pdfCtx.PageDims()
	if err != nil || len(dims) == 0 {
		return Page{}, apperrors.NewRenderError("Unable to read page size", err)
	}

	img, err := r.renderFirstPage(data)
	if err != nil {
		return Page{}, apperrors.NewRenderError("Unable to render first page", err)
	}

	size := TargetSize(dims[0].Width, dims[0].Height, r.dpi)
	if size.X > 0 && size.Y > 0 && img.Bounds().Size() != size {
		img = resize.Resize(uint(size.X), uint(size.Y), img, resize.Lanczos3)
	}

	logger.WithFields(logrus.Fields{
		"pages":  pdfCtx.PageCount,
		"width":  size.X,
		"height": size.Y,
		"dpi":    r.dpi,
	}).Debug("Rendered PDF page")

	return Page{Image: img, ContentType: "application/pdf", Pages: pdfCtx.PageCount}, nil
}

// renderFirstPage draws page one with MuPDF, vector content included
func (r *rasterizer) renderFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrEmptyPDF
	}
	return doc.ImageDPI(0, float64(r.dpi))
}

// TargetSize converts a page size in points to pixels at dpi
func TargetSize(widthPt, heightPt float64, dpi int) image.Point {
	scale := float64(dpi) / pointsPerInch
	return image.Pt(int(math.Round(widthPt*scale)), int(math.Round(heightPt*scale)))
}
