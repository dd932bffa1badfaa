// Package tesseract implements ocr.TextExtractor with gosseract
package tesseract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"go-doc-verifier/internal/logger"
	"go-doc-verifier/internal/ocr"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

// Extractor runs Tesseract on images. A fresh client is created per call
// since gosseract clients are not safe for concurrent use.
type Extractor struct {
	languages []string
}

var _ ocr.TextExtractor = (*Extractor)(nil)

// New creates an extractor for the given Tesseract languages, "eng" by default
func New(languages ...string) *Extractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Extractor{languages: languages}
}

// ExtractText returns the trimmed text Tesseract reads from img
func (e *Extractor) ExtractText(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load OCR image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("run OCR: %w", err)
	}

	text = strings.TrimSpace(text)
	logger.WithFields(logrus.Fields{
		"languages":  e.languages,
		"characters": len(text),
	}).Debug("OCR text extracted")

	return text, nil
}
