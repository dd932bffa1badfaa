package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	apperrors "go-doc-verifier/internal/errors"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, err := Decode(encodePNG(t, 32, 24))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(32, 24) {
		t.Errorf("Decoded size = %v", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, 16, 16)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Expected ErrDecode, got %v", err)
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
				t.Errorf("Expected decode AppError, got %v", err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	data := encodePNG(t, 4, 4)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("ReadFile() = %d bytes, %v", len(got), err)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.png"))
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not_found error, got %v", err)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType(encodePNG(t, 2, 2)); got != "image/png" {
		t.Errorf("ContentType() = %q", got)
	}
	if got := ContentType([]byte("%PDF-1.7\n")); got != "application/pdf" {
		t.Errorf("ContentType() = %q", got)
	}
}
