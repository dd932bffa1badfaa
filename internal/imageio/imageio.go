// Package imageio decodes uploaded scans into images.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"

	apperrors "go-doc-verifier/internal/errors"

	"github.com/sunshineplan/imgconv"
)

// ErrDecode marks input that is empty or not a supported image format
var ErrDecode = errors.New("unable to decode image")

// Decode reads png, jpeg, gif, bmp, tiff or webp bytes
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecodeError("Empty image", ErrDecode)
	}
	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError("Unable to decode image", fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if img.Bounds().Empty() {
		return nil, apperrors.NewDecodeError("Image has no pixels", ErrDecode)
	}
	return img, nil
}

// ReadFile loads a file from disk without interpreting it
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("File not found: %s", path), err)
		}
		return nil, apperrors.NewValidationError(fmt.Sprintf("Unable to read %s", path), err)
	}
	return data, nil
}

// ContentType sniffs the MIME type of data
func ContentType(data []byte) string {
	return http.DetectContentType(data)
}
