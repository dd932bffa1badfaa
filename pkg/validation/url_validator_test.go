package validation

import (
	"testing"

	apperrors "go-doc-verifier/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	if len(validator.allowedSchemes) != len(DocumentSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(DocumentSchemes), len(validator.allowedSchemes))
	}
	if len(validator.allowedHosts) != 0 {
		t.Errorf("Expected no host restrictions, got %v", validator.allowedHosts)
	}
}

func TestValidateDocumentURL_Valid(t *testing.T) {
	validator := NewURLValidator()

	validURLs := []string{
		"http://example.com/certificate.pdf",
		"https://example.com/scan.png",
		"https://subdomain.example.com/path/to/upload.jpg",
		"http://192.168.1.1/document.pdf",
		"azblob://certificates/2024/birth-0001.pdf",
		"local://files/original.png",
	}

	for _, u := range validURLs {
		if err := validator.ValidateDocumentURL(u); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", u, err)
		}
	}
}

func TestValidateDocumentURL_Invalid(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		name    string
		url     string
		message string
	}{
		{"empty", "", "URL cannot be empty"},
		{"whitespace", "   ", "URL cannot be empty"},
		{"malformed", "http://[::1", "Invalid URL format"},
		{"ftp scheme", "ftp://example.com/doc.pdf", "URL scheme not allowed"},
		{"file scheme", "file:///etc/passwd", "URL scheme not allowed"},
		{"no host", "http:///doc.pdf", "URL must have a valid host"},
		{"blob without name", "azblob://certificates", "URL must name a document"},
		{"local without name", "local://files/", "URL must name a document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDocumentURL(tt.url)
			if err == nil {
				t.Fatalf("Expected %q to fail validation", tt.url)
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", appErr.Message, tt.message)
			}
		})
	}
}

func TestValidateDocumentURL_HostRestriction(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, []string{"docs.example.com"})

	if err := validator.ValidateDocumentURL("https://docs.example.com/a.pdf"); err != nil {
		t.Errorf("Expected allowed host to pass, got %v", err)
	}
	if err := validator.ValidateDocumentURL("https://evil.example.com/a.pdf"); err == nil {
		t.Error("Expected other host to be rejected")
	}
	if err := validator.ValidateDocumentURL("http://docs.example.com/a.pdf"); err == nil {
		t.Error("Expected http to be rejected when only https is allowed")
	}
}
