package validation

import (
	"net/url"
	"strings"

	apperrors "go-doc-verifier/internal/errors"
)

// DocumentSchemes are the URL schemes the document fetchers understand
var DocumentSchemes = []string{"http", "https", "azblob", "local"}

// URLValidator handles URL validation logic
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts every document scheme and any host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: DocumentSchemes,
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateDocumentURL validates a document location. For azblob and local
// URLs the host is the container or the literal "files".
func (v *URLValidator) ValidateDocumentURL(documentURL string) error {
	if strings.TrimSpace(documentURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(documentURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if (parsedURL.Scheme == "azblob" || parsedURL.Scheme == "local") && strings.Trim(parsedURL.Path, "/") == "" {
		return apperrors.NewValidationError("URL must name a document", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
