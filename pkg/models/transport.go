package models

// VerifyURLsRequest asks the service to fetch both documents itself
type VerifyURLsRequest struct {
	OriginalURL string `json:"original_url" binding:"required"`
	UploadedURL string `json:"uploaded_url" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the liveness probe
type HealthResponse struct {
	Status string `json:"status"`
}

// VerificationResponse is the output contract plus request bookkeeping.
// Only the contract is serialised; the bookkeeping travels in headers.
type VerificationResponse struct {
	AggregateResult
	VerificationID    string  `json:"-"`
	ProcessingTimeSec float64 `json:"-"`

	Documents []DocumentSource `json:"-"`
}

// DocumentSource describes where a verified document came from
type DocumentSource struct {
	URL           string `json:"url,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength int64  `json:"content_length"`
	Pages         int    `json:"pages,omitempty"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`

	// InputWarnings are scan-quality diagnostics; they never change a verdict
	InputWarnings []string `json:"input_warnings,omitempty"`
}
