package validation

import "fmt"

// Issue severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// QualityThresholds defines configurable thresholds for scan quality checks
type QualityThresholds struct {
	// Sharpness (Laplacian variance)
	MinLaplacianVariance float64

	// Mean gray level, 0..255
	MinBrightness float64
	MaxBrightness float64

	// Gray standard deviation
	MinContrast float64

	// Share of dark pixels below which a page is considered blank
	MinInkRatio float64

	// Resolution
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds suit pages rendered or scanned at roughly 150 DPI
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 50.0,
		MinBrightness:        60.0,
		MaxBrightness:        252.0,
		MinContrast:          12.0,
		MinInkRatio:          0.002,
		MinWidth:             400,
		MinHeight:            400,
	}
}

// QualityValidator flags scans that are likely to produce unreliable verdicts
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ScanMetrics are the measurements a scan is judged on
type ScanMetrics struct {
	Width      int
	Height     int
	Sharpness  float64
	Brightness float64
	Contrast   float64
	InkRatio   float64
}

// ValidateScan reports every quality problem found in metrics. Issues are
// diagnostics; they never change a verification verdict.
func (qv *QualityValidator) ValidateScan(metrics ScanMetrics) []QualityIssue {
	var issues []QualityIssue
	th := qv.thresholds

	// 1. Resolution
	if metrics.Width < th.MinWidth || metrics.Height < th.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     fmt.Sprintf("Document is only %dx%d pixels. Scan at 150 DPI or more.", metrics.Width, metrics.Height),
			Severity:    SeverityError,
			ActualValue: float64(metrics.Width * metrics.Height),
			Threshold:   float64(th.MinWidth * th.MinHeight),
		})
	}

	// 2. Blank page
	if metrics.InkRatio < th.MinInkRatio {
		issues = append(issues, QualityIssue{
			Type:        "blank_page",
			Message:     "Document appears to be blank.",
			Severity:    SeverityError,
			ActualValue: metrics.InkRatio,
			Threshold:   th.MinInkRatio,
		})
	}

	// 3. Sharpness
	if metrics.Sharpness < th.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        "blurriness",
			Message:     "Document is blurry. Fine details such as signatures may not compare reliably.",
			Severity:    SeverityWarning,
			ActualValue: metrics.Sharpness,
			Threshold:   th.MinLaplacianVariance,
		})
	}

	// 4. Exposure
	if metrics.Brightness < th.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Document is too dark.",
			Severity:    SeverityWarning,
			ActualValue: metrics.Brightness,
			Threshold:   th.MinBrightness,
		})
	} else if metrics.Brightness > th.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "overexposure",
			Message:     "Document is overexposed.",
			Severity:    SeverityWarning,
			ActualValue: metrics.Brightness,
			Threshold:   th.MaxBrightness,
		})
	}

	// 5. Contrast
	if metrics.Contrast < th.MinContrast {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "Document has very little contrast.",
			Severity:    SeverityWarning,
			ActualValue: metrics.Contrast,
			Threshold:   th.MinContrast,
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
