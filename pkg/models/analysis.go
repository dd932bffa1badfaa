package models

import "image"

// Status is the outcome of a single verification aspect
type Status string

const (
	StatusAuthentic Status = "authentic"
	StatusTampered  Status = "tampered"
)

// ModelName identifies which aspect produced a verdict
type ModelName string

const (
	ModelLayout    ModelName = "layout"
	ModelPhoto     ModelName = "photo"
	ModelSeal      ModelName = "seal"
	ModelSignature ModelName = "signature"
)

// Box is a bounding box serialised as [x, y, width, height]
type Box [4]int

// BoxFromRect converts an image rectangle into a Box
func BoxFromRect(r image.Rectangle) Box {
	return Box{r.Min.X, r.Min.Y, r.Dx(), r.Dy()}
}

// Rect converts the box back into an image rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b[0], b[1], b[0]+b[2], b[1]+b[3])
}

// Flag encodes a presence or success flag as 0 or 1
func Flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Verdict carries the fields every aspect reports
type Verdict struct {
	Model   ModelName `json:"model"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
}

// IsAuthentic reports whether the verdict passed
func (v Verdict) IsAuthentic() bool {
	return v.Status == StatusAuthentic
}

// LayoutVerdict compares the whole page against the template
type LayoutVerdict struct {
	Verdict
	SSIMScore         float64  `json:"ssim_score"`
	Aligned           int      `json:"aligned"`
	MatchCount        int      `json:"match_count"`
	AlignmentReason   string   `json:"alignment_reason"`
	TamperedRegions   []Box    `json:"tampered_regions"`
	IgnoredRegions    []Box    `json:"ignored_regions"`
	OCRTextSimilarity *float64 `json:"ocr_text_similarity"`
	OCRWordErrorRate  *float64 `json:"ocr_word_error_rate"`
}

// PhotoVerdict compares the embedded portrait
type PhotoVerdict struct {
	Verdict
	PresentInOriginal int     `json:"photo_present_in_original"`
	PresentInUploaded int     `json:"photo_present_in_uploaded"`
	NumInUploaded     int     `json:"num_photos_in_uploaded"`
	Matched           int     `json:"matched"`
	Similarity        float64 `json:"similarity"`
	SSIM              float64 `json:"ssim"`
	EdgeChange        float64 `json:"edge_change"`
}

// SealVerdict compares the stamp or seal
type SealVerdict struct {
	Verdict
	PresentInOriginal int  `json:"seal_present_in_original"`
	PresentInUploaded int  `json:"seal_present_in_uploaded"`
	Aligned           int  `json:"aligned"`
	ColorFiltered     int  `json:"color_filtered"`
	Matched           int  `json:"matched"`
	TotalMatches      int  `json:"total_matches"`
	GoodMatches       int  `json:"good_matches"`
	ROI               *Box `json:"roi"`
}

// SignatureVerdict compares the handwritten signature
type SignatureVerdict struct {
	Verdict
	PresentInOriginal int     `json:"signature_present_in_original"`
	PresentInUploaded int     `json:"signature_present_in_uploaded"`
	Matched           int     `json:"matched"`
	SSIM              float64 `json:"ssim"`
	DiffAreaRatio     float64 `json:"diff_area_ratio"`
	DiffContours      int     `json:"diff_contours"`
	DebugImage        string  `json:"debug_image,omitempty"`
}

// AggregateResult is the output contract of a verification run
type AggregateResult struct {
	Layout        LayoutVerdict    `json:"layout"`
	Photo         PhotoVerdict     `json:"photo"`
	Seal          SealVerdict      `json:"seal"`
	Signature     SignatureVerdict `json:"signature"`
	OverallStatus Status           `json:"overall_status"`
}

// Statuses returns the four aspect statuses in a fixed order
func (r AggregateResult) Statuses() []Status {
	return []Status{r.Layout.Status, r.Photo.Status, r.Seal.Status, r.Signature.Status}
}

// OverallStatus is authentic only when every given status is authentic.
// An empty list is tampered: nothing was confirmed.
func OverallStatus(statuses ...Status) Status {
	if len(statuses) == 0 {
		return StatusTampered
	}
	for _, s := range statuses {
		if s != StatusAuthentic {
			return StatusTampered
		}
	}
	return StatusAuthentic
}
