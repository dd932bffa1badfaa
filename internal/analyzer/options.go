package analyzer

// Thresholds holds every numeric cutoff used by the decision policies
type Thresholds struct {
	// Alignment
	AlignMaxFeatures int
	AlignKeepMatches int
	AlignMinMatches  int
	AlignReprojError float64

	// Layout
	LayoutMinSSIM           float64
	LayoutMinRegionArea     int
	LayoutIgnoreOverlap     float64
	LayoutMinTextSimilarity float64
	LayoutCloseIterations   int

	// Photo
	PhotoMaxFeatures    int
	PhotoMatchDistance  float64
	PhotoMinMatchRatio  float64
	PhotoMinSSIM        float64
	PhotoMaxEdgeChange  float64
	PortraitPadFraction float64

	// Seal
	SealMaxFeatures    int
	SealGoodDistance   float64
	SealMinGoodMatches int
	SealMinGoodRatio   float64
	SealROIPadFraction float64
	SealMinMaskPixels  int

	// Signature
	SignatureMinSSIM       float64
	SignatureMaxDiffArea   float64
	SignatureDiffThreshold float64
	SignatureInkDensity    float64
	SignaturePad           int
}

// DefaultThresholds returns the production cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{
		AlignMaxFeatures: 2000,
		AlignKeepMatches: 200,
		AlignMinMatches:  8,
		AlignReprojError: 5.0,

		LayoutMinSSIM:           0.92,
		LayoutMinRegionArea:     500,
		LayoutIgnoreOverlap:     0.5,
		LayoutMinTextSimilarity: 0.85,
		LayoutCloseIterations:   2,

		PhotoMaxFeatures:    1000,
		PhotoMatchDistance:  50,
		PhotoMinMatchRatio:  0.12,
		PhotoMinSSIM:        0.75,
		PhotoMaxEdgeChange:  0.25,
		PortraitPadFraction: 0.3,

		SealMaxFeatures:    2000,
		SealGoodDistance:   40,
		SealMinGoodMatches: 10,
		SealMinGoodRatio:   0.04,
		SealROIPadFraction: 0.25,
		SealMinMaskPixels:  500,

		SignatureMinSSIM:       0.82,
		SignatureMaxDiffArea:   0.045,
		SignatureDiffThreshold: 200,
		SignatureInkDensity:    0.01,
		SignaturePad:           10,
	}
}

// Options configures a verification run. Analyzers read nothing from the
// environment; everything they need arrives here.
type Options struct {
	// DisableOCR skips the text similarity check in the layout analyzer
	DisableOCR bool

	// DebugOutputDir, when set, receives signature diff visualisations
	DebugOutputDir string

	// SealColorFilter restricts seal detection to red and blue ink
	SealColorFilter bool

	// Performance options
	Parallel   bool
	MaxWorkers int

	Thresholds Thresholds
}

// DefaultOptions returns default verification options
func DefaultOptions() Options {
	return Options{
		DisableOCR:      false,
		SealColorFilter: true,
		Parallel:        true,
		MaxWorkers:      4, // one per aspect
		Thresholds:      DefaultThresholds(),
	}
}

// WithoutOCR disables the OCR text check
func (opts Options) WithoutOCR() Options {
	opts.DisableOCR = true
	return opts
}

// WithDebugOutput enables signature debug images in dir
func (opts Options) WithDebugOutput(dir string) Options {
	opts.DebugOutputDir = dir
	return opts
}

// Sequential runs the four analyzers one after another
func (opts Options) Sequential() Options {
	opts.Parallel = false
	return opts
}

// WithoutSealColorFilter runs circle detection on plain grayscale
func (opts Options) WithoutSealColorFilter() Options {
	opts.SealColorFilter = false
	return opts
}

// WithThresholds replaces all numeric cutoffs
func (opts Options) WithThresholds(t Thresholds) Options {
	opts.Thresholds = t
	return opts
}
