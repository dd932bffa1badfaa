package analyzer

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go-doc-verifier/internal/vision"
	"go-doc-verifier/pkg/models"
)

func TestPresence_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		p           presence
		wantDone    bool
		wantStatus  models.Status
		wantMessage string
	}{
		{"absent in both", presence{}, true, models.StatusAuthentic, photoParity.noneExpected},
		{"unexpected", presence{inUploaded: true}, true, models.StatusTampered, photoParity.unexpected},
		{"missing", presence{inOriginal: true}, true, models.StatusTampered, photoParity.missing},
		{"present in both", presence{inOriginal: true, inUploaded: true}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, done := tt.p.resolve(models.ModelPhoto, photoParity)
			if done != tt.wantDone {
				t.Fatalf("done = %v, want %v", done, tt.wantDone)
			}
			if !done {
				return
			}
			if v.Status != tt.wantStatus || v.Message != tt.wantMessage || v.Model != models.ModelPhoto {
				t.Errorf("resolve() = %+v", v)
			}
		})
	}
}

func TestDecidePhoto(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name        string
		signals     photoSignals
		wantMatched bool
		wantMessage string
	}{
		{
			name:        "consistent",
			signals:     photoSignals{matchRatio: 0.5, ssim: 0.9, edgeChange: 0.1},
			wantMatched: true,
			wantMessage: "Photo region appears consistent with original",
		},
		{
			name:        "at every boundary",
			signals:     photoSignals{matchRatio: 0.12, ssim: 0.75, edgeChange: 0.25},
			wantMatched: true,
			wantMessage: "Photo region appears consistent with original",
		},
		{
			name:        "low match ratio",
			signals:     photoSignals{matchRatio: 0.05, ssim: 0.9, edgeChange: 0.1},
			wantMessage: "Photo region differs from original (low ORB match 0.05)",
		},
		{
			name:        "all signals fail",
			signals:     photoSignals{matchRatio: 0, ssim: 0.4, edgeChange: 0.6},
			wantMessage: "Photo region differs from original (low ORB match 0.00, low SSIM 0.40, excess edge change 0.60)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, message := decidePhoto(tt.signals, th)
			if matched != tt.wantMatched || message != tt.wantMessage {
				t.Errorf("decidePhoto() = %v, %q; want %v, %q", matched, message, tt.wantMatched, tt.wantMessage)
			}
		})
	}
}

func TestPhotoAnalyzer_Verify(t *testing.T) {
	replaced := testDocument()
	drawPortrait(replaced, 1)
	noPortrait := testDocument()
	fill(noPortrait, portraitFrame, 255)

	tests := []struct {
		name        string
		original    *image.Gray
		uploaded    *image.Gray
		wantStatus  models.Status
		wantMessage string
	}{
		{"identical", testDocument(), testDocument(), models.StatusAuthentic, "Photo region appears consistent with original"},
		{"missing", testDocument(), noPortrait, models.StatusTampered, photoParity.missing},
		{"unexpected", noPortrait, testDocument(), models.StatusTampered, photoParity.unexpected},
		{"none expected", noPortrait, noPortrait, models.StatusAuthentic, photoParity.noneExpected},
		{"replaced", testDocument(), replaced, models.StatusTampered, "Photo region differs from original (low ORB match 0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewPhotoAnalyzer(newFakeEngine(), DefaultOptions()).Verify(tt.original, tt.uploaded)
			if v.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v (%s)", v.Status, tt.wantStatus, v.Message)
			}
			if !strings.HasPrefix(v.Message, tt.wantMessage) {
				t.Errorf("message = %q, want prefix %q", v.Message, tt.wantMessage)
			}
		})
	}
}

func TestSignatureAnalyzer_ForgeryWithinSameRegion(t *testing.T) {
	original := testDocument()
	forged := testDocument()
	// erase the right half of the strokes, keeping the last column so the
	// located box does not move
	r := signatureArea
	mid := (r.Min.X + r.Max.X) / 2
	fill(forged, image.Rect(mid, r.Min.Y, r.Max.X-2, r.Max.Y), 255)

	detector := NewRegionDetector(newFakeEngine(), DefaultThresholds())
	a, errA := detector.Signature(original)
	b, errB := detector.Signature(forged)
	if errA != nil || errB != nil {
		t.Fatalf("Signature() errors: %v, %v", errA, errB)
	}
	if a.Box != b.Box {
		t.Fatalf("Regions differ: %v vs %v", a.Box, b.Box)
	}

	v := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions()).Verify(original, forged)
	if v.Status != models.StatusTampered {
		t.Fatalf("status = %v (%s), want tampered", v.Status, v.Message)
	}
	if !strings.Contains(v.Message, "SSIM") || !strings.Contains(v.Message, "diff area") {
		t.Errorf("message = %q, want both metrics", v.Message)
	}
	if v.DiffAreaRatio <= DefaultThresholds().SignatureMaxDiffArea || v.DiffContours == 0 {
		t.Errorf("DiffAreaRatio = %v, DiffContours = %d", v.DiffAreaRatio, v.DiffContours)
	}
}

func TestPhotoAnalyzer_Metrics(t *testing.T) {
	v := NewPhotoAnalyzer(newFakeEngine(), DefaultOptions()).Verify(testDocument(), testDocument())

	if v.PresentInOriginal != 1 || v.PresentInUploaded != 1 || v.NumInUploaded != 1 {
		t.Errorf("presence = %d/%d (%d)", v.PresentInOriginal, v.PresentInUploaded, v.NumInUploaded)
	}
	if v.Matched != 1 || v.Similarity != 1 || v.EdgeChange != 0 {
		t.Errorf("metrics = matched %d similarity %v edge %v", v.Matched, v.Similarity, v.EdgeChange)
	}
}

func TestPhotoAnalyzer_DetectorUnavailable(t *testing.T) {
	engine := newFakeEngine()
	engine.facesErr = vision.ErrDetectorUnavailable

	v := NewPhotoAnalyzer(engine, DefaultOptions()).Verify(testDocument(), testDocument())
	if v.Status != models.StatusTampered {
		t.Fatalf("Expected fail closed, got %v", v.Status)
	}
	if !strings.HasPrefix(v.Message, "Photo verification error: ") {
		t.Errorf("Unexpected message %q", v.Message)
	}
}

func TestRequiredGoodMatches(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		total, want int
	}{
		{0, 10},
		{100, 10},
		{250, 10},
		{500, 20},
		{1000, 40},
	}
	for _, tt := range tests {
		if got := requiredGoodMatches(tt.total, th); got != tt.want {
			t.Errorf("requiredGoodMatches(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestSealAnalyzer_Verify(t *testing.T) {
	painted := testDocument()
	paintOverSeal(painted)
	noSeal := testDocument()
	paintOverSeal(noSeal)

	tests := []struct {
		name        string
		original    *image.Gray
		uploaded    *image.Gray
		wantStatus  models.Status
		wantMessage string
	}{
		{"identical", testDocument(), testDocument(), models.StatusAuthentic, "Seal appears consistent with original"},
		{"painted over", testDocument(), painted, models.StatusTampered, sealParity.missing},
		{"unexpected", noSeal, testDocument(), models.StatusTampered, sealParity.unexpected},
		{"none expected", noSeal, noSeal, models.StatusAuthentic, sealParity.noneExpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSealAnalyzer(newFakeEngine(), DefaultOptions()).Verify(tt.original, tt.uploaded)
			if v.Status != tt.wantStatus || v.Message != tt.wantMessage {
				t.Errorf("Verify() = %v %q, want %v %q", v.Status, v.Message, tt.wantStatus, tt.wantMessage)
			}
		})
	}
}

func TestSealAnalyzer_Metrics(t *testing.T) {
	v := NewSealAnalyzer(newFakeEngine(), DefaultOptions()).Verify(testDocument(), testDocument())

	if v.Aligned != 1 || v.Matched != 1 || v.ColorFiltered != 0 {
		t.Errorf("flags = aligned %d matched %d filtered %d", v.Aligned, v.Matched, v.ColorFiltered)
	}
	if v.TotalMatches != 50 || v.GoodMatches != 50 {
		t.Errorf("matches = %d good of %d", v.GoodMatches, v.TotalMatches)
	}
	want := models.Box{142, 62, 16, 16}
	if v.ROI == nil || *v.ROI != want {
		t.Errorf("ROI = %v, want %v", v.ROI, want)
	}
}

func TestSealAnalyzer_TooFewGoodMatches(t *testing.T) {
	engine := newFakeEngine()
	engine.matchFn = func(q, t *image.Gray) ([]vision.Match, error) {
		return gridMatches(50, 45), nil
	}

	v := NewSealAnalyzer(engine, DefaultOptions()).Verify(testDocument(), testDocument())
	want := "Seal differs from the original (0 good matches of 50, need 10)"
	if v.Status != models.StatusTampered || v.Message != want {
		t.Errorf("Verify() = %v %q, want %q", v.Status, v.Message, want)
	}
}

func TestSealAnalyzer_NoDescriptors(t *testing.T) {
	engine := newFakeEngine()
	calls := 0
	engine.matchFn = func(q, t *image.Gray) ([]vision.Match, error) {
		calls++
		if calls == 1 {
			return gridMatches(50, 0), nil
		}
		return nil, vision.ErrNoDescriptors
	}

	v := NewSealAnalyzer(engine, DefaultOptions()).Verify(testDocument(), testDocument())
	if v.Message != "Unable to compute descriptors for seal comparison" {
		t.Errorf("Unexpected message %q", v.Message)
	}
}

func TestDecideSignature(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		ssim, diffArea float64
		want           bool
	}{
		{0.95, 0.01, true},
		{0.82, 0.045, true},
		{0.81, 0.01, false},
		{0.95, 0.05, false},
	}
	for _, tt := range tests {
		got, message := decideSignature(tt.ssim, tt.diffArea, th)
		if got != tt.want {
			t.Errorf("decideSignature(%v, %v) = %v (%s)", tt.ssim, tt.diffArea, got, message)
		}
	}
}

func TestSignatureAnalyzer_Verify(t *testing.T) {
	// Same outer strokes, so the located region is identical, but the
	// interior is redrawn as horizontal lines
	forged := testDocument()
	r := signatureArea
	fill(forged, image.Rect(r.Min.X+1, r.Min.Y, r.Max.X-2, r.Max.Y), 255)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X + 1; x < r.Max.X-2; x++ {
			if y%3 == 0 {
				forged.Pix[forged.PixOffset(x, y)] = 0
			}
		}
	}
	// a page without any ink falls back to the whole page, which stays blank
	unsigned := blankDocument()

	tests := []struct {
		name        string
		original    *image.Gray
		uploaded    *image.Gray
		wantStatus  models.Status
		wantMessage string
	}{
		{"identical", testDocument(), testDocument(), models.StatusAuthentic, "Signature matches the original"},
		{"forged strokes", testDocument(), forged, models.StatusTampered, "Signature differs from the original (SSIM "},
		{"missing", testDocument(), unsigned, models.StatusTampered, signatureParity.missing},
		{"unexpected", unsigned, testDocument(), models.StatusTampered, signatureParity.unexpected},
		{"none expected", unsigned, unsigned, models.StatusAuthentic, signatureParity.noneExpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions()).Verify(tt.original, tt.uploaded)
			if v.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v (%s)", v.Status, tt.wantStatus, v.Message)
			}
			if !strings.HasPrefix(v.Message, tt.wantMessage) {
				t.Errorf("message = %q, want prefix %q", v.Message, tt.wantMessage)
			}
		})
	}
}

func TestSignatureAnalyzer_DebugImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")

	v := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions().WithDebugOutput(dir)).Verify(testDocument(), testDocument())
	if v.DebugImage == "" {
		t.Fatal("Expected a debug image path")
	}
	if filepath.Dir(v.DebugImage) != dir {
		t.Errorf("Debug image %q not under %q", v.DebugImage, dir)
	}
	if _, err := os.Stat(v.DebugImage); err != nil {
		t.Errorf("Debug image not written: %v", err)
	}

	again := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions().WithDebugOutput(dir)).Verify(testDocument(), testDocument())
	if again.DebugImage != v.DebugImage {
		t.Errorf("Expected stable debug file name, got %q and %q", v.DebugImage, again.DebugImage)
	}
}

func TestSignatureAnalyzer_ConcurrentDebugWrites(t *testing.T) {
	dir := t.TempDir()
	sig := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions().WithDebugOutput(dir))

	const writers = 8
	paths := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i] = sig.Verify(testDocument(), testDocument()).DebugImage
		}(i)
	}
	wg.Wait()

	for _, p := range paths {
		if p != paths[0] || p == "" {
			t.Fatalf("Expected one shared debug path, got %v", paths)
		}
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("Debug image is not a complete PNG: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the debug image in %s, found %d entries", dir, len(entries))
	}
}

func TestSignatureAnalyzer_NoDebugByDefault(t *testing.T) {
	v := NewSignatureAnalyzer(newFakeEngine(), DefaultOptions()).Verify(testDocument(), testDocument())
	if v.DebugImage != "" {
		t.Errorf("Expected no debug image, got %q", v.DebugImage)
	}
}

func TestErrorVerdict(t *testing.T) {
	v := errorVerdict(models.ModelSeal, errors.New("boom"))
	if v.Status != models.StatusTampered || v.Message != "Seal verification error: boom" {
		t.Errorf("errorVerdict() = %+v", v)
	}
}
