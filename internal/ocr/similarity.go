// Package ocr defines text extraction and the text comparison metrics used
// to check that a document's wording survived unchanged.
package ocr

import (
	"image"
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
)

// TextExtractor reads the text printed on an image
type TextExtractor interface {
	ExtractText(img image.Image) (string, error)
}

// TextSimilarity returns 1 - editDistance/maxLen over runes, in [0,1].
// Two empty strings are identical.
func TextSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}

// WordErrorRate is the word-level edit distance between reference and
// hypothesis divided by the number of reference words. An empty reference
// yields 0 for an empty hypothesis and 1 otherwise.
func WordErrorRate(reference, hypothesis string) float64 {
	ref := strings.Fields(reference)
	hyp := strings.Fields(hypothesis)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}

	// Map each distinct word to one rune so the character edit distance
	// counts whole-word insertions, deletions and substitutions.
	alphabet := make(map[string]rune)
	encode := func(words []string) string {
		var sb strings.Builder
		for _, w := range words {
			r, ok := alphabet[w]
			if !ok {
				r = rune(0xE000 + len(alphabet)) // private use area
				alphabet[w] = r
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}

	distance := levenshtein.Distance(encode(ref), encode(hyp))
	return float64(distance) / float64(len(ref))
}

// Normalize collapses whitespace so layout differences in OCR output do not
// count as text changes
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
