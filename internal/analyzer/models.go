package analyzer

import (
	"fmt"
	"image"

	"go-doc-verifier/pkg/models"
)

// AggregateResult is an alias to the shared models.AggregateResult
type AggregateResult = models.AggregateResult

var aspectLabels = map[models.ModelName]string{
	models.ModelLayout:    "Layout",
	models.ModelPhoto:     "Photo",
	models.ModelSeal:      "Seal",
	models.ModelSignature: "Signature",
}

func authentic(model models.ModelName, message string) models.Verdict {
	return models.Verdict{Model: model, Status: models.StatusAuthentic, Message: message}
}

func tampered(model models.ModelName, message string) models.Verdict {
	return models.Verdict{Model: model, Status: models.StatusTampered, Message: message}
}

// errorVerdict is the fail-closed verdict for an aspect that could not run
func errorVerdict(model models.ModelName, cause interface{}) models.Verdict {
	return tampered(model, fmt.Sprintf("%s verification error: %v", aspectLabels[model], cause))
}

// presence captures the parity outcome between original and upload
type presence struct {
	inOriginal bool
	inUploaded bool
}

// parityMessages are the per-aspect texts for the three short-circuit cases
type parityMessages struct {
	noneExpected string
	unexpected   string
	missing      string
}

// resolve returns a verdict and true when parity alone decides the outcome
func (p presence) resolve(model models.ModelName, msgs parityMessages) (models.Verdict, bool) {
	switch {
	case !p.inOriginal && !p.inUploaded:
		return authentic(model, msgs.noneExpected), true
	case !p.inOriginal && p.inUploaded:
		return tampered(model, msgs.unexpected), true
	case p.inOriginal && !p.inUploaded:
		return tampered(model, msgs.missing), true
	default:
		return models.Verdict{}, false
	}
}

func toBoxes(rects []image.Rectangle) []models.Box {
	boxes := make([]models.Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, models.BoxFromRect(r))
	}
	return boxes
}
