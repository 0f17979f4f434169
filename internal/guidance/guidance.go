// Package guidance derives an extraction-difficulty assessment from a
// confirmed content structure. The mapping is a deterministic lookup, not
// a weighted model: reproducibility requires exact threshold equality.
package guidance

import (
	"fmt"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// MethodHTMLTableExtract is the direct-HTML path recommended for clear
// HTML tables; it is a recommendation label, not an ExtractionJob method.
const MethodHTMLTableExtract = "html_table_extract"

func qualityScore(quality string) int {
	switch quality {
	case "illegible", "poor":
		return 3
	case "faded":
		return 2
	case "clear":
		return 0
	default:
		return 1 // unknown quality is assumed mildly difficult
	}
}

func handwritingScore(kind string) int {
	switch kind {
	case "cursive":
		return 2
	case "handwritten":
		return 1
	default:
		return 0 // printed, typed, or unknown
	}
}

// Compute derives the difficulty score and recommended extraction method.
// Scan quality contributes 0-3, handwriting 0-2, partial view 0-1.
// Score >=5 is high, >=3 medium, else low.
func Compute(cs *model.ContentStructure, contentType string) *model.ExtractionGuidance {
	score := qualityScore(cs.ScanQuality) + handwritingScore(cs.HandwritingKind)
	if cs.PartialView {
		score++
	}

	g := &model.ExtractionGuidance{Score: score}
	switch {
	case score >= 5:
		g.Difficulty = "high"
		g.RecommendedMethod = string(model.MethodGuidedEntry)
		g.Rationale = fmt.Sprintf("difficulty score %d: guided manual entry recommended", score)
	case score >= 3:
		g.Difficulty = "medium"
		g.RecommendedMethod = string(model.MethodAutoOCR)
		g.RequiresReview = true
		g.Rationale = fmt.Sprintf("difficulty score %d: automatic OCR with mandatory human review", score)
	default:
		g.Difficulty = "low"
		if contentType == "html" {
			g.RecommendedMethod = MethodHTMLTableExtract
			g.Rationale = fmt.Sprintf("difficulty score %d: HTML source, direct table extraction", score)
		} else {
			g.RecommendedMethod = string(model.MethodAutoOCR)
			g.Rationale = fmt.Sprintf("difficulty score %d: automatic OCR", score)
		}
	}
	return g
}
