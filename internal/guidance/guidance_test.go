package guidance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

func TestCompute_HighDifficulty(t *testing.T) {
	// poor(3) + cursive(2) + partial(1) = 6
	cs := &model.ContentStructure{
		ScanQuality:     "poor",
		HandwritingKind: "cursive",
		PartialView:     true,
	}
	g := Compute(cs, "")

	assert.Equal(t, 6, g.Score)
	assert.Equal(t, "high", g.Difficulty)
	assert.Equal(t, string(model.MethodGuidedEntry), g.RecommendedMethod)
}

func TestCompute_MediumRequiresReview(t *testing.T) {
	// faded(2) + handwritten(1) = 3
	cs := &model.ContentStructure{
		ScanQuality:     "faded",
		HandwritingKind: "handwritten",
	}
	g := Compute(cs, "pdf")

	assert.Equal(t, 3, g.Score)
	assert.Equal(t, "medium", g.Difficulty)
	assert.Equal(t, string(model.MethodAutoOCR), g.RecommendedMethod)
	assert.True(t, g.RequiresReview)
}

func TestCompute_LowHTMLUsesDirectExtraction(t *testing.T) {
	cs := &model.ContentStructure{
		ScanQuality:     "clear",
		HandwritingKind: "printed",
	}
	g := Compute(cs, "html")

	assert.Equal(t, 0, g.Score)
	assert.Equal(t, "low", g.Difficulty)
	assert.Equal(t, MethodHTMLTableExtract, g.RecommendedMethod)
	assert.False(t, g.RequiresReview)
}

func TestCompute_LowNonHTMLUsesOCR(t *testing.T) {
	cs := &model.ContentStructure{
		ScanQuality:     "clear",
		HandwritingKind: "typed",
	}
	g := Compute(cs, "pdf")

	assert.Equal(t, "low", g.Difficulty)
	assert.Equal(t, string(model.MethodAutoOCR), g.RecommendedMethod)
}

func TestCompute_UnknownQualityScoresOne(t *testing.T) {
	g := Compute(&model.ContentStructure{}, "")
	assert.Equal(t, 1, g.Score)
	assert.Equal(t, "low", g.Difficulty)
}

func TestCompute_Deterministic(t *testing.T) {
	cs := &model.ContentStructure{
		ScanQuality:     "illegible",
		HandwritingKind: "cursive",
	}
	first := Compute(cs, "pdf")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(cs, "pdf"))
	}
}

func TestCompute_BoundaryScores(t *testing.T) {
	tests := []struct {
		name       string
		cs         model.ContentStructure
		score      int
		difficulty string
	}{
		{"score 2 is low", model.ContentStructure{ScanQuality: "faded"}, 2, "low"},
		{"score 3 is medium", model.ContentStructure{ScanQuality: "faded", PartialView: true}, 3, "medium"},
		{"score 4 is medium", model.ContentStructure{ScanQuality: "illegible", HandwritingKind: "handwritten"}, 4, "medium"},
		{"score 5 is high", model.ContentStructure{ScanQuality: "illegible", HandwritingKind: "cursive"}, 5, "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Compute(&tt.cs, "")
			assert.Equal(t, tt.score, g.Score)
			assert.Equal(t, tt.difficulty, g.Difficulty)
		})
	}
}
