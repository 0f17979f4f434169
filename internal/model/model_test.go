package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Stages ---

func TestStage_Valid(t *testing.T) {
	for _, s := range []Stage{
		StageURLAnalysis, StageContentDescription, StageStructureConfirmation,
		StageExtractionStrategy, StageExtractionInProgress, StageHumanReview,
		StageFinalValidation, StageComplete,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Stage("halfway_done").Valid())
	assert.False(t, Stage("").Valid())
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageComplete.Terminal())
	assert.False(t, StageFinalValidation.Terminal())
	assert.False(t, StageURLAnalysis.Terminal())
}

func TestStage_Before(t *testing.T) {
	assert.True(t, StageURLAnalysis.Before(StageContentDescription))
	assert.True(t, StageExtractionStrategy.Before(StageComplete))
	assert.False(t, StageComplete.Before(StageURLAnalysis))
	assert.False(t, StageURLAnalysis.Before(StageURLAnalysis))
	assert.False(t, Stage("bogus").Before(StageComplete))
}

// --- Structure ---

func TestMergeColumn_InsertKeepsSorted(t *testing.T) {
	cs := &ContentStructure{}
	cs.MergeColumn(Column{Position: 3, Description: "location", DataType: ColLocation})
	cs.MergeColumn(Column{Position: 1, Description: "owner", DataType: ColOwnerName})
	cs.MergeColumn(Column{Position: 2, Description: "date", DataType: ColDate})

	require.Len(t, cs.Columns, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{cs.Columns[0].Position, cs.Columns[1].Position, cs.Columns[2].Position})
}

func TestMergeColumn_UpdateNonEmptyWins(t *testing.T) {
	cs := &ContentStructure{}
	cs.MergeColumn(Column{Position: 1, Description: "owner name", DataType: ColOwnerName, HeaderGuess: "OWNERS"})

	// Empty/unknown incoming fields never clobber known values.
	cs.MergeColumn(Column{Position: 1, DataType: ColUnknown})
	col := cs.ColumnAt(1)
	require.NotNil(t, col)
	assert.Equal(t, "owner name", col.Description)
	assert.Equal(t, ColOwnerName, col.DataType)
	assert.Equal(t, "OWNERS", col.HeaderGuess)

	// Non-empty incoming fields replace.
	cs.MergeColumn(Column{Position: 1, Description: "enslaved person", DataType: ColEnslavedName})
	col = cs.ColumnAt(1)
	assert.Equal(t, ColEnslavedName, col.DataType)
	assert.Equal(t, "enslaved person", col.Description)
}

func TestContentStructure_Complete(t *testing.T) {
	assert.False(t, (&ContentStructure{}).Complete())
	assert.False(t, (&ContentStructure{Layout: LayoutTable}).Complete())
	assert.True(t, (&ContentStructure{Layout: LayoutProse}).Complete())
	assert.True(t, (&ContentStructure{
		Layout:  LayoutTable,
		Columns: []Column{{Position: 1, Description: "owner"}},
	}).Complete())
}

// --- Extraction methods / jobs ---

func TestExtractionMethod_Valid(t *testing.T) {
	for _, m := range ValidMethods() {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, ExtractionMethod("telepathy").Valid())
	assert.False(t, ExtractionMethod("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobProcessing.Terminal())
}

// --- Session history ---

func TestSession_AppendTurn(t *testing.T) {
	s := &Session{}
	s.AppendTurn("user", "hello", nil)
	s.AppendTurn("assistant", "hi", map[string]any{"job_id": "j1"})

	require.Len(t, s.History, 2)
	assert.Equal(t, "user", s.History[0].Role)
	assert.Equal(t, "hi", s.History[1].Text)
	assert.Equal(t, "j1", s.History[1].Metadata["job_id"])
	assert.False(t, s.History[0].Timestamp.IsZero())
}

// --- Errors ---

func TestErrorHelpers_MatchThroughWrapping(t *testing.T) {
	ve := NewValidationError("bad input %d", 7)
	assert.True(t, IsValidation(fmt.Errorf("outer: %w", ve)))
	assert.Equal(t, "bad input 7", ve.Error())

	nf := &NotFoundError{Entity: "session", ID: "s1"}
	assert.True(t, IsNotFound(fmt.Errorf("outer: %w", nf)))
	assert.Equal(t, "session not found: s1", nf.Error())

	qr := &QualificationRejected{Reason: "not an owner type"}
	assert.True(t, IsRejection(fmt.Errorf("outer: %w", qr)))

	assert.False(t, IsValidation(nf))
	assert.False(t, IsNotFound(ve))
	assert.False(t, IsRejection(errors.New("plain")))
}

func TestWrappedErrors_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	fe := &UpstreamFetchError{URL: "https://a.gov/x", Err: inner}
	assert.ErrorIs(t, fe, inner)
	assert.Contains(t, fe.Error(), "https://a.gov/x")

	pe := &PersistenceError{Op: "insert session", Err: inner}
	assert.ErrorIs(t, pe, inner)
	assert.Contains(t, pe.Error(), "insert session")
}
