package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

func seedJob(t *testing.T, st store.Store, status model.JobStatus) *model.ExtractionJob {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	job := &model.ExtractionJob{
		ID:        "job-1",
		SessionID: "sess-1",
		SourceURL: "https://catalog.archives.gov/id/12345",
		Method:    model.MethodAutoOCR,
		Status:    status,
		RawDebug:  []byte(`{"engine":"tesseract"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

// --- GetStatus ---

func TestGetStatus_StripsDebugByDefault(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobProcessing)

	status, err := tr.GetStatus(context.Background(), "job-1", "sess-1", false)
	require.NoError(t, err)
	assert.Nil(t, status.Job.RawDebug)

	status, err = tr.GetStatus(context.Background(), "job-1", "sess-1", true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"engine":"tesseract"}`, string(status.Job.RawDebug))
}

func TestGetStatus_WrongSessionIsNotFound(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobProcessing)

	_, err := tr.GetStatus(context.Background(), "job-1", "someone-else", false)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestGetStatus_IncludesCorrections(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobCompleted)

	_, err := tr.SubmitCorrections(context.Background(), "job-1", []model.Correction{
		{RowIndex: 0, Field: "full_name", Original: "illegible", Corrected: "Smith, John"},
	})
	require.NoError(t, err)

	status, err := tr.GetStatus(context.Background(), "job-1", "sess-1", false)
	require.NoError(t, err)
	require.Len(t, status.Corrections, 1)
	assert.Equal(t, "Smith, John", status.Corrections[0].Corrected)
}

// --- SubmitCorrections ---

func TestSubmitCorrections_IncrementsCounter(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobCompleted)
	ctx := context.Background()

	applied, err := tr.SubmitCorrections(ctx, "job-1", []model.Correction{
		{RowIndex: 0, Field: "full_name", Corrected: "Smith, John"},
		{RowIndex: 1, Field: "age", Corrected: "34"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	job, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, job.CorrectionCount)

	// A second batch accumulates.
	_, err = tr.SubmitCorrections(ctx, "job-1", []model.Correction{
		{RowIndex: 2, Field: "full_name", Corrected: "Doe, Jane"},
	})
	require.NoError(t, err)

	job, err = st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, job.CorrectionCount)
}

func TestSubmitCorrections_EmptyBatchRejected(t *testing.T) {
	tr, _ := newTestTracker(t)

	_, err := tr.SubmitCorrections(context.Background(), "job-1", nil)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestSubmitCorrections_MissingJob(t *testing.T) {
	tr, _ := newTestTracker(t)

	_, err := tr.SubmitCorrections(context.Background(), "ghost", []model.Correction{
		{RowIndex: 0, Field: "x", Corrected: "y"},
	})
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

// --- ApplyReport ---

func TestApplyReport_ProgressAndRows(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobPending)
	ctx := context.Background()

	job, err := tr.ApplyReport(ctx, "job-1", Report{Status: model.JobProcessing, Progress: 40})
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)

	job, err = tr.ApplyReport(ctx, "job-1", Report{
		Status:        model.JobCompleted,
		Rows:          []map[string]any{{"full_name": "Smith, John", "role": "owner"}},
		AvgConfidence: 0.88,
		IllegibleRows: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress) // completion forces 100
	require.Len(t, job.Rows, 1)
	assert.Equal(t, 2, job.IllegibleRows)
}

func TestApplyReport_InvalidTransition(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobPending)

	// pending cannot jump straight to completed.
	_, err := tr.ApplyReport(context.Background(), "job-1", Report{Status: model.JobCompleted})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestApplyReport_TerminalJobRefusesReports(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobFailed)

	_, err := tr.ApplyReport(context.Background(), "job-1", Report{Progress: 50})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestApplyReport_FailureRecordsError(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobPending)

	job, err := tr.ApplyReport(context.Background(), "job-1", Report{
		Status: model.JobFailed,
		Error:  "ocr backend timeout",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, "ocr backend timeout", job.Error)
}

func TestApplyReport_ProgressCappedAt100(t *testing.T) {
	tr, st := newTestTracker(t)
	seedJob(t, st, model.JobPending)

	job, err := tr.ApplyReport(context.Background(), "job-1", Report{
		Status:   model.JobProcessing,
		Progress: 250,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)
}
