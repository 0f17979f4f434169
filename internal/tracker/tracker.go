// Package tracker records the lifecycle of asynchronous extraction jobs.
// Transitions are driven by the external extraction backend and by human
// correction submissions; the tracker never blocks waiting for a job.
package tracker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
)

// Tracker exposes job status reads, correction submission, and the
// backend report hook.
type Tracker struct {
	store store.Store
}

// New creates a Tracker over the given store.
func New(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Status is the full job state returned to callers. Rows and RawDebug
// are parsed defensively upstream: malformed stored JSON degrades to
// nil rather than failing the query.
type Status struct {
	Job         *model.ExtractionJob `json:"job"`
	Corrections []model.Correction   `json:"corrections,omitempty"`
}

// GetStatus returns full progress for a job. The job must belong to the
// given session; a mismatch reports NotFound rather than leaking the
// job's existence.
func (t *Tracker) GetStatus(ctx context.Context, jobID, sessionID string, includeDebug bool) (*Status, error) {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SessionID != sessionID {
		return nil, &model.NotFoundError{Entity: "job", ID: jobID}
	}
	if !includeDebug {
		job.RawDebug = nil
	}

	corrections, err := t.store.ListCorrections(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &Status{Job: job, Corrections: corrections}, nil
}

// SubmitCorrections appends each correction and increments the job's
// correction counter. Corrections are independent, idempotent appends: a
// failure on one does not roll back those already written. Returns the
// number applied.
func (t *Tracker) SubmitCorrections(ctx context.Context, jobID string, corrections []model.Correction) (int, error) {
	if len(corrections) == 0 {
		return 0, model.NewValidationError("corrections array is required")
	}

	// Corrections are accepted at any point in the job's life, including
	// after completion.
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, c := range corrections {
		c.JobID = jobID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if err := t.store.AppendCorrection(ctx, c); err != nil {
			zap.L().Error("tracker: correction append failed, continuing",
				zap.String("job_id", jobID),
				zap.Int("row_index", c.RowIndex),
				zap.String("field", c.Field),
				zap.Error(err),
			)
			continue
		}
		applied++
	}

	if applied > 0 {
		job.CorrectionCount += applied
		if err := t.store.UpdateJob(ctx, job); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

// Report is the payload the external extraction backend posts as work
// progresses.
type Report struct {
	Status        model.JobStatus  `json:"status,omitempty"`
	Progress      int              `json:"progress,omitempty"`
	Rows          []map[string]any `json:"rows,omitempty"`
	AvgConfidence float64          `json:"avg_confidence,omitempty"`
	IllegibleRows int              `json:"illegible_rows,omitempty"`
	Error         string           `json:"error,omitempty"`
	RawDebug      json.RawMessage  `json:"raw_debug,omitempty"`
}

// ApplyReport records a backend progress report. Terminal jobs accept no
// further transitions.
func (t *Tracker) ApplyReport(ctx context.Context, jobID string, r Report) (*model.ExtractionJob, error) {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, model.NewValidationError("job %s is already %s", jobID, job.Status)
	}

	if r.Status != "" {
		if !validTransition(job.Status, r.Status) {
			return nil, model.NewValidationError("invalid job transition %s -> %s", job.Status, r.Status)
		}
		job.Status = r.Status
	}
	if r.Progress > 0 {
		job.Progress = min(r.Progress, 100)
	}
	if r.Rows != nil {
		job.Rows = r.Rows
	}
	if r.AvgConfidence > 0 {
		job.AvgConfidence = r.AvgConfidence
	}
	if r.IllegibleRows > 0 {
		job.IllegibleRows = r.IllegibleRows
	}
	if r.Error != "" {
		job.Error = r.Error
	}
	if len(r.RawDebug) > 0 {
		job.RawDebug = r.RawDebug
	}
	if job.Status == model.JobCompleted {
		job.Progress = 100
	}

	if err := t.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	zap.L().Info("tracker: backend report applied",
		zap.String("job_id", jobID),
		zap.String("status", string(job.Status)),
		zap.Int("progress", job.Progress),
		zap.Int("rows", len(job.Rows)),
	)
	return job, nil
}

func validTransition(from, to model.JobStatus) bool {
	switch from {
	case model.JobPending:
		return to == model.JobProcessing || to == model.JobFailed
	case model.JobProcessing:
		return to == model.JobProcessing || to == model.JobCompleted || to == model.JobFailed
	default:
		return false
	}
}
