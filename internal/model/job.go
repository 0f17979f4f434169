package model

import (
	"encoding/json"
	"time"
)

// ExtractionMethod is one of the fixed set of supported extraction methods.
type ExtractionMethod string

const (
	MethodAutoOCR          ExtractionMethod = "auto_ocr"
	MethodBrowserBasedOCR  ExtractionMethod = "browser_based_ocr"
	MethodManualText       ExtractionMethod = "manual_text"
	MethodScreenshotUpload ExtractionMethod = "screenshot_upload"
	MethodGuidedEntry      ExtractionMethod = "guided_entry"
	MethodSampleLearn      ExtractionMethod = "sample_learn"
	MethodCSVUpload        ExtractionMethod = "csv_upload"
)

// ValidMethods lists every accepted extraction method, in a stable order
// suitable for error messages.
func ValidMethods() []ExtractionMethod {
	return []ExtractionMethod{
		MethodAutoOCR,
		MethodBrowserBasedOCR,
		MethodManualText,
		MethodScreenshotUpload,
		MethodGuidedEntry,
		MethodSampleLearn,
		MethodCSVUpload,
	}
}

// Valid reports whether m is a member of the fixed method enumeration.
func (m ExtractionMethod) Valid() bool {
	for _, v := range ValidMethods() {
		if m == v {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of an extraction job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job accepts no further backend transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ExtractionJob is one attempt, by an external backend, to turn a source
// document into structured rows. Transitions are driven by the backend
// and by correction submissions.
type ExtractionJob struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	SourceURL       string           `json:"source_url"`
	Method          ExtractionMethod `json:"method"`
	Status          JobStatus        `json:"status"`
	Progress        int              `json:"progress"` // percent, 0-100
	Rows            []map[string]any `json:"rows,omitempty"`
	AvgConfidence   float64          `json:"avg_confidence,omitempty"`
	CorrectionCount int              `json:"correction_count"`
	IllegibleRows   int              `json:"illegible_rows"`
	Error           string           `json:"error,omitempty"`
	RawDebug        json.RawMessage  `json:"raw_debug,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Correction is a human-supplied override of one field in one parsed row.
// Corrections are append-only overlays; the original row is never mutated.
type Correction struct {
	JobID     string    `json:"job_id"`
	RowIndex  int       `json:"row_index"`
	Field     string    `json:"field"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
