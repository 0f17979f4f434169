package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testSession() *model.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Session{
		ID:            "sess-1",
		SourceURL:     "https://catalog.archives.gov/id/12345",
		ContributorID: "contributor-1",
		Stage:         model.StageURLAnalysis,
		Status:        model.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// --- Sessions ---

func TestSQLite_Session_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := testSession()
	require.NoError(t, st.CreateSession(ctx, sess))

	got, err := st.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.SourceURL, got.SourceURL)
	assert.Equal(t, model.StageURLAnalysis, got.Stage)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Nil(t, got.Metadata)
	assert.Nil(t, got.Structure)
}

func TestSQLite_Session_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetSession(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestSQLite_Session_UpdateRoundTripsNestedDocs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := testSession()
	require.NoError(t, st.CreateSession(ctx, sess))

	sess.Stage = model.StageStructureConfirmation
	sess.Metadata = &model.SourceMetadata{
		ArchiveKind: "nara_catalog",
		ContentType: "html",
		PageTitle:   "Slave Schedule, 1860",
		StatusCode:  200,
	}
	sess.Structure = &model.ContentStructure{
		Layout:      model.LayoutTable,
		ScanQuality: "faded",
		Columns: []model.Column{
			{Position: 1, Description: "owner name", DataType: model.ColOwnerName},
			{Position: 2, Description: "date", DataType: model.ColDate},
		},
	}
	sess.AppendTurn("user", "it's a faded table", nil)
	require.NoError(t, st.UpdateSession(ctx, sess))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageStructureConfirmation, got.Stage)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "nara_catalog", got.Metadata.ArchiveKind)
	require.NotNil(t, got.Structure)
	require.Len(t, got.Structure.Columns, 2)
	assert.Equal(t, model.ColOwnerName, got.Structure.Columns[0].DataType)
	require.Len(t, got.History, 1)
	assert.Equal(t, "user", got.History[0].Role)
}

func TestSQLite_Session_UpdateMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	sess := testSession()
	sess.ID = "ghost"
	err := st.UpdateSession(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

// --- Extraction jobs ---

func testJob(sessionID string) *model.ExtractionJob {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.ExtractionJob{
		ID:        "job-1",
		SessionID: sessionID,
		SourceURL: "https://catalog.archives.gov/id/12345",
		Method:    model.MethodAutoOCR,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLite_Job_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateJob(ctx, testJob("sess-1")))

	got, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.Status)
	assert.Equal(t, model.MethodAutoOCR, got.Method)
	assert.Nil(t, got.Rows)
}

func TestSQLite_Job_UpdateWithRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := testJob("sess-1")
	require.NoError(t, st.CreateJob(ctx, job))

	job.Status = model.JobCompleted
	job.Progress = 100
	job.Rows = []map[string]any{
		{"full_name": "John Smith", "role": "owner"},
	}
	job.AvgConfidence = 0.91
	job.RawDebug = []byte(`{"ocr_engine":"tesseract"}`)
	require.NoError(t, st.UpdateJob(ctx, job))

	got, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "John Smith", got.Rows[0]["full_name"])
	assert.InDelta(t, 0.91, got.AvgConfidence, 0.0001)
	assert.JSONEq(t, `{"ocr_engine":"tesseract"}`, string(got.RawDebug))
}

func TestSQLite_Job_MalformedRowsDegradeToNil(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateJob(ctx, testJob("sess-1")))
	_, err := st.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET rows = 'not json{', raw_debug = 'also not json{' WHERE id = 'job-1'`)
	require.NoError(t, err)

	got, err := st.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got.Rows)
	assert.Nil(t, got.RawDebug)
}

// --- Corrections ---

func TestSQLite_Corrections_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateJob(ctx, testJob("sess-1")))

	now := time.Now().UTC().Truncate(time.Second)
	for i, corrected := range []string{"Smith, John", "Calvert, Charles"} {
		require.NoError(t, st.AppendCorrection(ctx, model.Correction{
			JobID:     "job-1",
			RowIndex:  i,
			Field:     "full_name",
			Original:  "illegible",
			Corrected: corrected,
			Author:    "reviewer-1",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := st.ListCorrections(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Smith, John", got[0].Corrected)
	assert.Equal(t, "Calvert, Charles", got[1].Corrected)
	assert.Equal(t, "reviewer-1", got[0].Author)
}

func TestSQLite_Corrections_EmptyList(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.ListCorrections(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- Individuals ---

func testIndividual(name string) *model.ConfirmedIndividual {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.ConfirmedIndividual{
		ID:          "ind-" + name,
		FullName:    name,
		SourceTrust: "primary",
		Provenance:  []string{"promoted from https://catalog.archives.gov/id/1"},
		Confidence:  0.92,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLite_Individual_CaseInsensitiveLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateIndividual(ctx, testIndividual("John Smith")))

	got, err := st.GetIndividualByName(ctx, "JOHN SMITH")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "John Smith", got.FullName)
}

func TestSQLite_Individual_MissingIsNilNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetIndividualByName(context.Background(), "Nobody Here")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Individual_DuplicateNameRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateIndividual(ctx, testIndividual("John Smith")))

	dup := testIndividual("john smith")
	dup.ID = "ind-other"
	err := st.CreateIndividual(ctx, dup)
	require.Error(t, err)
}

func TestSQLite_Individual_AppendProvenance(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ind := testIndividual("John Smith")
	require.NoError(t, st.CreateIndividual(ctx, ind))
	require.NoError(t, st.AppendProvenance(ctx, ind.ID, "promoted from https://chroniclingamerica.loc.gov/x"))

	got, err := st.GetIndividualByName(ctx, "John Smith")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Provenance, 2)
	assert.Contains(t, got.Provenance[1], "chroniclingamerica")
}

func TestSQLite_Individual_AppendProvenanceMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.AppendProvenance(context.Background(), "ghost", "note")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

// --- Leads ---

func TestSQLite_Lead_CreateGetPromote(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := &model.Lead{
		ID:         "lead-1",
		FullName:   "Smith, John",
		Role:       "owner",
		SourceURL:  "https://msa.maryland.gov/x",
		Confidence: 0.8,
		Status:     "pending",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.CreateLead(ctx, lead))

	got, err := st.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
	assert.Empty(t, got.ReviewedBy)

	require.NoError(t, st.MarkLeadPromoted(ctx, "lead-1", "reviewer-1"))

	got, err = st.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "promoted", got.Status)
	assert.Equal(t, "reviewer-1", got.ReviewedBy)
}

func TestSQLite_Lead_MarkMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.MarkLeadPromoted(context.Background(), "ghost", "reviewer-1")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

// --- Audit ---

func TestSQLite_Audit_AppendGeneratesID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.AppendAudit(ctx, model.AuditEntry{
		IndividualID: "ind-1",
		Action:       "created",
		Reason:       "auto_high_confidence",
		Confidence:   0.95,
		SourceURL:    "https://catalog.archives.gov/id/1",
		Channel:      "api",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, st.db.QueryRow(
		`SELECT count(*) FROM audit_log WHERE individual_id = 'ind-1' AND id != ''`).Scan(&count))
	assert.Equal(t, 1, count)
}
