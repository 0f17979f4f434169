package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	source_url     TEXT NOT NULL,
	contributor_id TEXT,
	stage          TEXT NOT NULL DEFAULT 'url_analysis',
	status         TEXT NOT NULL DEFAULT 'in_progress',
	history        TEXT NOT NULL DEFAULT '[]',
	metadata       TEXT,
	structure      TEXT,
	guidance       TEXT,
	instructions   TEXT,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	source_url       TEXT NOT NULL,
	method           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	progress         INTEGER NOT NULL DEFAULT 0,
	rows             TEXT,
	avg_confidence   REAL NOT NULL DEFAULT 0,
	correction_count INTEGER NOT NULL DEFAULT 0,
	illegible_rows   INTEGER NOT NULL DEFAULT 0,
	error            TEXT,
	raw_debug        TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	job_id     TEXT NOT NULL REFERENCES extraction_jobs(id),
	row_index  INTEGER NOT NULL,
	field      TEXT NOT NULL,
	original   TEXT,
	corrected  TEXT NOT NULL,
	author     TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS individuals (
	id           TEXT PRIMARY KEY,
	full_name    TEXT NOT NULL,
	first_name   TEXT,
	last_name    TEXT,
	birth_year   INTEGER NOT NULL DEFAULT 0,
	death_year   INTEGER NOT NULL DEFAULT 0,
	locations    TEXT NOT NULL DEFAULT '[]',
	provenance   TEXT NOT NULL DEFAULT '[]',
	source_trust TEXT NOT NULL DEFAULT 'primary',
	confidence   REAL NOT NULL DEFAULT 0,
	verified     INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	full_name   TEXT NOT NULL,
	role        TEXT NOT NULL,
	source_url  TEXT NOT NULL,
	source_type TEXT,
	confidence  REAL NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	reviewed_by TEXT,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	individual_id TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT NOT NULL,
	confidence    REAL NOT NULL DEFAULT 0,
	source_url    TEXT,
	channel       TEXT,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_jobs_session_id ON extraction_jobs(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_job_id ON corrections(job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_individuals_name ON individuals(lower(full_name));
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_audit_individual ON audit_log(individual_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	history, metadata, structure, guidance, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source_url, contributor_id, stage, status, history, metadata, structure, guidance, instructions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SourceURL, sess.ContributorID, string(sess.Stage), string(sess.Status),
		history, metadata, structure, guidance, sess.Instructions, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert session", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, contributor_id, stage, status, history, metadata, structure, guidance, instructions, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row, id)
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	history, metadata, structure, guidance, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET stage = ?, status = ?, history = ?, metadata = ?, structure = ?, guidance = ?, instructions = ?, updated_at = ?
		 WHERE id = ?`,
		string(sess.Stage), string(sess.Status), history, metadata, structure, guidance,
		sess.Instructions, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update session", Err: err}
	}
	return checkRowsAffected(res, "session", sess.ID)
}

// --- Extraction jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.ExtractionJob) error {
	rows, err := marshalNullable(j.Rows)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job rows")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, session_id, source_url, method, status, progress, rows, avg_confidence, correction_count, illegible_rows, error, raw_debug, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.SessionID, j.SourceURL, string(j.Method), string(j.Status), j.Progress,
		rows, j.AvgConfidence, j.CorrectionCount, j.IllegibleRows, j.Error,
		nullableRaw(j.RawDebug), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert job", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, source_url, method, status, progress, rows, avg_confidence, correction_count, illegible_rows, error, raw_debug, created_at, updated_at
		 FROM extraction_jobs WHERE id = ?`, id)

	var j model.ExtractionJob
	var rowsJSON, errText, rawDebug sql.NullString
	err := row.Scan(&j.ID, &j.SessionID, &j.SourceURL, &j.Method, &j.Status, &j.Progress,
		&rowsJSON, &j.AvgConfidence, &j.CorrectionCount, &j.IllegibleRows, &errText,
		&rawDebug, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "job", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Error = errText.String

	// Malformed stored JSON degrades to nil rather than failing the read.
	if rowsJSON.Valid && rowsJSON.String != "" {
		if err := json.Unmarshal([]byte(rowsJSON.String), &j.Rows); err != nil {
			zap.L().Warn("sqlite: malformed job rows, degrading to nil",
				zap.String("job_id", id), zap.Error(err))
			j.Rows = nil
		}
	}
	if rawDebug.Valid && rawDebug.String != "" {
		if json.Valid([]byte(rawDebug.String)) {
			j.RawDebug = json.RawMessage(rawDebug.String)
		} else {
			zap.L().Warn("sqlite: malformed raw debug payload, dropping",
				zap.String("job_id", id))
		}
	}
	return &j, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, j *model.ExtractionJob) error {
	rows, err := marshalNullable(j.Rows)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job rows")
	}
	j.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = ?, progress = ?, rows = ?, avg_confidence = ?, correction_count = ?, illegible_rows = ?, error = ?, raw_debug = ?, updated_at = ?
		 WHERE id = ?`,
		string(j.Status), j.Progress, rows, j.AvgConfidence, j.CorrectionCount,
		j.IllegibleRows, j.Error, nullableRaw(j.RawDebug), j.UpdatedAt, j.ID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update job", Err: err}
	}
	return checkRowsAffected(res, "job", j.ID)
}

// --- Corrections ---

func (s *SQLiteStore) AppendCorrection(ctx context.Context, c model.Correction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections (job_id, row_index, field, original, corrected, author, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.JobID, c.RowIndex, c.Field, c.Original, c.Corrected, c.Author, c.CreatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "append correction", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, jobID string) ([]model.Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, row_index, field, original, corrected, author, created_at
		 FROM corrections WHERE job_id = ? ORDER BY created_at, rowid`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		var c model.Correction
		var author sql.NullString
		if err := rows.Scan(&c.JobID, &c.RowIndex, &c.Field, &c.Original, &c.Corrected, &author, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correction")
		}
		c.Author = author.String
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list corrections iterate")
}

// --- Confirmed registry ---

func (s *SQLiteStore) GetIndividualByName(ctx context.Context, fullName string) (*model.ConfirmedIndividual, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, first_name, last_name, birth_year, death_year, locations, provenance, source_trust, confidence, verified, created_at, updated_at
		 FROM individuals WHERE lower(full_name) = lower(?)`, fullName)

	var ind model.ConfirmedIndividual
	var first, last sql.NullString
	var locations, provenance string
	err := row.Scan(&ind.ID, &ind.FullName, &first, &last, &ind.BirthYear, &ind.DeathYear,
		&locations, &provenance, &ind.SourceTrust, &ind.Confidence, &ind.Verified,
		&ind.CreatedAt, &ind.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan individual")
	}
	ind.FirstName = first.String
	ind.LastName = last.String
	if err := json.Unmarshal([]byte(locations), &ind.Locations); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal locations")
	}
	if err := json.Unmarshal([]byte(provenance), &ind.Provenance); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
	}
	return &ind, nil
}

func (s *SQLiteStore) CreateIndividual(ctx context.Context, ind *model.ConfirmedIndividual) error {
	locations, err := json.Marshal(ind.Locations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal locations")
	}
	provenance, err := json.Marshal(ind.Provenance)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO individuals (id, full_name, first_name, last_name, birth_year, death_year, locations, provenance, source_trust, confidence, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ind.ID, ind.FullName, ind.FirstName, ind.LastName, ind.BirthYear, ind.DeathYear,
		string(locations), string(provenance), ind.SourceTrust, ind.Confidence, ind.Verified,
		ind.CreatedAt, ind.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert individual", Err: err}
	}
	return nil
}

func (s *SQLiteStore) AppendProvenance(ctx context.Context, individualID string, note string) error {
	noteJSON, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance note")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE individuals SET provenance = json_insert(provenance, '$[#]', json(?)), updated_at = ?
		 WHERE id = ?`,
		string(noteJSON), time.Now().UTC(), individualID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "append provenance", Err: err}
	}
	return checkRowsAffected(res, "individual", individualID)
}

// --- Leads ---

func (s *SQLiteStore) CreateLead(ctx context.Context, l *model.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, full_name, role, source_url, source_type, confidence, status, reviewed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FullName, l.Role, l.SourceURL, l.SourceType, l.Confidence, l.Status, l.ReviewedBy, l.CreatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert lead", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, full_name, role, source_url, source_type, confidence, status, reviewed_by, created_at
		 FROM leads WHERE id = ?`, id)

	var l model.Lead
	var sourceType, reviewedBy sql.NullString
	err := row.Scan(&l.ID, &l.FullName, &l.Role, &l.SourceURL, &sourceType, &l.Confidence, &l.Status, &reviewedBy, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}
	l.SourceType = sourceType.String
	l.ReviewedBy = reviewedBy.String
	return &l, nil
}

func (s *SQLiteStore) MarkLeadPromoted(ctx context.Context, id string, reviewer string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'promoted', reviewed_by = ? WHERE id = ?`,
		reviewer, id,
	)
	if err != nil {
		return &model.PersistenceError{Op: "mark lead promoted", Err: err}
	}
	return checkRowsAffected(res, "lead", id)
}

// --- Audit ---

func (s *SQLiteStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, individual_id, action, reason, confidence, source_url, channel, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.IndividualID, e.Action, e.Reason, e.Confidence, e.SourceURL, e.Channel, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append audit")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return &model.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func marshalSessionDocs(sess *model.Session) (history, metadata, structure, guidance sql.NullString, err error) {
	h, err := json.Marshal(sess.History)
	if err != nil {
		err = eris.Wrap(err, "marshal history")
		return
	}
	history = sql.NullString{String: string(h), Valid: true}
	if metadata, err = marshalNullable(sess.Metadata); err != nil {
		err = eris.Wrap(err, "marshal metadata")
		return
	}
	if structure, err = marshalNullable(sess.Structure); err != nil {
		err = eris.Wrap(err, "marshal structure")
		return
	}
	if guidance, err = marshalNullable(sess.Guidance); err != nil {
		err = eris.Wrap(err, "marshal guidance")
	}
	return
}

// marshalNullable serializes v to JSON, mapping nil pointers and empty
// slices to SQL NULL.
func marshalNullable(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case *model.SourceMetadata:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *model.ContentStructure:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *model.ExtractionGuidance:
		if t == nil {
			return sql.NullString{}, nil
		}
	case []map[string]any:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullableRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func scanSession(row *sql.Row, id string) (*model.Session, error) {
	var sess model.Session
	var contributor, history, metadata, structure, guidance, instructions sql.NullString
	err := row.Scan(&sess.ID, &sess.SourceURL, &contributor, &sess.Stage, &sess.Status,
		&history, &metadata, &structure, &guidance, &instructions,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "session", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan session")
	}
	sess.ContributorID = contributor.String
	sess.Instructions = instructions.String

	if history.Valid && history.String != "" {
		if err := json.Unmarshal([]byte(history.String), &sess.History); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal history")
		}
	}
	if metadata.Valid && metadata.String != "" {
		sess.Metadata = &model.SourceMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), sess.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	if structure.Valid && structure.String != "" {
		sess.Structure = &model.ContentStructure{}
		if err := json.Unmarshal([]byte(structure.String), sess.Structure); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal structure")
		}
	}
	if guidance.Valid && guidance.String != "" {
		sess.Guidance = &model.ExtractionGuidance{}
		if err := json.Unmarshal([]byte(guidance.String), sess.Guidance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal guidance")
		}
	}
	return &sess, nil
}
