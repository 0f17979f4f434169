package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	source_url     TEXT NOT NULL,
	contributor_id TEXT,
	stage          TEXT NOT NULL DEFAULT 'url_analysis',
	status         TEXT NOT NULL DEFAULT 'in_progress',
	history        JSONB NOT NULL DEFAULT '[]',
	metadata       JSONB,
	structure      JSONB,
	guidance       JSONB,
	instructions   TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	source_url       TEXT NOT NULL,
	method           TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	progress         INTEGER NOT NULL DEFAULT 0,
	rows             JSONB,
	avg_confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	correction_count INTEGER NOT NULL DEFAULT 0,
	illegible_rows   INTEGER NOT NULL DEFAULT 0,
	error            TEXT,
	raw_debug        JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS corrections (
	job_id     TEXT NOT NULL REFERENCES extraction_jobs(id),
	row_index  INTEGER NOT NULL,
	field      TEXT NOT NULL,
	original   TEXT,
	corrected  TEXT NOT NULL,
	author     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS individuals (
	id           TEXT PRIMARY KEY,
	full_name    TEXT NOT NULL,
	first_name   TEXT,
	last_name    TEXT,
	birth_year   INTEGER NOT NULL DEFAULT 0,
	death_year   INTEGER NOT NULL DEFAULT 0,
	locations    JSONB NOT NULL DEFAULT '[]',
	provenance   JSONB NOT NULL DEFAULT '[]',
	source_trust TEXT NOT NULL DEFAULT 'primary',
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	verified     BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	full_name   TEXT NOT NULL,
	role        TEXT NOT NULL,
	source_url  TEXT NOT NULL,
	source_type TEXT,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	reviewed_by TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            TEXT PRIMARY KEY,
	individual_id TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_url    TEXT,
	channel       TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_jobs_session_id ON extraction_jobs(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_job_id ON corrections(job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_individuals_name ON individuals(lower(full_name));
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_audit_individual ON audit_log(individual_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	history, metadata, structure, guidance, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, source_url, contributor_id, stage, status, history, metadata, structure, guidance, instructions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sess.ID, sess.SourceURL, sess.ContributorID, string(sess.Stage), string(sess.Status),
		history, metadata, structure, guidance, sess.Instructions, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert session", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	var contributor, instructions *string
	var history, metadata, structure, guidance []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, source_url, contributor_id, stage, status, history, metadata, structure, guidance, instructions, created_at, updated_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.SourceURL, &contributor, &sess.Stage, &sess.Status,
		&history, &metadata, &structure, &guidance, &instructions,
		&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "session", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan session")
	}
	if contributor != nil {
		sess.ContributorID = *contributor
	}
	if instructions != nil {
		sess.Instructions = *instructions
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &sess.History); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal history")
		}
	}
	if len(metadata) > 0 {
		sess.Metadata = &model.SourceMetadata{}
		if err := json.Unmarshal(metadata, sess.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	if len(structure) > 0 {
		sess.Structure = &model.ContentStructure{}
		if err := json.Unmarshal(structure, sess.Structure); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal structure")
		}
	}
	if len(guidance) > 0 {
		sess.Guidance = &model.ExtractionGuidance{}
		if err := json.Unmarshal(guidance, sess.Guidance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal guidance")
		}
	}
	return &sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	history, metadata, structure, guidance, err := marshalSessionDocs(sess)
	if err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET stage = $1, status = $2, history = $3, metadata = $4, structure = $5, guidance = $6, instructions = $7, updated_at = $8
		 WHERE id = $9`,
		string(sess.Stage), string(sess.Status), history, metadata, structure, guidance,
		sess.Instructions, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update session", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "session", ID: sess.ID}
	}
	return nil
}

// --- Extraction jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *model.ExtractionJob) error {
	rows, err := marshalNullable(j.Rows)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job rows")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, session_id, source_url, method, status, progress, rows, avg_confidence, correction_count, illegible_rows, error, raw_debug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		j.ID, j.SessionID, j.SourceURL, string(j.Method), string(j.Status), j.Progress,
		rows, j.AvgConfidence, j.CorrectionCount, j.IllegibleRows, j.Error,
		nullableRaw(j.RawDebug), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert job", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	var j model.ExtractionJob
	var rowsJSON, rawDebug []byte
	var errText *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, source_url, method, status, progress, rows, avg_confidence, correction_count, illegible_rows, error, raw_debug, created_at, updated_at
		 FROM extraction_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.SessionID, &j.SourceURL, &j.Method, &j.Status, &j.Progress,
		&rowsJSON, &j.AvgConfidence, &j.CorrectionCount, &j.IllegibleRows, &errText,
		&rawDebug, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "job", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	if errText != nil {
		j.Error = *errText
	}
	if len(rowsJSON) > 0 {
		if err := json.Unmarshal(rowsJSON, &j.Rows); err != nil {
			zap.L().Warn("postgres: malformed job rows, degrading to nil",
				zap.String("job_id", id), zap.Error(err))
			j.Rows = nil
		}
	}
	if len(rawDebug) > 0 && json.Valid(rawDebug) {
		j.RawDebug = json.RawMessage(rawDebug)
	}
	return &j, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, j *model.ExtractionJob) error {
	rows, err := marshalNullable(j.Rows)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job rows")
	}
	j.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = $1, progress = $2, rows = $3, avg_confidence = $4, correction_count = $5, illegible_rows = $6, error = $7, raw_debug = $8, updated_at = $9
		 WHERE id = $10`,
		string(j.Status), j.Progress, rows, j.AvgConfidence, j.CorrectionCount,
		j.IllegibleRows, j.Error, nullableRaw(j.RawDebug), j.UpdatedAt, j.ID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update job", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "job", ID: j.ID}
	}
	return nil
}

// --- Corrections ---

func (s *PostgresStore) AppendCorrection(ctx context.Context, c model.Correction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO corrections (job_id, row_index, field, original, corrected, author, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.JobID, c.RowIndex, c.Field, c.Original, c.Corrected, c.Author, c.CreatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "append correction", Err: err}
	}
	return nil
}

func (s *PostgresStore) ListCorrections(ctx context.Context, jobID string) ([]model.Correction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, row_index, field, original, corrected, author, created_at
		 FROM corrections WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		var c model.Correction
		var author *string
		if err := rows.Scan(&c.JobID, &c.RowIndex, &c.Field, &c.Original, &c.Corrected, &author, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		if author != nil {
			c.Author = *author
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list corrections iterate")
}

// --- Confirmed registry ---

func (s *PostgresStore) GetIndividualByName(ctx context.Context, fullName string) (*model.ConfirmedIndividual, error) {
	var ind model.ConfirmedIndividual
	var first, last *string
	var locations, provenance []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, first_name, last_name, birth_year, death_year, locations, provenance, source_trust, confidence, verified, created_at, updated_at
		 FROM individuals WHERE lower(full_name) = lower($1)`, fullName,
	).Scan(&ind.ID, &ind.FullName, &first, &last, &ind.BirthYear, &ind.DeathYear,
		&locations, &provenance, &ind.SourceTrust, &ind.Confidence, &ind.Verified,
		&ind.CreatedAt, &ind.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan individual")
	}
	if first != nil {
		ind.FirstName = *first
	}
	if last != nil {
		ind.LastName = *last
	}
	if err := json.Unmarshal(locations, &ind.Locations); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal locations")
	}
	if err := json.Unmarshal(provenance, &ind.Provenance); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal provenance")
	}
	return &ind, nil
}

func (s *PostgresStore) CreateIndividual(ctx context.Context, ind *model.ConfirmedIndividual) error {
	locations, err := json.Marshal(ind.Locations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal locations")
	}
	provenance, err := json.Marshal(ind.Provenance)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal provenance")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO individuals (id, full_name, first_name, last_name, birth_year, death_year, locations, provenance, source_trust, confidence, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ind.ID, ind.FullName, ind.FirstName, ind.LastName, ind.BirthYear, ind.DeathYear,
		locations, provenance, ind.SourceTrust, ind.Confidence, ind.Verified,
		ind.CreatedAt, ind.UpdatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert individual", Err: err}
	}
	return nil
}

func (s *PostgresStore) AppendProvenance(ctx context.Context, individualID string, note string) error {
	noteJSON, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal provenance note")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE individuals SET provenance = provenance || $1::jsonb, updated_at = now()
		 WHERE id = $2`,
		string(noteJSON), individualID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "append provenance", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "individual", ID: individualID}
	}
	return nil
}

// --- Leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, l *model.Lead) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, full_name, role, source_url, source_type, confidence, status, reviewed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.FullName, l.Role, l.SourceURL, l.SourceType, l.Confidence, l.Status, l.ReviewedBy, l.CreatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert lead", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var l model.Lead
	var sourceType, reviewedBy *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, role, source_url, source_type, confidence, status, reviewed_by, created_at
		 FROM leads WHERE id = $1`, id,
	).Scan(&l.ID, &l.FullName, &l.Role, &l.SourceURL, &sourceType, &l.Confidence, &l.Status, &reviewedBy, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "lead", ID: id}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	if sourceType != nil {
		l.SourceType = *sourceType
	}
	if reviewedBy != nil {
		l.ReviewedBy = *reviewedBy
	}
	return &l, nil
}

func (s *PostgresStore) MarkLeadPromoted(ctx context.Context, id string, reviewer string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = 'promoted', reviewed_by = $1 WHERE id = $2`,
		reviewer, id,
	)
	if err != nil {
		return &model.PersistenceError{Op: "mark lead promoted", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "lead", ID: id}
	}
	return nil
}

// --- Audit ---

func (s *PostgresStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (id, individual_id, action, reason, confidence, source_url, channel, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.IndividualID, e.Action, e.Reason, e.Confidence, e.SourceURL, e.Channel, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append audit")
}
