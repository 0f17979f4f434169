package store

import (
	"context"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// Store defines the persistence interface for the contribution pipeline.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error

	// Extraction jobs
	CreateJob(ctx context.Context, j *model.ExtractionJob) error
	GetJob(ctx context.Context, id string) (*model.ExtractionJob, error)
	UpdateJob(ctx context.Context, j *model.ExtractionJob) error

	// Corrections (append-only overlays)
	AppendCorrection(ctx context.Context, c model.Correction) error
	ListCorrections(ctx context.Context, jobID string) ([]model.Correction, error)

	// Confirmed registry
	GetIndividualByName(ctx context.Context, fullName string) (*model.ConfirmedIndividual, error)
	CreateIndividual(ctx context.Context, ind *model.ConfirmedIndividual) error
	AppendProvenance(ctx context.Context, individualID string, note string) error

	// Staging leads
	CreateLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	MarkLeadPromoted(ctx context.Context, id string, reviewer string) error

	// Audit log (append-only; failures tolerated by callers)
	AppendAudit(ctx context.Context, e model.AuditEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
