package promotion

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
)

// Promoter performs confidence-gated writes into the confirmed registry.
type Promoter struct {
	store             store.Store
	thresholds        Thresholds
	defaultConfidence float64
}

// Options configures a Promoter. Zero values fall back to the standard
// gates and a 0.85 default row confidence.
type Options struct {
	Thresholds        Thresholds
	DefaultConfidence float64
}

// New creates a Promoter over the given store.
func New(st store.Store, opts Options) *Promoter {
	th := opts.Thresholds
	if th.Verified == 0 && th.Auto == 0 {
		th = DefaultThresholds()
	}
	dc := opts.DefaultConfidence
	if dc == 0 {
		dc = 0.85
	}
	return &Promoter{store: st, thresholds: th, defaultConfidence: dc}
}

// Outcome describes what a single promotion did.
type Outcome struct {
	Individual *model.ConfirmedIndividual `json:"individual"`
	Action     string                     `json:"action"` // "created" or "updated"
	Type       PromotionType              `json:"promotion_type"`
}

// PromotePerson qualifies a single extracted record and writes it to the
// registry: a new individual when the canonical name is unseen, otherwise
// a provenance merge onto the existing one. The audit append is
// best-effort; a failed audit write never rolls back the promotion.
func (p *Promoter) PromotePerson(ctx context.Context, person model.ExtractedPerson, channel string) (*Outcome, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, model.NewValidationError("confirmation channel is required")
	}

	ptype, err := Qualify(person, p.thresholds)
	if err != nil {
		return nil, err
	}

	name := CanonicalName(person.FullName)
	existing, err := p.store.GetIndividualByName(ctx, name)
	if err != nil {
		return nil, err
	}

	note := provenanceNote(person, ptype)
	now := time.Now().UTC()

	var out *Outcome
	if existing != nil {
		if err := p.store.AppendProvenance(ctx, existing.ID, note); err != nil {
			return nil, err
		}
		existing.Provenance = append(existing.Provenance, note)
		out = &Outcome{Individual: existing, Action: "updated", Type: ptype}
	} else {
		first, last := SplitName(name)
		ind := &model.ConfirmedIndividual{
			ID:          uuid.New().String(),
			FullName:    name,
			FirstName:   first,
			LastName:    last,
			Provenance:  []string{note},
			SourceTrust: "primary",
			Confidence:  person.Confidence,
			Verified:    person.HumanVerified,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := p.store.CreateIndividual(ctx, ind); err != nil {
			return nil, err
		}
		out = &Outcome{Individual: ind, Action: "created", Type: ptype}
	}

	audit := model.AuditEntry{
		ID:           uuid.New().String(),
		IndividualID: out.Individual.ID,
		Action:       out.Action,
		Reason:       string(ptype),
		Confidence:   person.Confidence,
		SourceURL:    person.SourceURL,
		Channel:      channel,
		CreatedAt:    now,
	}
	if err := p.store.AppendAudit(ctx, audit); err != nil {
		zap.L().Warn("promotion: audit append failed",
			zap.String("individual_id", out.Individual.ID),
			zap.Error(err),
		)
	}

	zap.L().Info("individual promoted",
		zap.String("individual_id", out.Individual.ID),
		zap.String("full_name", out.Individual.FullName),
		zap.String("action", out.Action),
		zap.String("type", string(ptype)),
	)
	return out, nil
}

// JobResult summarizes a batch promotion over an extraction job's rows.
type JobResult struct {
	JobID    string   `json:"job_id"`
	Promoted int      `json:"promoted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// PromoteFromJob promotes every qualifying owner row from a completed
// extraction job. The job must belong to the given session; a mismatch
// reports NotFound. The federal-source gate is checked once against the
// job's own source URL before any row work: a non-federal job promotes
// nothing. Human corrections overlay their rows before qualification and
// mark them human-verified. Rows are isolated; one bad row never stops
// the batch.
func (p *Promoter) PromoteFromJob(ctx context.Context, sessionID, jobID, channel string) (*JobResult, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, model.NewValidationError("confirmation channel is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, model.NewValidationError("session id is required")
	}

	if _, err := p.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SessionID != sessionID {
		return nil, &model.NotFoundError{Entity: "job", ID: jobID}
	}
	if job.Status != model.JobCompleted {
		return nil, model.NewValidationError("job %s is %s; only completed jobs can be promoted", jobID, job.Status)
	}

	res := &JobResult{JobID: jobID}
	if !IsFederalSource(job.SourceURL, "") {
		res.Skipped = len(job.Rows)
		zap.L().Info("promotion skipped: non-federal job source",
			zap.String("job_id", jobID),
			zap.String("source_url", job.SourceURL),
		)
		return res, nil
	}

	corrections, err := p.store.ListCorrections(ctx, jobID)
	if err != nil {
		return nil, err
	}
	overlays := correctionOverlays(corrections)

	for i, row := range job.Rows {
		person, ok := personFromRow(applyOverlay(row, overlays[i]), job.SourceURL, p.defaultConfidence)
		if !ok {
			res.Skipped++
			continue
		}
		if len(overlays[i]) > 0 {
			// A reviewer touched this row; its values carry review authority.
			person.HumanVerified = true
		}
		if _, err := p.PromotePerson(ctx, person, channel); err != nil {
			if model.IsRejection(err) {
				res.Skipped++
				continue
			}
			res.Errors = append(res.Errors, "row "+strconv.Itoa(i)+": "+err.Error())
			continue
		}
		res.Promoted++
	}

	zap.L().Info("job promotion finished",
		zap.String("job_id", jobID),
		zap.Int("promoted", res.Promoted),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// PromoteByID promotes a staged lead after manual review. The reviewer's
// approval forces the human-verified path, but the federal-source gate
// still applies: review cannot launder a non-government source. An
// absent reviewer is recorded as unattributed.
func (p *Promoter) PromoteByID(ctx context.Context, leadID, reviewer, channel string) (*Outcome, error) {
	if strings.TrimSpace(reviewer) == "" {
		reviewer = "unattributed"
	}

	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == "promoted" {
		return nil, model.NewValidationError("lead %s was already promoted", leadID)
	}

	person := model.ExtractedPerson{
		FullName:      lead.FullName,
		Role:          lead.Role,
		Confidence:    lead.Confidence,
		SourceURL:     lead.SourceURL,
		SourceType:    lead.SourceType,
		HumanVerified: true,
		LeadID:        lead.ID,
	}
	out, err := p.PromotePerson(ctx, person, channel)
	if err != nil {
		return nil, err
	}
	if err := p.store.MarkLeadPromoted(ctx, leadID, reviewer); err != nil {
		return nil, err
	}
	return out, nil
}

// personFromRow normalizes an extraction row into an ExtractedPerson.
// Backends disagree on field names; full_name, name, and owner_name are
// all accepted, flat or nested under a columns map, and an absent
// confidence falls back to the default.
func personFromRow(row map[string]any, sourceURL string, defaultConfidence float64) (model.ExtractedPerson, bool) {
	name := firstString(row, "full_name", "name", "owner_name", "owner")
	if name == "" {
		if cols, ok := row["columns"].(map[string]any); ok {
			name = firstString(cols, "owner_name", "full_name", "name")
		}
	}
	if name == "" {
		return model.ExtractedPerson{}, false
	}

	role := firstString(row, "role", "record_type")
	if role == "" {
		role = "owner"
	}

	confidence := defaultConfidence
	if v, ok := row["confidence"]; ok {
		switch c := v.(type) {
		case float64:
			confidence = c
		case string:
			if f, err := strconv.ParseFloat(c, 64); err == nil {
				confidence = f
			}
		}
	}

	verified := false
	if v, ok := row["human_verified"].(bool); ok {
		verified = v
	}

	return model.ExtractedPerson{
		FullName:      name,
		Role:          role,
		Confidence:    confidence,
		SourceURL:     sourceURL,
		SourceType:    firstString(row, "source_type", "document_type"),
		HumanVerified: verified,
	}, true
}

// correctionOverlays groups corrections by row index. Later corrections
// to the same field win, matching their append order.
func correctionOverlays(corrections []model.Correction) map[int]map[string]string {
	overlays := make(map[int]map[string]string)
	for _, c := range corrections {
		if overlays[c.RowIndex] == nil {
			overlays[c.RowIndex] = make(map[string]string)
		}
		overlays[c.RowIndex][c.Field] = c.Corrected
	}
	return overlays
}

// applyOverlay returns a copy of the row with corrected fields written at
// the top level, where normalization looks first. The stored row itself
// is never mutated.
func applyOverlay(row map[string]any, overlay map[string]string) map[string]any {
	if len(overlay) == 0 {
		return row
	}
	merged := make(map[string]any, len(row)+len(overlay))
	for k, v := range row {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func firstString(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func provenanceNote(p model.ExtractedPerson, ptype PromotionType) string {
	note := "promoted " + string(ptype) + " from " + p.SourceURL
	if p.SourceType != "" {
		note += " (" + p.SourceType + ")"
	}
	return note
}
