// Package session drives the guided contribution conversation: an
// eight-stage state machine over a cached, durable session record.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/analyzer"
	"github.com/danyelajunebrown/reparations-pipeline/internal/guidance"
	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/parser"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
)

// Reply is the conversational result of a pipeline operation.
type Reply struct {
	SessionID string                    `json:"session_id"`
	Stage     model.Stage               `json:"stage"`
	Message   string                    `json:"message"`
	Questions []string                  `json:"questions,omitempty"`
	Structure *model.ContentStructure   `json:"structure,omitempty"`
	Guidance  *model.ExtractionGuidance `json:"guidance,omitempty"`
	JobID     string                    `json:"job_id,omitempty"`
}

// Service implements the contribution session state machine.
type Service struct {
	store    store.Store
	cache    *Cache
	analyzer *analyzer.Analyzer
}

// NewService wires the session service over its dependencies.
func NewService(st store.Store, cache *Cache, an *analyzer.Analyzer) *Service {
	return &Service{store: st, cache: cache, analyzer: an}
}

// CreateSession validates the URL and creates a session in url_analysis.
func (s *Service) CreateSession(ctx context.Context, rawURL, contributorID string) (*model.Session, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, model.NewValidationError("invalid URL: %q", rawURL)
	}

	now := time.Now().UTC()
	sess := &model.Session{
		ID:            uuid.New().String(),
		SourceURL:     rawURL,
		ContributorID: contributorID,
		Stage:         model.StageURLAnalysis,
		Status:        model.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.cache.Create(ctx, sess); err != nil {
		return nil, err
	}
	zap.L().Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("url", rawURL),
	)
	return sess, nil
}

// AnalyzeURL fetches and classifies the session's source URL, then
// advances to content_description. Calling it from a later stage is an
// explicit re-analysis request and resets the session to the description
// stage. Fetch failures are non-fatal; the session still advances.
func (s *Service) AnalyzeURL(ctx context.Context, sessionID string) (*Reply, error) {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	meta := s.analyzer.Analyze(ctx, sess.SourceURL)
	sess.Metadata = meta
	sess.Stage = model.StageContentDescription

	summary := analyzer.Summary(meta)
	questions := analyzer.Questions(meta)
	sess.AppendTurn("assistant", summary, map[string]any{"questions": questions})

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	return &Reply{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Message:   summary,
		Questions: questions,
	}, nil
}

// ProcessDescription parses a free-text layout description, merges the
// result into the session's structure, and advances to
// structure_confirmation once enough structure is known.
func (s *Service) ProcessDescription(ctx context.Context, sessionID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewValidationError("description text is required")
	}

	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage != model.StageContentDescription {
		return nil, model.NewValidationError("session is in stage %s, not %s", sess.Stage, model.StageContentDescription)
	}

	sess.AppendTurn("user", text, nil)

	if sess.Structure == nil {
		sess.Structure = &model.ContentStructure{}
	}
	delta := parser.Parse(text)
	parser.Merge(sess.Structure, delta)

	reply := &Reply{SessionID: sess.ID, Structure: sess.Structure}
	if sess.Structure.Complete() {
		sess.Stage = model.StageStructureConfirmation
		reply.Message = confirmationPrompt(sess.Structure)
	} else {
		reply.Questions = parser.FollowUps(sess.Structure)
		reply.Message = "Thanks — a few more details and we can move on."
	}
	reply.Stage = sess.Stage
	sess.AppendTurn("assistant", reply.Message, nil)

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

// ConfirmStructure applies column corrections (keyed by position),
// computes extraction guidance, and advances to extraction_strategy.
// With confirmed=false the session stays put so the contributor can
// keep correcting.
func (s *Service) ConfirmStructure(ctx context.Context, sessionID string, confirmed bool, corrections map[int]model.Column) (*Reply, error) {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage != model.StageStructureConfirmation {
		return nil, model.NewValidationError("session is in stage %s, not %s", sess.Stage, model.StageStructureConfirmation)
	}
	if sess.Structure == nil {
		sess.Structure = &model.ContentStructure{}
	}

	for pos, col := range corrections {
		col.Position = pos
		sess.Structure.MergeColumn(col)
	}

	reply := &Reply{SessionID: sess.ID, Structure: sess.Structure}
	if confirmed {
		contentType := ""
		if sess.Metadata != nil {
			contentType = sess.Metadata.ContentType
		}
		sess.Guidance = guidance.Compute(sess.Structure, contentType)
		sess.Stage = model.StageExtractionStrategy
		reply.Guidance = sess.Guidance
		reply.Message = fmt.Sprintf(
			"Structure confirmed. Extraction difficulty is %s; I recommend %s. Which method would you like to use?",
			sess.Guidance.Difficulty, sess.Guidance.RecommendedMethod)
	} else {
		reply.Message = "No problem — tell me what to fix, column by column."
	}
	reply.Stage = sess.Stage
	sess.AppendTurn("assistant", reply.Message, nil)

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

// StartExtraction validates the method, records a pending extraction job,
// and advances to extraction_in_progress. The actual extraction work is
// delegated to the external backend; this only records intent.
func (s *Service) StartExtraction(ctx context.Context, sessionID string, method model.ExtractionMethod, options map[string]any) (*Reply, error) {
	if !method.Valid() {
		return nil, model.NewValidationError(
			"invalid extraction method %q; valid methods: %s", method, methodList())
	}

	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &model.ExtractionJob{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		SourceURL: sess.SourceURL,
		Method:    method,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	sess.Stage = model.StageExtractionInProgress
	msg := fmt.Sprintf("Extraction started with method %s. I'll let you know when rows are ready for review.", method)
	sess.AppendTurn("assistant", msg, map[string]any{"job_id": job.ID})

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}

	zap.L().Info("extraction job created",
		zap.String("session_id", sess.ID),
		zap.String("job_id", job.ID),
		zap.String("method", string(method)),
	)
	return &Reply{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Message:   msg,
		JobID:     job.ID,
	}, nil
}

// BeginReview moves the session into human_review once its extraction
// job has completed. Safe to call repeatedly; a session already past
// extraction is left alone.
func (s *Service) BeginReview(ctx context.Context, sessionID string) error {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Stage != model.StageExtractionInProgress {
		return nil
	}
	sess.Stage = model.StageHumanReview
	sess.AppendTurn("assistant", "Extraction finished. Please review the parsed rows and submit corrections for anything that looks wrong.", nil)
	return s.cache.Put(ctx, sess)
}

// Finalize advances a reviewed session toward completion: human_review
// moves to final_validation, and final_validation to complete. The
// complete stage also marks the session's overall status complete.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*Reply, error) {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var msg string
	switch sess.Stage {
	case model.StageHumanReview:
		sess.Stage = model.StageFinalValidation
		msg = "Review recorded. One last check: confirm again and the contribution will be finalized."
	case model.StageFinalValidation:
		sess.Stage = model.StageComplete
		sess.Status = model.StatusComplete
		msg = "Contribution complete. Thank you — qualifying records are now eligible for the confirmed registry."
	default:
		return nil, model.NewValidationError("session is in stage %s; finalization requires %s or %s",
			sess.Stage, model.StageHumanReview, model.StageFinalValidation)
	}
	sess.AppendTurn("assistant", msg, nil)

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	zap.L().Info("session finalized step",
		zap.String("session_id", sess.ID),
		zap.String("stage", string(sess.Stage)),
	)
	return &Reply{SessionID: sess.ID, Stage: sess.Stage, Message: msg}, nil
}

// Abandon marks the session abandoned. Allowed from any stage.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Status = model.StatusAbandoned
	return s.cache.Put(ctx, sess)
}

// Get returns the full session document.
func (s *Service) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.cache.Get(ctx, sessionID)
}

// loadActive loads a session and rejects operations on terminal or
// abandoned sessions.
func (s *Service) loadActive(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage.Terminal() {
		return nil, model.NewValidationError("session %s is complete and accepts no further changes", sessionID)
	}
	if sess.Status == model.StatusAbandoned {
		return nil, model.NewValidationError("session %s was abandoned", sessionID)
	}
	return sess, nil
}

func confirmationPrompt(cs *model.ContentStructure) string {
	var b strings.Builder
	b.WriteString("Here's what I have so far: a ")
	b.WriteString(string(cs.Layout))
	if len(cs.Columns) > 0 {
		fmt.Fprintf(&b, " with %d described column(s):", len(cs.Columns))
		for _, col := range cs.Columns {
			fmt.Fprintf(&b, " %d=%s (%s);", col.Position, col.Description, col.DataType)
		}
	}
	b.WriteString(" Does that look right?")
	return b.String()
}

func methodList() string {
	methods := model.ValidMethods()
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
