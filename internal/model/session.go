package model

import "time"

// Stage is the session's position in the fixed contribution pipeline.
type Stage string

const (
	StageURLAnalysis           Stage = "url_analysis"
	StageContentDescription    Stage = "content_description"
	StageStructureConfirmation Stage = "structure_confirmation"
	StageExtractionStrategy    Stage = "extraction_strategy"
	StageExtractionInProgress  Stage = "extraction_in_progress"
	StageHumanReview           Stage = "human_review"
	StageFinalValidation       Stage = "final_validation"
	StageComplete              Stage = "complete"
)

// stageOrder maps each stage to its pipeline position. Stages only
// advance forward except for explicit re-analysis requests.
var stageOrder = map[Stage]int{
	StageURLAnalysis:           0,
	StageContentDescription:    1,
	StageStructureConfirmation: 2,
	StageExtractionStrategy:    3,
	StageExtractionInProgress:  4,
	StageHumanReview:           5,
	StageFinalValidation:       6,
	StageComplete:              7,
}

// Valid reports whether the stage is one of the eight fixed values.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Terminal reports whether the stage accepts no further advances.
func (s Stage) Terminal() bool {
	return s == StageComplete
}

// Before reports whether s comes strictly before other in the pipeline.
func (s Stage) Before(other Stage) bool {
	a, ok := stageOrder[s]
	b, ok2 := stageOrder[other]
	return ok && ok2 && a < b
}

// SessionStatus tracks the overall disposition of a session, independent
// of its stage. Sessions are never hard-deleted.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusComplete   SessionStatus = "complete"
	StatusAbandoned  SessionStatus = "abandoned"
)

// ConversationTurn is one entry in a session's ordered conversation log.
type ConversationTurn struct {
	Role      string         `json:"role"` // "user", "assistant", "system"
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SourceMetadata is the URL analyzer's assessment of a source document.
type SourceMetadata struct {
	ArchiveKind    string   `json:"archive_kind,omitempty"` // e.g. "loc_chronicling", "nara_catalog"
	ContentType    string   `json:"content_type,omitempty"` // "html", "pdf", "image"
	PageTitle      string   `json:"page_title,omitempty"`
	EmbeddedDocURL string   `json:"embedded_doc_url,omitempty"`
	HasIframe      bool     `json:"has_iframe,omitempty"`
	HasPagination  bool     `json:"has_pagination,omitempty"`
	StatusCode     int      `json:"status_code,omitempty"`
	Errors         []string `json:"errors,omitempty"` // non-fatal fetch/parse failures
}

// ExtractionGuidance is the derived difficulty assessment and recommended
// extraction method for a confirmed structure.
type ExtractionGuidance struct {
	Difficulty        string `json:"difficulty"` // "low", "medium", "high"
	Score             int    `json:"score"`
	RecommendedMethod string `json:"recommended_method"`
	RequiresReview    bool   `json:"requires_review"`
	Rationale         string `json:"rationale,omitempty"`
}

// Session is one end-to-end human-guided contribution conversation tied
// to a single source URL.
type Session struct {
	ID            string              `json:"id"`
	SourceURL     string              `json:"source_url"`
	ContributorID string              `json:"contributor_id,omitempty"`
	Stage         Stage               `json:"stage"`
	Status        SessionStatus       `json:"status"`
	History       []ConversationTurn  `json:"history"`
	Metadata      *SourceMetadata     `json:"metadata,omitempty"`
	Structure     *ContentStructure   `json:"structure,omitempty"`
	Guidance      *ExtractionGuidance `json:"guidance,omitempty"`
	Instructions  string              `json:"instructions,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// AppendTurn adds a conversation entry to the session history.
func (s *Session) AppendTurn(role, text string, meta map[string]any) {
	s.History = append(s.History, ConversationTurn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	})
}
