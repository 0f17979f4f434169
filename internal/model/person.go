package model

import "time"

// ExtractedPerson is a person record pulled out of an extraction job,
// normalized at the boundary so internal logic never branches on the
// backend's field-name variants. Ephemeral until promoted.
type ExtractedPerson struct {
	FullName      string  `json:"full_name"`
	Role          string  `json:"role"` // "owner", "slaveholder", "enslaved", ...
	Confidence    float64 `json:"confidence"`
	SourceURL     string  `json:"source_url"`
	SourceType    string  `json:"source_type,omitempty"` // document-type tag, e.g. "census_slave_schedule"
	HumanVerified bool    `json:"human_verified"`
	LeadID        string  `json:"lead_id,omitempty"` // staging record reference
}

// ConfirmedIndividual is the durable registry entity. Canonical full name
// is the dedup key (case-insensitive exact match); a second qualifying
// record with the same name merges provenance rather than inserting.
type ConfirmedIndividual struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	BirthYear   int       `json:"birth_year,omitempty"`
	DeathYear   int       `json:"death_year,omitempty"`
	Locations   []string  `json:"locations,omitempty"`
	Provenance  []string  `json:"provenance,omitempty"`
	SourceTrust string    `json:"source_trust"` // "primary", "secondary"
	Confidence  float64   `json:"confidence"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lead is an unconfirmed staging record awaiting manual review.
type Lead struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	SourceURL  string    `json:"source_url"`
	SourceType string    `json:"source_type,omitempty"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"` // "pending", "promoted", "rejected"
	ReviewedBy string    `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry records a promotion decision for later review.
type AuditEntry struct {
	ID           string    `json:"id"`
	IndividualID string    `json:"individual_id"`
	Action       string    `json:"action"` // "created", "updated"
	Reason       string    `json:"reason"`
	Confidence   float64   `json:"confidence"`
	SourceURL    string    `json:"source_url,omitempty"`
	Channel      string    `json:"channel,omitempty"` // confirmation channel, audit metadata
	CreatedAt    time.Time `json:"created_at"`
}
