// Package promotion decides whether extracted owner records may enter
// the confirmed registry, and performs the create-or-merge write.
package promotion

import (
	"strconv"
	"strings"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// PromotionType labels which confidence gate a record passed.
type PromotionType string

const (
	PromotedHumanVerified PromotionType = "human_verified"
	PromotedAutoHigh      PromotionType = "auto_high_confidence"
)

// Thresholds holds the confidence gates.
type Thresholds struct {
	Verified float64 // human-verified gate
	Auto     float64 // unverified gate
}

// DefaultThresholds are the standard confidence gates.
func DefaultThresholds() Thresholds {
	return Thresholds{Verified: 0.70, Auto: 0.90}
}

// ownerRoles are the role tags accepted as owner/slaveholder variants.
var ownerRoles = map[string]bool{
	"owner":        true,
	"slaveholder":  true,
	"slave_holder": true,
	"slave owner":  true,
	"slave_owner":  true,
	"enslaver":     true,
	"claimant":     true,
}

// namePlaceholders are denylisted tokens; a name containing any of them
// as a substring is treated as illegible regardless of confidence.
var namePlaceholders = []string{"unknown", "illegible", "unclear", "???", "n/a", "none"}

// federalDomains is the allow-list of institutional archive hosts that
// qualify as federal sources without a .gov domain.
var federalDomains = []string{
	"catalog.archives.gov",
	"chroniclingamerica.loc.gov",
	"www.loc.gov",
	"memory.loc.gov",
	"msa.maryland.gov",
	"freedmensbureau.com",
}

// federalDocTypes are document-type tags accepted as federal regardless
// of hosting domain.
var federalDocTypes = map[string]bool{
	"census_slave_schedule":   true,
	"freedmens_bureau_record": true,
	"federal_census":          true,
	"military_service_record": true,
	"tax_assessment":          true,
	"probate_record":          true,
}

// Qualify evaluates the promotion predicate in fixed order; the first
// failing condition is the rejection reason. On success it returns the
// promotion type that applied.
func Qualify(p model.ExtractedPerson, th Thresholds) (PromotionType, error) {
	if !ownerRoles[strings.ToLower(strings.TrimSpace(p.Role))] {
		return "", &model.QualificationRejected{Reason: "not an owner type: " + p.Role}
	}

	name := strings.TrimSpace(p.FullName)
	if len(name) < 2 || hasPlaceholder(name) {
		return "", &model.QualificationRejected{Reason: "illegible or unknown name: " + p.FullName}
	}

	if !IsFederalSource(p.SourceURL, p.SourceType) {
		return "", &model.QualificationRejected{Reason: "not a federal/government source: " + p.SourceURL}
	}

	if p.HumanVerified && p.Confidence >= th.Verified {
		return PromotedHumanVerified, nil
	}
	if p.Confidence >= th.Auto {
		return PromotedAutoHigh, nil
	}
	return "", &model.QualificationRejected{
		Reason: "confidence " + strconv.FormatFloat(p.Confidence, 'f', 2, 64) + " below promotion threshold",
	}
}

// IsFederalSource judges whether a source is institutionally trustworthy:
// any .gov domain, a member of the federal-domain allow-list, or a
// federal document-type tag.
func IsFederalSource(sourceURL, sourceType string) bool {
	lower := strings.ToLower(sourceURL)
	if strings.Contains(lower, ".gov") {
		return true
	}
	for _, d := range federalDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return federalDocTypes[strings.ToLower(strings.TrimSpace(sourceType))]
}

func hasPlaceholder(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range namePlaceholders {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
