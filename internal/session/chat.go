package session

import (
	"context"
	"regexp"
	"strings"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/parser"
)

// Chat routes free text to the operation matching the session's current
// stage. It is routing sugar only; every branch delegates to a stage
// operation and performs no independent logic.
func (s *Service) Chat(ctx context.Context, sessionID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewValidationError("message text is required")
	}

	sess, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch sess.Stage {
	case model.StageURLAnalysis:
		return s.AnalyzeURL(ctx, sessionID)
	case model.StageContentDescription:
		return s.ProcessDescription(ctx, sessionID, text)
	case model.StageStructureConfirmation:
		if isAffirmative(text) {
			return s.ConfirmStructure(ctx, sessionID, true, nil)
		}
		if isNegative(text) {
			return s.ConfirmStructure(ctx, sessionID, false, nil)
		}
		// Anything else is treated as a further correction description.
		return s.describeCorrection(ctx, sessionID, text)
	case model.StageExtractionStrategy:
		if method, ok := matchMethod(text); ok {
			return s.StartExtraction(ctx, sessionID, method, nil)
		}
		return &Reply{
			SessionID: sessionID,
			Stage:     sess.Stage,
			Message:   "Which extraction method would you like? Options: " + methodList(),
		}, nil
	case model.StageHumanReview, model.StageFinalValidation:
		if isAffirmative(text) {
			return s.Finalize(ctx, sessionID)
		}
		return &Reply{
			SessionID: sessionID,
			Stage:     sess.Stage,
			Message:   "Submit corrections against the extraction job if anything looks wrong, or say yes to move on.",
		}, nil
	default:
		return &Reply{
			SessionID: sessionID,
			Stage:     sess.Stage,
			Message:   "The session is currently in stage " + string(sess.Stage) + "; check the extraction job status for progress.",
		}, nil
	}
}

// describeCorrection re-runs the description parser while the session is
// awaiting confirmation, merging corrections by column position.
func (s *Service) describeCorrection(ctx context.Context, sessionID, text string) (*Reply, error) {
	unlock := s.cache.Lock(sessionID)
	defer unlock()

	sess, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Structure == nil {
		sess.Structure = &model.ContentStructure{}
	}

	sess.AppendTurn("user", text, nil)
	// Re-parse and merge by position; corrections replace column fields.
	for _, col := range parser.Parse(text).Columns {
		sess.Structure.MergeColumn(col)
	}
	reply := &Reply{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Structure: sess.Structure,
		Message:   confirmationPrompt(sess.Structure),
	}
	sess.AppendTurn("assistant", reply.Message, nil)

	if err := s.cache.Put(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

var (
	affirmativeRe = regexp.MustCompile(`(?i)^\s*(yes|yep|yeah|y|correct|right|confirmed?|looks good|that's right)\b`)
	negativeRe    = regexp.MustCompile(`(?i)^\s*(no|nope|n|wrong|incorrect|not quite)\b`)
)

func isAffirmative(text string) bool { return affirmativeRe.MatchString(text) }
func isNegative(text string) bool    { return negativeRe.MatchString(text) }

// methodKeywords maps free-text hints to extraction methods, checked in
// order so more specific phrases win.
var methodKeywords = []struct {
	method   model.ExtractionMethod
	keywords []string
}{
	{model.MethodBrowserBasedOCR, []string{"browser_based_ocr", "browser"}},
	{model.MethodScreenshotUpload, []string{"screenshot_upload", "screenshot"}},
	{model.MethodManualText, []string{"manual_text", "paste", "type it"}},
	{model.MethodGuidedEntry, []string{"guided_entry", "guided", "walk me through"}},
	{model.MethodSampleLearn, []string{"sample_learn", "sample"}},
	{model.MethodCSVUpload, []string{"csv_upload", "csv", "spreadsheet"}},
	{model.MethodAutoOCR, []string{"auto_ocr", "ocr", "auto", "automatic"}},
}

func matchMethod(text string) (model.ExtractionMethod, bool) {
	lower := strings.ToLower(text)
	for _, mk := range methodKeywords {
		for _, kw := range mk.keywords {
			if strings.Contains(lower, kw) {
				return mk.method, true
			}
		}
	}
	return "", false
}
