package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"6th": 6, "7th": 7, "8th": 8, "9th": 9, "10th": 10,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Ordinal-column phrases come in three shapes:
//
//	"the first column is ...", "2nd column shows ..."
//	"column 2 is ...", "column three has ..."
//	"the second is ..." (bare ordinal followed by a verb)
var columnPhraseRe = regexp.MustCompile(
	`(?i)\b(?:` +
		`(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|\d+(?:st|nd|rd|th))\s+column(?:\s+(?:is|contains|has|shows|lists))?` +
		`|column\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten)(?:\s+(?:is|contains|has|shows|lists))?` +
		`|(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\s+(?:is|contains|has|shows|lists)` +
		`)\s*`)

// extractColumns finds ordinal-column phrases and produces Column entries.
// The description of each column runs from the end of its phrase to the
// start of the next phrase or a sentence boundary.
func extractColumns(text string) []model.Column {
	matches := columnPhraseRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var cols []model.Column
	for i, m := range matches {
		pos := positionFromMatch(text, m)
		if pos == 0 {
			continue
		}

		descStart := m[1]
		descEnd := len(text)
		if i+1 < len(matches) {
			descEnd = matches[i+1][0]
		}
		desc := trimDescription(text[descStart:descEnd])
		if desc == "" {
			continue
		}

		cols = append(cols, model.Column{
			Position:    pos,
			Description: desc,
			DataType:    inferColumnType(strings.ToLower(desc)),
			HeaderGuess: guessHeader(desc),
		})
	}
	return cols
}

// positionFromMatch maps whichever capture group matched to a 1-based
// column position. Ordinal words and digit forms both resolve to integers.
func positionFromMatch(text string, m []int) int {
	for _, g := range []int{1, 2, 3} {
		start, end := m[2*g], m[2*g+1]
		if start < 0 {
			continue
		}
		tok := strings.ToLower(text[start:end])
		if n, ok := ordinalWords[tok]; ok {
			return n
		}
		if n, ok := numberWords[tok]; ok {
			return n
		}
		digits := strings.TrimRight(tok, "stndrh")
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func trimDescription(s string) string {
	s = strings.TrimSpace(s)
	// Cut at sentence boundaries and trailing conjunctions.
	if idx := strings.IndexAny(s, ".;"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " and the")
	s = strings.TrimSuffix(s, " and")
	s = strings.Trim(s, " ,:")
	s = strings.TrimPrefix(s, "the ")
	return strings.TrimSpace(s)
}

// typeKeywords is checked in order; owner-name keywords come before the
// generic "name" fallback so "owner name" never lands on a weaker tag.
var typeKeywords = []struct {
	kind     model.ColumnType
	keywords []string
}{
	{model.ColOwnerName, []string{"owner", "slaveholder", "slave holder", "enslaver", "master", "claimant"}},
	{model.ColEnslavedName, []string{"enslaved", "slave name", "slave's name", "freedman", "freedmen"}},
	{model.ColDate, []string{"date", "year", "month"}},
	{model.ColAge, []string{"age"}},
	{model.ColGender, []string{"gender", "sex"}},
	{model.ColLocation, []string{"location", "place", "county", "residence", "plantation", "district", "parish", "state"}},
	{model.ColRemarks, []string{"remarks", "notes", "comments", "observations", "description"}},
	{model.ColOwnerName, []string{"name"}},
}

// inferColumnType maps a lowercased column description to the fixed
// data-type vocabulary.
func inferColumnType(lowerDesc string) model.ColumnType {
	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lowerDesc, kw) {
				return tk.kind
			}
		}
	}
	return model.ColUnknown
}

var quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var allCapsRe = regexp.MustCompile(`\b[A-Z][A-Z]+(?:\s+[A-Z][A-Z]+)*\b`)

// guessHeader pulls a literal header guess from quoted text or an
// ALL-CAPS run in the original-cased description.
func guessHeader(desc string) string {
	if m := quotedRe.FindStringSubmatch(desc); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if m := allCapsRe.FindString(desc); m != "" {
		return m
	}
	return ""
}
