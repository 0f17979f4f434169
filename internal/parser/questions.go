package parser

import (
	"fmt"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// FollowUps enumerates clarifying questions for a partially-described
// structure, in fixed priority order: missing column count first, then
// any column with an unknown type, then missing scan quality. An empty
// result means the description stage has everything it needs to ask for.
func FollowUps(cs *model.ContentStructure) []string {
	var questions []string

	if cs.Layout == "" {
		questions = append(questions,
			"Is the document laid out as a table, a list, or narrative text?")
	}

	if cs.Layout == model.LayoutTable && len(cs.Columns) == 0 {
		questions = append(questions,
			"How many columns does the table have, and what does each one contain?")
	}

	for _, col := range cs.Columns {
		if col.DataType == model.ColUnknown {
			questions = append(questions, fmt.Sprintf(
				"What kind of information is in column %d (%q)? For example: owner name, enslaved person's name, date, age, or location.",
				col.Position, col.Description))
		}
	}

	if cs.ScanQuality == "" {
		questions = append(questions,
			"How readable is the scan? Is the text clear, faded, or partly illegible?")
	}

	return questions
}
