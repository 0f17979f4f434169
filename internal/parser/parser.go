// Package parser turns a contributor's free-text description of a document
// into a partial ContentStructure. It is a pipeline of independent signal
// extractors; each returns only the signals it found, and merging never
// overwrites an already-known field with an absent one.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// Delta is the structured partial update extracted from one description.
// Zero-valued fields mean "no signal found", not "absent".
type Delta struct {
	Layout          model.LayoutKind
	Columns         []model.Column
	ScanQuality     string
	HandwritingKind string
	PartialView     bool
	PartialViewSeen bool // distinguishes "no signal" from "explicitly not partial"
}

// Parse runs every signal extractor over the text and returns the union
// of whatever was found. It never fails on unexpected input.
func Parse(text string) Delta {
	lower := strings.ToLower(text)

	d := Delta{
		Layout:          detectLayout(lower),
		Columns:         extractColumns(text),
		ScanQuality:     detectQuality(lower),
		HandwritingKind: detectHandwriting(lower),
	}
	if partial, seen := detectPartialView(lower); seen {
		d.PartialView = partial
		d.PartialViewSeen = true
	}

	// A column description implies tabular layout even without an explicit
	// layout keyword.
	if d.Layout == "" && len(d.Columns) > 0 {
		d.Layout = model.LayoutTable
	}
	return d
}

// Merge applies the delta to a structure without overwriting known fields.
func Merge(cs *model.ContentStructure, d Delta) {
	if cs.Layout == "" && d.Layout != "" {
		cs.Layout = d.Layout
	}
	for _, col := range d.Columns {
		cs.MergeColumn(col)
	}
	if cs.ScanQuality == "" && d.ScanQuality != "" {
		cs.ScanQuality = d.ScanQuality
	}
	if cs.HandwritingKind == "" && d.HandwritingKind != "" {
		cs.HandwritingKind = d.HandwritingKind
	}
	if d.PartialViewSeen {
		cs.PartialView = d.PartialView
	}
}

func detectLayout(lower string) model.LayoutKind {
	switch {
	case containsAny(lower, "table", "column", "row", "grid", "ledger"):
		return model.LayoutTable
	case containsAny(lower, "list", "listing", "enumeration"):
		return model.LayoutList
	case containsAny(lower, "paragraph", "narrative", "prose", "text document"):
		return model.LayoutProse
	case containsAny(lower, "form", "certificate"):
		return model.LayoutForm
	case containsAny(lower, "photograph", "image only", "just an image", "picture of"):
		return model.LayoutImageOnly
	}
	return ""
}

func detectQuality(lower string) string {
	switch {
	case containsAny(lower, "illegible", "unreadable", "can't read", "cannot read"):
		return "illegible"
	case containsAny(lower, "faded", "poor quality", "poor scan", "blurry", "damaged", "stained"):
		return "faded"
	case containsAny(lower, "clear", "good quality", "legible", "crisp", "high quality"):
		return "clear"
	}
	return ""
}

func detectHandwriting(lower string) string {
	switch {
	case strings.Contains(lower, "cursive"):
		return "cursive"
	case containsAny(lower, "handwritten", "handwriting", "hand written", "hand-written"):
		return "handwritten"
	case containsAny(lower, "typed", "typewritten", "typewriter"):
		return "typed"
	case containsAny(lower, "printed", "typeset", "print"):
		return "printed"
	}
	return ""
}

var columnsOfRe = regexp.MustCompile(`(\d+)\s+of\s+(?:the\s+)?(\d+)\s+columns`)

func detectPartialView(lower string) (partial bool, seen bool) {
	if containsAny(lower,
		"can only see", "only see part", "cut off", "cropped",
		"partial view", "partially visible", "rest is hidden",
	) {
		return true, true
	}
	// Explicit column-count mentions like "3 of the 7 columns".
	if m := columnsOfRe.FindStringSubmatch(lower); m != nil {
		visible, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if visible < total {
			return true, true
		}
	}
	if containsAny(lower, "full page", "whole page", "entire page", "complete view") {
		return false, true
	}
	return false, false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
