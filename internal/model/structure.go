package model

// LayoutKind classifies the overall layout of a source document.
type LayoutKind string

const (
	LayoutTable     LayoutKind = "table"
	LayoutList      LayoutKind = "list"
	LayoutProse     LayoutKind = "prose"
	LayoutForm      LayoutKind = "form"
	LayoutImageOnly LayoutKind = "image_only"
	LayoutMixed     LayoutKind = "mixed"
)

// ColumnType is the fixed vocabulary of inferred column data types.
type ColumnType string

const (
	ColOwnerName    ColumnType = "owner_name"
	ColEnslavedName ColumnType = "enslaved_name"
	ColDate         ColumnType = "date"
	ColAge          ColumnType = "age"
	ColLocation     ColumnType = "location"
	ColRemarks      ColumnType = "remarks"
	ColGender       ColumnType = "gender"
	ColUnknown      ColumnType = "unknown"
)

// Column describes one column of a tabular source. Position is 1-based
// and serves as the merge key for corrections.
type Column struct {
	Position    int        `json:"position"`
	Description string     `json:"description"`
	DataType    ColumnType `json:"data_type"`
	HeaderGuess string     `json:"header_guess,omitempty"`
}

// ContentStructure is the confirmed schema describing a document's layout.
type ContentStructure struct {
	Layout          LayoutKind `json:"layout,omitempty"`
	Columns         []Column   `json:"columns,omitempty"`
	ScanQuality     string     `json:"scan_quality,omitempty"`     // "clear", "faded", "illegible"
	HandwritingKind string     `json:"handwriting_kind,omitempty"` // "handwritten", "cursive", "printed", "typed"
	PartialView     bool       `json:"partial_view,omitempty"`
}

// ColumnAt returns the column with the given 1-based position, or nil.
func (cs *ContentStructure) ColumnAt(pos int) *Column {
	for i := range cs.Columns {
		if cs.Columns[i].Position == pos {
			return &cs.Columns[i]
		}
	}
	return nil
}

// MergeColumn inserts or updates a column keyed by position. Existing
// non-empty fields are only replaced by non-empty incoming values.
func (cs *ContentStructure) MergeColumn(col Column) {
	existing := cs.ColumnAt(col.Position)
	if existing == nil {
		cs.Columns = append(cs.Columns, col)
		sortColumns(cs.Columns)
		return
	}
	if col.Description != "" {
		existing.Description = col.Description
	}
	if col.DataType != "" && col.DataType != ColUnknown {
		existing.DataType = col.DataType
	}
	if col.HeaderGuess != "" {
		existing.HeaderGuess = col.HeaderGuess
	}
}

// Complete reports whether enough structure is known to leave the
// description stage: layout is known and, for tables, at least one
// column has been described.
func (cs *ContentStructure) Complete() bool {
	if cs.Layout == "" {
		return false
	}
	if cs.Layout == LayoutTable && len(cs.Columns) == 0 {
		return false
	}
	return true
}

func sortColumns(cols []Column) {
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j].Position < cols[j-1].Position; j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}
}
