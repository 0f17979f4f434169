package promotion

import "strings"

// SplitName derives first/last components from a historical record name.
// Ledger entries commonly use the inverted "Last, First" form; plain
// "First [Middle...] Last" is the fallback, and a single token is taken
// as a surname (many schedules list owners by surname only).
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	if i := strings.Index(full, ","); i >= 0 {
		last = strings.TrimSpace(full[:i])
		first = strings.TrimSpace(full[i+1:])
		return first, last
	}

	parts := strings.Fields(full)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CanonicalName normalizes a name for dedup comparison: trimmed,
// inner whitespace collapsed. Case folding happens in the store query.
func CanonicalName(full string) string {
	return strings.Join(strings.Fields(full), " ")
}
