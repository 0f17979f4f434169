package analyzer

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

// ArchivePattern maps a URL substring to an archive classification.
type ArchivePattern struct {
	Match       string `yaml:"match"`
	Kind        string `yaml:"kind"`
	ContentType string `yaml:"content_type"`
	Note        string `yaml:"note"`
}

type patternTable struct {
	Patterns []ArchivePattern `yaml:"patterns"`
}

var archivePatterns = mustLoadPatterns()

func mustLoadPatterns() []ArchivePattern {
	var t patternTable
	if err := yaml.Unmarshal(patternsYAML, &t); err != nil {
		panic("analyzer: invalid embedded pattern table: " + err.Error())
	}
	return t.Patterns
}

// classifyArchive returns the first pattern matching the URL, or nil.
// Patterns are ordered most-specific first in the table.
func classifyArchive(rawURL string) *ArchivePattern {
	lower := strings.ToLower(rawURL)
	for i := range archivePatterns {
		if strings.Contains(lower, archivePatterns[i].Match) {
			return &archivePatterns[i]
		}
	}
	return nil
}
