package rdmp

import "path"

// IngestionMatch is the advice returned to the ingest helper for one
// candidate filename.
type IngestionMatch struct {
	Matched bool     `json:"matched"`
	Pattern string   `json:"pattern,omitempty"`
	Prompts []string `json:"prompts"`
}

// MatchIngestion evaluates a filename against the document's ingestion file
// patterns. The first matching pattern wins; prompts are returned either way
// so the helper can collect metadata up front. Invalid patterns are skipped.
func MatchIngestion(rules IngestionRules, filename string) IngestionMatch {
	match := IngestionMatch{Prompts: rules.Prompts}
	base := path.Base(filename)
	for _, pattern := range rules.FilePatterns {
		ok, err := path.Match(pattern, base)
		if err != nil {
			continue
		}
		if ok {
			match.Matched = true
			match.Pattern = pattern
			return match
		}
	}
	return match
}
