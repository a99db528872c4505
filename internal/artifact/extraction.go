package artifact

import (
	"sort"

	"codeatlas/internal/extract"
)

// ExtractionIn selects the snapshot files to run extractors over.
type ExtractionIn struct {
	Repo    string   `json:"repo"`
	Root    string   `json:"root"`
	Files   []string `json:"files"`
	Workers int      `json:"workers,omitempty"`
}

// Extraction aggregates per-file extractor output in snapshot file order.
// Skipped files are part of the artifact: a failed parse is reported, never
// silently dropped.
type Extraction struct {
	Schema  int                   `json:"schema_version"`
	Repo    string                `json:"repo"`
	Results []*extract.FileResult `json:"results"`
	Skipped []extract.Skipped     `json:"skipped,omitempty"`
}

// LanguageCounts tallies how many extracted files each language claims, most
// common first.
func (e *Extraction) LanguageCounts() []LangCount {
	counts := make(map[string]int)
	for _, res := range e.Results {
		if res == nil || res.Language == "" {
			continue
		}
		counts[res.Language]++
	}
	out := make([]LangCount, 0, len(counts))
	for lang, n := range counts {
		out = append(out, LangCount{Language: lang, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Language < out[j].Language
	})
	return out
}
