package artifact

import (
	"time"

	"codeatlas/internal/extract"
)

// DocIn bundles everything the final render stage needs.
type DocIn struct {
	Repo      string            `json:"repo"`
	URL       string            `json:"url,omitempty"`
	Out       string            `json:"out,omitempty"`
	Snapshot  *Snapshot         `json:"snapshot"`
	Graph     *Graph            `json:"graph"`
	Skipped   []extract.Skipped `json:"skipped,omitempty"`
	Languages []LangCount       `json:"languages,omitempty"`
}

// Doc is the rendered documentation for one repository snapshot.
type Doc struct {
	Schema      int       `json:"schema_version"`
	Repo        string    `json:"repo"`
	Path        string    `json:"path,omitempty"`
	Markdown    string    `json:"markdown"`
	GeneratedAt time.Time `json:"generated_at"`
	Symbols     int       `json:"symbols"`
	Files       int       `json:"files"`
}
