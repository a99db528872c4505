package artifact

import "codeatlas/internal/scan"

// SnapshotIn points the scan stage at an ingested repository.
type SnapshotIn struct {
	Repo      string `json:"repo"`
	Root      string `json:"root"`
	MaxDepth  int    `json:"max_depth,omitempty"`
	Gitignore bool   `json:"gitignore,omitempty"`
}

// Snapshot is the scanned shape of a repository: its indexed files, the
// rendered tree, and the README lead-in used for the doc overview.
type Snapshot struct {
	Schema     int              `json:"schema_version"`
	Repo       string           `json:"repo"`
	Root       string           `json:"root"`
	Files      []scan.FileEntry `json:"files"`
	Tree       *scan.TreeNode   `json:"tree,omitempty"`
	ReadmeFile string           `json:"readme_file,omitempty"`
	Readme     string           `json:"readme,omitempty"`
	FileCount  int              `json:"file_count"`
	DirCount   int              `json:"dir_count"`
	ExtCounts  []ExtCount       `json:"ext_counts,omitempty"`
}
