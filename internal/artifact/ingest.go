package artifact

// IngestIn names the repository to bring in. Repo accepts an owner/repo
// shorthand, a full URL, or a local directory path.
type IngestIn struct {
	Repo      string `json:"repo"`
	Branch    string `json:"branch,omitempty"`
	IfExists  string `json:"if_exists,omitempty"`
	ReposRoot string `json:"repos_root,omitempty"`
}

// Manifest records where the ingested snapshot lives.
type Manifest struct {
	Schema   int    `json:"schema_version"`
	Repo     string `json:"repo"`
	RepoPath string `json:"repo_path"`
	URL      string `json:"url,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Status   string `json:"status"` // cloned | skipped | updated | local
}
