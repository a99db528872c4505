// Package stages holds the logic behind each pipeline stage. Every stage is a
// small struct whose Run maps one artifact input to one artifact output; the
// pipeline registry wires them together and handles caching.
package stages

import (
	"context"
	"log"

	"codeatlas/internal/artifact"
	"codeatlas/internal/ingest"
)

// Ingest brings the requested repository into the workspace, cloning it from
// GitHub unless it already points at a local checkout.
type Ingest struct{}

func (Ingest) Run(ctx context.Context, in artifact.IngestIn) (artifact.Manifest, error) {
	res, err := ingest.Ingest(ctx, in.Repo, in.ReposRoot, ingest.CloneOptions{
		Branch:   in.Branch,
		IfExists: in.IfExists,
	})
	if err != nil {
		return artifact.Manifest{}, err
	}
	log.Printf("Ingest: %s %s at %s", res.Status, res.RepoName, res.RepoPath)
	return artifact.Manifest{
		Schema:   artifact.SchemaVersion,
		Repo:     res.RepoName,
		RepoPath: res.RepoPath,
		URL:      res.URL,
		Branch:   in.Branch,
		Status:   res.Status,
	}, nil
}
