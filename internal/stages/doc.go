package stages

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"codeatlas/internal/artifact"
	"codeatlas/internal/render"
)

// Doc renders the final markdown document and writes it next to the other
// run artifacts.
type Doc struct {
	// Now is injectable for stable test output.
	Now func() time.Time
}

func (s Doc) Run(ctx context.Context, in artifact.DocIn) (artifact.Doc, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Doc{}, err
	}
	if in.Snapshot == nil || in.Graph == nil {
		return artifact.Doc{}, fmt.Errorf("stages: doc input is missing snapshot or graph")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	generatedAt := now()
	md := render.Markdown(in, generatedAt)

	if in.Out != "" {
		if err := os.MkdirAll(filepath.Dir(in.Out), 0o755); err != nil {
			return artifact.Doc{}, fmt.Errorf("stages: create doc dir: %w", err)
		}
		if err := os.WriteFile(in.Out, []byte(md), 0o644); err != nil {
			return artifact.Doc{}, fmt.Errorf("stages: write doc: %w", err)
		}
		log.Printf("Doc: wrote %s (%d bytes)", in.Out, len(md))
	}

	return artifact.Doc{
		Schema:      artifact.SchemaVersion,
		Repo:        in.Repo,
		Path:        in.Out,
		Markdown:    md,
		GeneratedAt: generatedAt,
		Symbols:     in.Graph.Stats.Symbols,
		Files:       in.Snapshot.FileCount,
	}, nil
}
