package stages

import (
	"context"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"codeatlas/internal/artifact"
	"codeatlas/internal/scan"
)

// Snapshot walks the ingested checkout and records its shape: the file index,
// the rendered tree, and the README lead-in.
type Snapshot struct{}

func (Snapshot) Run(ctx context.Context, in artifact.SnapshotIn) (artifact.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Snapshot{}, err
	}
	opts := scan.Options{MaxDepth: in.MaxDepth, Gitignore: in.Gitignore}
	out := artifact.Snapshot{Schema: artifact.SchemaVersion, Repo: in.Repo, Root: in.Root}

	// The three walks are independent; each writes its own field.
	var g errgroup.Group
	g.Go(func() error {
		files, err := scan.Index(in.Root, opts)
		if err != nil {
			return err
		}
		out.Files = files
		return nil
	})
	g.Go(func() error {
		tree, err := scan.Tree(in.Root, opts)
		if err != nil {
			return err
		}
		out.Tree = tree
		return nil
	})
	g.Go(func() error {
		if name, ok := scan.FindReadme(in.Root); ok {
			out.ReadmeFile = name
		}
		if summary, ok := scan.SummarizeReadme(in.Root); ok {
			out.Readme = summary
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return artifact.Snapshot{}, err
	}

	if out.Tree != nil {
		out.FileCount, out.DirCount = out.Tree.Counts()
	}
	out.ExtCounts = extCounts(out.Files)
	log.Printf("Snapshot: indexed %d files under %s", len(out.Files), in.Root)
	return out, nil
}

// extCounts tallies extension frequencies, most common first.
func extCounts(files []scan.FileEntry) []artifact.ExtCount {
	counts := make(map[string]int)
	for _, f := range files {
		if f.Ext == "" {
			continue
		}
		counts[f.Ext]++
	}
	out := make([]artifact.ExtCount, 0, len(counts))
	for ext, n := range counts {
		out = append(out, artifact.ExtCount{Ext: ext, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	return out
}
