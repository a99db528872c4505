package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"codeatlas/internal/artifact"
	"codeatlas/internal/extract"
	"codeatlas/internal/stages"
)

// BuildRegistry defines ingest→snapshot→extract→graph→doc.
// doc uses versionedStrategy; everything else caches by input fingerprint.
func BuildRegistry(env *Env) map[string]StageSpec {
	reg := map[string]StageSpec{}

	reg["ingest"] = StageSpec{
		Key:         "ingest",
		Description: "Clone the repository from GitHub, or locate an existing local checkout.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			return artifact.IngestIn{
				Repo:      deps.Repo(),
				Branch:    deps.Env().Branch,
				IfExists:  deps.Env().IfExists,
				ReposRoot: deps.Env().ReposRoot,
			}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (any, error) {
			return stages.Ingest{}.Run(ctx, in.(artifact.IngestIn))
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(artifact.IngestIn))
		},
		Strategy: jsonStrategy{},
	}

	reg["snapshot"] = StageSpec{
		Key:         "snapshot",
		Requires:    []string{"ingest"},
		Description: "Walk the checkout: file index, directory tree, README lead-in.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var manifest artifact.Manifest
			if err := deps.Artifact("ingest", &manifest); err != nil {
				return nil, err
			}
			// Prefer the resolved checkout name over the raw repo spec,
			// which may be a full clone URL.
			repo := manifest.Repo
			if repo == "" {
				repo = deps.Repo()
			}
			return artifact.SnapshotIn{
				Repo:      repo,
				Root:      manifest.RepoPath,
				MaxDepth:  deps.Env().MaxDepth,
				Gitignore: deps.Env().Gitignore,
			}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (any, error) {
			return stages.Snapshot{}.Run(ctx, in.(artifact.SnapshotIn))
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(artifact.SnapshotIn))
		},
		Strategy: jsonStrategy{},
	}

	reg["extract"] = StageSpec{
		Key:         "extract",
		Requires:    []string{"snapshot"},
		Description: "Parse every claimed source file into symbols and references, in parallel.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var snap artifact.Snapshot
			if err := deps.Artifact("snapshot", &snap); err != nil {
				return nil, err
			}
			sel := extract.DefaultRegistry()
			var files []string
			for _, f := range snap.Files {
				if _, ok := sel.ForPath(f.Path); ok {
					files = append(files, f.Path)
				}
			}
			// The sorted order keeps repeated runs over one snapshot aligned.
			sort.Strings(files)
			return artifact.ExtractionIn{
				Repo:    snap.Repo,
				Root:    snap.Root,
				Files:   files,
				Workers: deps.Env().Workers,
			}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (any, error) {
			return stages.Extract{FS: env.RepoFS}.Run(ctx, in.(artifact.ExtractionIn))
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(artifact.ExtractionIn))
		},
		Strategy: jsonStrategy{},
	}

	reg["graph"] = StageSpec{
		Key:         "graph",
		Requires:    []string{"extract"},
		Description: "Assemble the deduplicated symbol graph and resolve cross-file references.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var ext artifact.Extraction
			if err := deps.Artifact("extract", &ext); err != nil {
				return nil, err
			}
			return artifact.GraphIn{Repo: ext.Repo, Results: ext.Results}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (any, error) {
			return stages.Graph{}.Run(ctx, in.(artifact.GraphIn))
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(artifact.GraphIn))
		},
		Strategy: jsonStrategy{},
	}

	reg["doc"] = StageSpec{
		Key:         "doc",
		Requires:    []string{"ingest", "snapshot", "extract", "graph"},
		Description: "Render the markdown document from the snapshot and the finalized graph.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var manifest artifact.Manifest
			if err := deps.Artifact("ingest", &manifest); err != nil {
				return nil, err
			}
			var snap artifact.Snapshot
			if err := deps.Artifact("snapshot", &snap); err != nil {
				return nil, err
			}
			var ext artifact.Extraction
			if err := deps.Artifact("extract", &ext); err != nil {
				return nil, err
			}
			var g artifact.Graph
			if err := deps.Artifact("graph", &g); err != nil {
				return nil, err
			}
			out := deps.Env().DocOut
			if out == "" {
				out = filepath.Join(deps.Env().OutDir, "documentation.md")
			}
			repo := manifest.Repo
			if repo == "" {
				repo = deps.Repo()
			}
			return artifact.DocIn{
				Repo:      repo,
				URL:       manifest.URL,
				Out:       out,
				Snapshot:  &snap,
				Graph:     &g,
				Skipped:   ext.Skipped,
				Languages: ext.LanguageCounts(),
			}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (any, error) {
			return stages.Doc{}.Run(ctx, in.(artifact.DocIn))
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(artifact.DocIn))
		},
		Strategy: versionedStrategy{},
	}

	return reg
}

// DefaultResolver wires the standard registry into a resolver.
func DefaultResolver(env *Env) SpecResolver {
	return MergeRegistries(BuildRegistry(env))
}
