package stages

import (
	"context"
	"log"
	"path/filepath"

	"codeatlas/internal/artifact"
	"codeatlas/internal/extract"
	"codeatlas/internal/safeio"
)

// Extract runs the language extractors over the snapshot's source files in
// parallel. Broken files are reported as skipped, not failed.
type Extract struct {
	// FS overrides the checkout filesystem; a per-root one is built otherwise.
	FS *safeio.SafeFS
	// Registry overrides the extractor set; the root-aware default otherwise.
	Registry *extract.Registry
}

func (s Extract) Run(ctx context.Context, in artifact.ExtractionIn) (artifact.Extraction, error) {
	fs := s.FS
	if fs == nil {
		var err error
		fs, err = safeio.NewSafeFS(in.Root)
		if err != nil {
			return artifact.Extraction{}, err
		}
	}
	reg := s.Registry
	if reg == nil {
		reg = RegistryForRoot(in.Root, fs)
	}

	batch := extract.NewRunner().
		Registry(reg).
		Workers(in.Workers).
		FS(fs).
		Start(ctx, in.Root, in.Files)
	if err := batch.Wait(ctx); err != nil {
		return artifact.Extraction{}, err
	}
	results, err := batch.Results(ctx)
	if err != nil {
		return artifact.Extraction{}, err
	}
	skipped, err := batch.Skipped(ctx)
	if err != nil {
		return artifact.Extraction{}, err
	}
	log.Printf("Extract: %d files extracted, %d skipped", len(results), len(skipped))
	return artifact.Extraction{Schema: artifact.SchemaVersion, Repo: in.Repo, Results: results, Skipped: skipped}, nil
}

// RegistryForRoot builds the default extractor set, qualifying Go symbols
// with the checkout's module path when a go.mod is present.
func RegistryForRoot(root string, fs *safeio.SafeFS) *extract.Registry {
	module := ""
	if fs != nil {
		if b, err := fs.SafeReadFile(filepath.Join(root, "go.mod")); err == nil {
			module = extract.GoModulePath(b)
		}
	}
	return extract.NewRegistry(
		extract.NewPythonExtractor(),
		&extract.GoExtractor{Module: module},
		extract.NewJavaScriptExtractor(),
		extract.NewJacExtractor(),
	)
}
