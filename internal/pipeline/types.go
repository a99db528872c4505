package pipeline

import (
	"context"

	"codeatlas/internal/safeio"
)

// Env is the shared environment passed to stage builders.
type Env struct {
	Repo     string
	RepoRoot string
	OutDir   string

	Workers   int
	MaxDepth  int
	Gitignore bool
	Branch    string
	IfExists  string
	ReposRoot string
	DocOut    string

	RepoFS     *safeio.SafeFS
	ArtifactFS *safeio.SafeFS
	Resolver   SpecResolver

	ForceFrom string
	DepsUsage DepsUsageMode
}

// StageSpec declares what a stage needs, not how the app calls it.
type StageSpec struct {
	Key         string
	Description string

	// Requires lists the stage keys whose artifacts must exist before
	// BuildInput runs. Downstream is computed by MergeRegistries.
	Requires   []string
	Downstream []string

	BuildInput  func(ctx context.Context, deps Deps) (any, error)
	Run         func(ctx context.Context, in any, env *Env) (any, error)
	Fingerprint func(in any, env *Env) string
	Strategy    CacheStrategy
}

// CacheStrategy abstracts artifact persistence policies (json, versioned).
type CacheStrategy interface {
	// TryLoad returns (out, true) on a cache hit that is not forced.
	TryLoad(ctx context.Context, spec StageSpec, env *Env, inputFP string) (any, bool)
	// Save persists the stage result and its metadata.
	Save(ctx context.Context, spec StageSpec, env *Env, out any, inputFP string) error
	// Invalidate removes outputs/meta for this stage (downstream invalidation).
	Invalidate(ctx context.Context, spec StageSpec, env *Env) error
}
