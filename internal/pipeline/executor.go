package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
)

// Execute builds input, applies force-from + strategy caching, runs, then
// invalidates downstream caches.
func Execute(ctx context.Context, spec StageSpec, env *Env) error {
	_, err := ExecuteWithResult(ctx, spec, env)
	return err
}

// ExecuteWithResult is the same as Execute but also returns the stage output.
// On a cache hit the output is the decoded artifact, not the original typed
// value; use Artifact to read stage outputs with their concrete types.
func ExecuteWithResult(ctx context.Context, spec StageSpec, env *Env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(spec.Requires) > 0 {
		visiting := make(map[string]bool)
		for _, r := range spec.Requires {
			if err := ensureArtifact(ctx, r, env, visiting); err != nil {
				return nil, err
			}
		}
	}

	deps := newDeps(env, spec.Key, spec.Requires)
	in, err := spec.BuildInput(ctx, deps)
	if err != nil {
		return nil, err
	}

	if unused := deps.verifyUsage(); len(unused) > 0 {
		switch env.DepsUsage {
		case DepsUsageIgnore:
			// no-op
		case DepsUsageWarn:
			log.Printf("WARNING: stage %s declared but did not use: %v", spec.Key, unused)
		default:
			return nil, fmt.Errorf("stage %s declared but did not use: %v", spec.Key, unused)
		}
	}

	fp := spec.Fingerprint(in, env)

	if out, ok := spec.Strategy.TryLoad(ctx, spec, env, fp); ok {
		return out, nil
	}

	out, err := spec.Run(ctx, in, env)
	if err != nil {
		return nil, err
	}

	if err := spec.Strategy.Save(ctx, spec, env, out, fp); err != nil {
		return nil, err
	}

	// If forced, invalidate downstream caches so they rebuild from here.
	if env.ForceFrom != "" && normalizeKey(env.ForceFrom) == normalizeKey(spec.Key) && env.Resolver != nil {
		for _, d := range spec.Downstream {
			if ds, ok := env.Resolver.Get(d); ok {
				_ = ds.Strategy.Invalidate(ctx, ds, env)
			}
		}
	}
	return out, nil
}

func ensureArtifact(ctx context.Context, key string, env *Env, visiting map[string]bool) error {
	if env == nil || env.Resolver == nil {
		return fmt.Errorf("pipeline: resolver is not configured")
	}
	if normalizeKey(key) == "" {
		return fmt.Errorf("pipeline: empty required stage key")
	}
	spec, ok := env.Resolver.Get(key)
	if !ok {
		// Tolerate pre-seeded artifacts for keys no registry owns.
		fallback := filepath.Join(env.OutDir, normalizeKey(key)+".json")
		if FileExists(env.ArtifactFS, fallback) {
			return nil
		}
		return fmt.Errorf("pipeline: unknown required stage %s", key)
	}
	path := filepath.Join(env.OutDir, normalizeKey(spec.Key)+".json")
	if FileExists(env.ArtifactFS, path) {
		return nil
	}
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	specKey := normalizeKey(spec.Key)
	if visiting[specKey] {
		return fmt.Errorf("pipeline: cyclic stage dependency detected at %s", spec.Key)
	}
	visiting[specKey] = true
	defer delete(visiting, specKey)
	for _, r := range spec.Requires {
		if err := ensureArtifact(ctx, r, env, visiting); err != nil {
			return err
		}
	}
	if err := Execute(ctx, spec, env); err != nil {
		return fmt.Errorf("failed to build required stage %s: %w", spec.Key, err)
	}
	return nil
}
