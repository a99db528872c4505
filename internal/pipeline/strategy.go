package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// --------------------- JSON file strategy ---------------------

type jsonStrategy struct{}

// JSONStrategy returns the standard JSON caching strategy.
func JSONStrategy() CacheStrategy { return jsonStrategy{} }

type cacheMeta struct {
	Inputs    string    `json:"inputs"`
	CreatedAt time.Time `json:"created_at"`
}

func (s jsonStrategy) TryLoad(ctx context.Context, spec StageSpec, env *Env, inputFP string) (any, bool) {
	if env.ForceFrom != "" && normalizeKey(env.ForceFrom) == normalizeKey(spec.Key) {
		return nil, false
	}
	fs := ensureFS(env.ArtifactFS)
	metaName := normalizeKey(spec.Key) + ".meta.json"
	outName := normalizeKey(spec.Key) + ".json"
	mb, err := fs.SafeReadFile(filepath.Join(env.OutDir, metaName))
	if err != nil {
		return nil, false
	}
	ob, err := fs.SafeReadFile(filepath.Join(env.OutDir, outName))
	if err != nil {
		return nil, false
	}
	var m cacheMeta
	if json.Unmarshal(mb, &m) == nil && m.Inputs == inputFP {
		var out any
		if json.Unmarshal(ob, &out) == nil {
			log.Printf("%s: using cache → %s", strings.ToUpper(spec.Key), outName)
			return out, true
		}
	}
	return nil, false
}

func (s jsonStrategy) Save(ctx context.Context, spec StageSpec, env *Env, out any, inputFP string) error {
	metaName := normalizeKey(spec.Key) + ".meta.json"
	outName := normalizeKey(spec.Key) + ".json"
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: encode %s: %w", outName, err)
	}
	if err := os.WriteFile(filepath.Join(env.OutDir, outName), b, 0o644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", outName, err)
	}
	mb, _ := json.MarshalIndent(cacheMeta{Inputs: inputFP, CreatedAt: time.Now()}, "", "  ")
	if err := os.WriteFile(filepath.Join(env.OutDir, metaName), mb, 0o644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", metaName, err)
	}
	log.Printf("%s → %s", strings.ToUpper(spec.Key), outName)
	return nil
}

func (s jsonStrategy) Invalidate(ctx context.Context, spec StageSpec, env *Env) error {
	_ = os.Remove(filepath.Join(env.OutDir, normalizeKey(spec.Key)+".json"))
	_ = os.Remove(filepath.Join(env.OutDir, normalizeKey(spec.Key)+".meta.json"))
	return nil
}

// --------------------- Versioned JSON strategy -------------------------

// versionedStrategy always writes a new versioned file and updates latest.
// Cache read is intentionally disabled (always rerun).
type versionedStrategy struct{}

// VersionedStrategy returns the versioned (no-cache) strategy.
func VersionedStrategy() CacheStrategy { return versionedStrategy{} }

func (versionedStrategy) TryLoad(ctx context.Context, spec StageSpec, env *Env, inputFP string) (any, bool) {
	// Never reuse cache for versioned stages.
	return nil, false
}

func (versionedStrategy) Save(ctx context.Context, spec StageSpec, env *Env, out any, inputFP string) error {
	// Always start at v1 for each run; overwrite v1 and latest, and prune
	// older versions best-effort.
	key := normalizeKey(spec.Key)
	versioned := fmt.Sprintf("%s_v1.json", key)
	latest := key + ".json"

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: encode %s: %w", latest, err)
	}
	if err := os.WriteFile(filepath.Join(env.OutDir, versioned), b, 0o644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", versioned, err)
	}
	if err := os.WriteFile(filepath.Join(env.OutDir, latest), b, 0o644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", latest, err)
	}
	mb, _ := json.MarshalIndent(cacheMeta{Inputs: inputFP, CreatedAt: time.Now()}, "", "  ")
	_ = os.WriteFile(filepath.Join(env.OutDir, key+".meta.json"), mb, 0o644)

	entries, _ := os.ReadDir(env.OutDir)
	re := regexp.MustCompile(fmt.Sprintf(`^%s_v(\d+)\.json$`, regexp.QuoteMeta(key)))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := re.FindStringSubmatch(e.Name()); len(m) == 2 && e.Name() != versioned {
			_ = os.Remove(filepath.Join(env.OutDir, e.Name()))
		}
	}
	log.Printf("%s → %s (reset to v1; updated %s)", strings.ToUpper(spec.Key), versioned, latest)
	return nil
}

func (versionedStrategy) Invalidate(ctx context.Context, spec StageSpec, env *Env) error {
	// No-op: keep versions; do not delete history.
	return nil
}
