package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"codeatlas/internal/safeio"
)

// Common helpers (hash, json, files).

// JSONFingerprint computes a stable short hash of any JSON-serializable value.
func JSONFingerprint(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum[:])[:16]
}

// FileExists checks if a file exists and is not a directory.
func FileExists(fs *safeio.SafeFS, path string) bool {
	fs = ensureFS(fs)
	fi, err := fs.SafeStat(path)
	return err == nil && !fi.IsDir()
}

// WriteJSON writes a value as indented JSON to a file.
func WriteJSON(dir, name string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_ = os.WriteFile(filepath.Join(dir, name), b, 0o644)
}

// Artifact loads a stage artifact from the out directory into the target type.
func Artifact[T any](env *Env, key string) (T, error) {
	var zero T
	if env == nil {
		return zero, fmt.Errorf("pipeline: env is nil")
	}
	norm := normalizeKey(key)
	if norm == "" {
		return zero, fmt.Errorf("pipeline: empty stage key")
	}
	name := norm + ".json"
	fs := ensureFS(env.ArtifactFS)
	b, err := fs.SafeReadFile(filepath.Join(env.OutDir, name))
	if err != nil {
		return zero, fmt.Errorf("pipeline: read artifact %s: %w", name, err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("pipeline: decode artifact %s: %w", name, err)
	}
	return out, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func ensureFS(fs *safeio.SafeFS) *safeio.SafeFS {
	if fs != nil {
		return fs
	}
	if dfs := safeio.Default(); dfs != nil {
		return dfs
	}
	log.Fatal("safe filesystem is not configured")
	return nil
}
