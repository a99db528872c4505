package runstore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	store := New(path)

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	store.Put(Run{ID: "run-1", Repo: "demo", Status: StatusQueued, CreatedAt: older})
	store.Put(Run{ID: "run-2", Repo: "demo", Status: StatusQueued, CreatedAt: newer})
	store.Put(Run{ID: "run-3", Repo: "other", Status: StatusQueued, CreatedAt: older})

	got, ok := store.Get("run-1")
	if !ok {
		t.Fatalf("expected run-1")
	}
	if got.Repo != "demo" || got.Status != StatusQueued {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}

	all := store.List()
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].ID != "run-2" {
		t.Fatalf("expected newest run first, got %s", all[0].ID)
	}

	demo := store.ListByRepo("demo")
	if len(demo) != 2 {
		t.Fatalf("expected 2 demo runs, got %d", len(demo))
	}
	for _, run := range demo {
		if run.Repo != "demo" {
			t.Fatalf("unexpected repo in listing: %+v", run)
		}
	}
}

func TestFileStoreUpdateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	store := New(path)
	store.Put(Run{ID: "run-1", Repo: "demo"})

	updated, ok := store.Update("run-1", func(r *Run) {
		r.Status = StatusComplete
		r.Progress = 100
		r.Symbols = 42
	})
	if !ok {
		t.Fatalf("expected update to find run-1")
	}
	if updated.Status != StatusComplete || updated.Progress != 100 {
		t.Fatalf("unexpected run after update: %+v", updated)
	}
	if !updated.Status.Terminal() {
		t.Fatalf("expected complete to be terminal")
	}
	store.Save()

	reloaded := New(path)
	got, ok := reloaded.Get("run-1")
	if !ok {
		t.Fatalf("expected run-1 after reload")
	}
	if got.Status != StatusComplete || got.Symbols != 42 {
		t.Fatalf("unexpected run after reload: %+v", got)
	}

	if _, ok := store.Update("missing", func(r *Run) {}); ok {
		t.Fatalf("expected update of missing run to fail")
	}
}

func TestStoreNilSafety(t *testing.T) {
	var store *Store
	store.EnsureLoaded()
	store.Save()
	store.Put(Run{ID: "x"})
	if _, ok := store.Get("x"); ok {
		t.Fatalf("expected nil store to hold nothing")
	}
	if runs := store.List(); runs != nil {
		t.Fatalf("expected nil listing, got %#v", runs)
	}
}

func TestNormalizeRunDefaults(t *testing.T) {
	run := normalizeRun(Run{ID: "  run-1 ", Repo: " demo ", Progress: 250})
	if run.ID != "run-1" || run.Repo != "demo" {
		t.Fatalf("expected trimmed fields: %+v", run)
	}
	if run.Status != StatusQueued {
		t.Fatalf("expected queued default, got %s", run.Status)
	}
	if run.Progress != 100 {
		t.Fatalf("expected progress clamp, got %d", run.Progress)
	}
}
