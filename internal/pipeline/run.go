package pipeline

import (
	"context"
	"fmt"
)

// Order is the canonical stage sequence of a documentation run.
var Order = []string{"ingest", "snapshot", "extract", "graph", "doc"}

// Span resolves from/until stage names against Order. Empty values mean the
// first and last stage respectively.
func Span(from, until string) ([]string, error) {
	lo, hi := 0, len(Order)-1
	if from != "" {
		i := stageIndex(from)
		if i < 0 {
			return nil, fmt.Errorf("pipeline: unknown stage %q", from)
		}
		lo = i
	}
	if until != "" {
		i := stageIndex(until)
		if i < 0 {
			return nil, fmt.Errorf("pipeline: unknown stage %q", until)
		}
		hi = i
	}
	if lo > hi {
		return nil, fmt.Errorf("pipeline: stage %q comes after %q", from, until)
	}
	return Order[lo : hi+1], nil
}

func stageIndex(key string) int {
	norm := normalizeKey(key)
	for i, k := range Order {
		if k == norm {
			return i
		}
	}
	return -1
}

// Run executes the stages from 'from' through 'until' in order. A canceled or
// timed-out context aborts the run; the artifact of an unfinished stage is
// never written, so a rerun picks up cleanly.
func Run(ctx context.Context, env *Env, from, until string) error {
	if env == nil || env.Resolver == nil {
		return fmt.Errorf("pipeline: resolver is not configured")
	}
	keys, err := Span(from, until)
	if err != nil {
		return err
	}
	emit := EmitterFrom(ctx)
	for i, key := range keys {
		spec, ok := env.Resolver.Get(key)
		if !ok {
			return fmt.Errorf("pipeline: unknown stage %s", key)
		}
		emit.Emit(RunEvent{
			Type:     EventTypeProgress,
			Stage:    key,
			Progress: i * 100 / len(keys),
			Message:  "running " + key,
		})
		if err := Execute(ctx, spec, env); err != nil {
			emit.Emit(RunEvent{Type: EventTypeError, Stage: key, Message: err.Error()})
			return fmt.Errorf("stage %s: %w", key, err)
		}
	}
	emit.Emit(RunEvent{Type: EventTypeComplete, Progress: 100, Message: "run complete"})
	return nil
}
