package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"codeatlas/internal/safeio"
)

// Runner configures parallel extraction over a set of files. Each file is
// handled independently by a pool of workers; aggregation happens in input
// order so repeated runs over the same snapshot produce identical results.
type Runner struct {
	reg     *Registry
	workers int
	fs      *safeio.SafeFS
}

func NewRunner() *Runner { return &Runner{} }

// Registry overrides the extractor registry. Defaults to DefaultRegistry.
func (r *Runner) Registry(reg *Registry) *Runner {
	if r == nil {
		return r
	}
	r.reg = reg
	return r
}

// Workers overrides the pool size. <=0 uses GOMAXPROCS.
func (r *Runner) Workers(n int) *Runner {
	if r == nil {
		return r
	}
	r.workers = n
	return r
}

// FS injects the filesystem used for reads. Defaults to safeio.Default().
func (r *Runner) FS(fs *safeio.SafeFS) *Runner {
	if r == nil {
		return r
	}
	r.fs = fs
	return r
}

// Start launches extraction of the given root-relative files and returns
// immediately. Results and Skipped block until every worker has finished;
// that same barrier is what the graph build waits on before resolving
// cross-file references.
func (r *Runner) Start(ctx context.Context, root string, files []string) *Batch {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := r.reg
	if reg == nil {
		reg = DefaultRegistry()
	}
	fs := r.fs
	if fs == nil {
		fs = safeio.Default()
	}
	workers := r.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers <= 0 {
			workers = 1
		}
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	b := &Batch{
		root:    root,
		files:   append([]string(nil), files...),
		results: make([]*FileResult, len(files)),
		reasons: make([]string, len(files)),
		reg:     reg,
		fs:      fs,
		doneCh:  make(chan struct{}),
	}
	if len(files) == 0 {
		b.doneOnce.Do(func() { close(b.doneCh) })
		return b
	}

	tasks := make(chan int, 256)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					b.setErr(ctx.Err())
					return
				case idx, ok := <-tasks:
					if !ok {
						return
					}
					b.extractOne(ctx, idx)
				}
			}
		}()
	}
	go func() {
		defer func() {
			close(tasks)
			wg.Wait()
			b.doneOnce.Do(func() { close(b.doneCh) })
		}()
		for i := range b.files {
			if err := ctx.Err(); err != nil {
				b.setErr(err)
				return
			}
			select {
			case <-ctx.Done():
				b.setErr(ctx.Err())
				return
			case tasks <- i:
			}
		}
	}()
	return b
}

// Batch is one extraction run in flight. Wait blocks until the pool drains.
type Batch struct {
	root  string
	files []string

	// results and reasons are indexed like files; each slot is written by
	// exactly one worker, so no lock is needed.
	results []*FileResult
	reasons []string

	reg *Registry
	fs  *safeio.SafeFS

	doneOnce sync.Once
	doneCh   chan struct{}

	errMu    sync.Mutex
	firstErr error
}

// Wait blocks until extraction completes or ctx is canceled. A non-nil error
// means the batch must not feed a graph: a canceled run leaves no partial
// snapshot behind.
func (b *Batch) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-b.doneCh:
		return b.getErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns per-file extraction output in input file order, skipped
// files omitted. It blocks until the batch completes.
func (b *Batch) Results(ctx context.Context) ([]*FileResult, error) {
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}
	out := make([]*FileResult, 0, len(b.results))
	for _, res := range b.results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// Skipped lists files that failed extraction, in input file order. The run
// itself is still considered successful.
func (b *Batch) Skipped(ctx context.Context) ([]Skipped, error) {
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}
	var out []Skipped
	for i, reason := range b.reasons {
		if reason != "" {
			out = append(out, Skipped{Path: b.files[i], Reason: reason})
		}
	}
	return out, nil
}

func (b *Batch) extractOne(ctx context.Context, idx int) {
	if err := ctx.Err(); err != nil {
		b.setErr(err)
		b.reasons[idx] = "canceled"
		return
	}
	path := b.files[idx]
	ex, ok := b.reg.ForPath(path)
	if !ok {
		b.reasons[idx] = "no extractor registered for " + filepath.Ext(path)
		return
	}
	if b.fs == nil {
		b.setErr(errors.New("extract: safe filesystem is not configured"))
		b.reasons[idx] = "filesystem not configured"
		return
	}
	src, err := b.fs.SafeReadFile(filepath.Join(b.root, path))
	if err != nil {
		b.reasons[idx] = fmt.Sprintf("read: %v", err)
		return
	}
	res, err := ex.Extract(ctx, path, src)
	if err != nil {
		if ctx.Err() != nil {
			b.setErr(ctx.Err())
		}
		b.reasons[idx] = err.Error()
		return
	}
	b.results[idx] = res
}

func (b *Batch) setErr(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	if b.firstErr == nil {
		b.firstErr = err
	}
	b.errMu.Unlock()
}

func (b *Batch) getErr() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.firstErr
}
