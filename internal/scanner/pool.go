package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/digimosa/hawk-scan/internal/models"
	"github.com/digimosa/hawk-scan/internal/sources"
)

// Pool runs scan tasks on a bounded number of goroutines and collects
// their findings. With a ceiling set, it stops accepting tasks once that
// many findings are collected; tasks already running still finish.
type Pool struct {
	g       errgroup.Group
	ceiling int
	stopped atomic.Bool

	mu       sync.Mutex
	findings []models.Finding
}

// NewPool creates a pool of workers goroutines. ceiling <= 0 disables quick exit.
func NewPool(workers, ceiling int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{ceiling: ceiling}
	p.g.SetLimit(workers)
	return p
}

// Submit blocks until a worker is free. It returns false without running
// t once the pool has stopped or ctx is done.
func (p *Pool) Submit(ctx context.Context, t sources.Task) bool {
	if p.stopped.Load() || ctx.Err() != nil {
		return false
	}
	p.g.Go(func() error {
		if p.stopped.Load() {
			return nil
		}
		p.add(t(ctx))
		return nil
	})
	return true
}

func (p *Pool) add(out []models.Finding) {
	if len(out) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.findings = append(p.findings, out...)
	if p.ceiling > 0 && len(p.findings) >= p.ceiling {
		p.stopped.Store(true)
	}
}

// Stopped reports whether the ceiling was reached.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Wait blocks until every accepted task has finished and returns the
// collected findings.
func (p *Pool) Wait() []models.Finding {
	p.g.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findings
}
