package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/practicelab/relay/internal/metrics"
)

const (
	persistQueueSize = 256
	persistTimeout   = 10 * time.Second
)

type persistJob struct {
	op   string
	fn   func(ctx context.Context) error
	done chan struct{} // set for flush markers only
}

// Persister runs a session's store writes one at a time, in enqueue order, on
// a background goroutine. Failures are logged and counted; they never reach
// the session. All methods are nil-safe.
type Persister struct {
	ch      chan persistJob
	done    chan struct{}
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPersister starts the drain goroutine. Must call Close when done.
func NewPersister(log *slog.Logger) *Persister {
	if log == nil {
		log = slog.Default()
	}
	p := &Persister{
		ch:      make(chan persistJob, persistQueueSize),
		done:    make(chan struct{}),
		log:     log,
		timeout: persistTimeout,
	}
	go p.drain()
	return p
}

func (p *Persister) drain() {
	defer close(p.done)
	for job := range p.ch {
		p.handle(job)
	}
}

func (p *Persister) handle(job persistJob) {
	if job.done != nil {
		close(job.done)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := job.fn(ctx); err != nil {
		metrics.PersistErrors.WithLabelValues(job.op).Inc()
		p.log.Warn("persist failed", "op", job.op, "error", err)
	}
}

// Enqueue queues fn. Jobs enqueued after Close are dropped.
func (p *Persister) Enqueue(op string, fn func(ctx context.Context) error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn("persist after close dropped", "op", op)
		return
	}
	p.ch <- persistJob{op: op, fn: fn}
}

// Flush blocks until every job queued before the call has run.
func (p *Persister) Flush() {
	if p == nil {
		return
	}
	marker := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.ch <- persistJob{op: "flush", done: marker}
	p.mu.Unlock()
	<-marker
}

// Close drains pending writes and shuts down the background goroutine.
func (p *Persister) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()
	<-p.done
}
