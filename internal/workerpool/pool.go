// Package workerpool provides a bounded concurrent task runner for
// I/O-bound jobs (hashing, probing, frame extraction). A fixed set of
// worker goroutines drains a job channel; an outstanding-task ceiling
// applies true backpressure: Submit blocks while the ceiling is reached
// and never blocks on job execution itself.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("workerpool: submit after shutdown")

// Job is a unit of work. The context is the pool's cooperative stop flag;
// long jobs should check it between subprocess invocations.
type Job[R any] func(ctx context.Context) (R, error)

// Result pairs a job's value with its error.
type Result[R any] struct {
	Value R
	Err   error
}

// Handle represents the eventual result of a submitted job.
type Handle[R any] struct {
	done chan struct{}
	res  Result[R]
}

// Wait blocks until the job finishes and returns its result.
func (h *Handle[R]) Wait() (R, error) {
	<-h.done
	return h.res.Value, h.res.Err
}

// Done returns a channel closed when the job finishes.
func (h *Handle[R]) Done() <-chan struct{} {
	return h.done
}

// Stats is a point-in-time snapshot of pool bookkeeping.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	InFlight  int64
	Uptime    time.Duration
}

type task[R any] struct {
	job    Job[R]
	handle *Handle[R]
}

// Pool runs jobs on a fixed number of worker goroutines.
type Pool[R any] struct {
	name    string
	workers int
	ceiling int

	jobs  chan task[R]
	slots chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	start     time.Time
}

// DefaultWorkers returns the I/O-oriented default worker count, clamped to
// 4..8 regardless of how many CPUs the host (or cgroup) exposes.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0) * 2
	if n < 4 {
		n = 4
	}
	if n > 8 {
		n = 8
	}
	return n
}

// New creates a pool with the given worker count and outstanding-task
// ceiling. Non-positive workers selects DefaultWorkers; a non-positive
// ceiling applies a default of four outstanding tasks per worker.
func New[R any](name string, workers, maxOutstanding int) *Pool[R] {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if maxOutstanding <= 0 {
		maxOutstanding = workers * 4
	}
	if maxOutstanding < workers {
		maxOutstanding = workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[R]{
		name:    name,
		workers: workers,
		ceiling: maxOutstanding,
		// A slot is acquired before a task enters the jobs channel, so a
		// channel as large as the ceiling can never block a sender.
		jobs:   make(chan task[R], maxOutstanding),
		slots:  make(chan struct{}, maxOutstanding),
		ctx:    ctx,
		cancel: cancel,
		start:  time.Now(),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit enqueues one job and returns a handle for its eventual result.
// It blocks while the outstanding-task ceiling is reached, and only then.
func (p *Pool[R]) Submit(job Job[R]) (*Handle[R], error) {
	select {
	case p.slots <- struct{}{}:
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	h := &Handle[R]{done: make(chan struct{})}
	p.submitted.Add(1)
	metrics.PoolTasksInFlight.WithLabelValues(p.name).Inc()
	p.jobs <- task[R]{job: job, handle: h}
	p.mu.Unlock()

	return h, nil
}

// MapUnordered streams results as jobs complete, in completion order. It
// keeps a sliding window of workers+prefetch submissions outstanding and
// refills as each finishes, so arbitrarily large job sequences never
// materialize in memory. The returned channel closes once every job read
// from jobs has finished.
func (p *Pool[R]) MapUnordered(jobs <-chan Job[R], prefetch int) <-chan Result[R] {
	if prefetch <= 0 {
		prefetch = p.workers
	}
	window := p.workers + prefetch

	out := make(chan Result[R])
	go func() {
		defer close(out)

		sem := make(chan struct{}, window)
		var inner sync.WaitGroup
		for job := range jobs {
			sem <- struct{}{}
			h, err := p.Submit(job)
			if err != nil {
				<-sem
				out <- Result[R]{Err: err}
				continue
			}
			inner.Add(1)
			go func(h *Handle[R]) {
				defer inner.Done()
				v, err := h.Wait()
				out <- Result[R]{Value: v, Err: err}
				<-sem
			}(h)
		}
		inner.Wait()
	}()
	return out
}

// Map runs all jobs and returns their results. With preserveOrder, every
// job is submitted eagerly (still bounded by the ceiling) and results are
// awaited in submission order; otherwise it drains MapUnordered.
func (p *Pool[R]) Map(jobs []Job[R], preserveOrder bool) []Result[R] {
	if preserveOrder {
		handles := make([]*Handle[R], 0, len(jobs))
		results := make([]Result[R], 0, len(jobs))
		for _, job := range jobs {
			h, err := p.Submit(job)
			if err != nil {
				// Record the refusal in order and keep going so earlier
				// handles still resolve.
				handles = append(handles, nil)
				results = append(results, Result[R]{Err: err})
				continue
			}
			handles = append(handles, h)
			results = append(results, Result[R]{})
		}
		for i, h := range handles {
			if h == nil {
				continue
			}
			v, err := h.Wait()
			results[i] = Result[R]{Value: v, Err: err}
		}
		return results
	}

	in := make(chan Job[R])
	go func() {
		for _, job := range jobs {
			in <- job
		}
		close(in)
	}()

	results := make([]Result[R], 0, len(jobs))
	for r := range p.MapUnordered(in, 0) {
		results = append(results, r)
	}
	return results
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[R]) Stats() Stats {
	submitted := p.submitted.Load()
	completed := p.completed.Load()
	failed := p.failed.Load()
	inFlight := submitted - completed - failed
	if inFlight < 0 {
		inFlight = 0
	}
	return Stats{
		Submitted: submitted,
		Completed: completed,
		Failed:    failed,
		InFlight:  inFlight,
		Uptime:    time.Since(p.start),
	}
}

// Stopping returns the pool's cooperative stop context. Jobs receive it as
// their argument; it is canceled by Shutdown with cancelPending or by Stop.
func (p *Pool[R]) Stopping() <-chan struct{} {
	return p.ctx.Done()
}

// Stop cancels the cooperative stop flag without closing the pool. Running
// jobs observing the context should return; jobs queued but not yet started
// are failed with the canceled context instead of running, as with
// Shutdown's cancelPending.
func (p *Pool[R]) Stop() {
	p.cancel()
}

// Shutdown stops accepting submissions. With wait, it blocks until all
// in-flight jobs finish. With cancelPending, not-yet-started jobs are
// failed with context.Canceled instead of running, and running jobs see
// the stop flag. Safe to call multiple times.
func (p *Pool[R]) Shutdown(wait, cancelPending bool) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	if cancelPending {
		p.cancel()
	}
	if wait {
		p.wg.Wait()
	}
}

func (p *Pool[R]) worker(id int) {
	defer p.wg.Done()

	for t := range p.jobs {
		// Best-effort cancellation of jobs that never started.
		select {
		case <-p.ctx.Done():
			t.handle.res = Result[R]{Err: p.ctx.Err()}
			p.finish(t, true)
			continue
		default:
		}

		v, err := t.job(p.ctx)
		t.handle.res = Result[R]{Value: v, Err: err}
		if err != nil {
			logging.Debug("%s pool worker %d: task failed: %v", p.name, id, err)
		}
		p.finish(t, err != nil)
	}
}

func (p *Pool[R]) finish(t task[R], failed bool) {
	if failed {
		p.failed.Add(1)
		metrics.PoolTasksTotal.WithLabelValues(p.name, "failed").Inc()
	} else {
		p.completed.Add(1)
		metrics.PoolTasksTotal.WithLabelValues(p.name, "completed").Inc()
	}
	metrics.PoolTasksInFlight.WithLabelValues(p.name).Dec()
	close(t.handle.done)
	<-p.slots
}
