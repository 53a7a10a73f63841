package wp

import (
	"context"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

// Pool runs tasks on a fixed set of workers. Tasks submitted with the same
// uid land on the same worker and therefore run in submission order.
type Pool struct {
	maxWorkers int
	taskQueues []chan func()
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	onPanic func(any)
}

type Option func(*Pool)

// WithPanicHandler receives the value of any task panic. The worker keeps
// running either way.
func WithPanicHandler(fn func(any)) Option {
	return func(p *Pool) {
		p.onPanic = fn
	}
}

func NewPool(maxWorkers int, queueBuffer int, opts ...Option) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueBuffer < 1 {
		queueBuffer = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueues: make([]chan func(), maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < maxWorkers; i++ {
		p.taskQueues[i] = make(chan func(), queueBuffer)
		p.wg.Add(1)
		go p.startWorker(p.taskQueues[i])
	}

	return p
}

// startWorker drains its queue until Stop closes it
func (p *Pool) startWorker(queue chan func()) {
	defer p.wg.Done()
	for task := range queue {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}

// Submit queues task on the worker owning uid. It reports false when the
// task was not accepted because it is nil or the pool is stopping.
func (p *Pool) Submit(uid string, task func()) bool {
	if task == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	idx := fnv1a.HashString64(uid) % uint64(p.maxWorkers)
	select {
	case p.taskQueues[idx] <- task:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Stop refuses new tasks, runs everything already queued and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Stop() {
	p.cancel()

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		for _, q := range p.taskQueues {
			close(q)
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.maxWorkers
}
