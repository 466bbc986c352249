// Package parallel runs batches of shader remapping work on a fixed set of
// goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs batches of work items on a fixed set of workers.
//
// Each worker has its own queue and steals from the other queues when its own
// is empty, so one slow stage does not hold back the rest of a batch.
//
// WorkerPool is safe for concurrent use. Close may race with ExecuteAll.
type WorkerPool struct {
	queues []chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	// mu orders submission against Close: items are only queued while
	// done is open, so the workers' final drain sees all of them.
	mu     sync.RWMutex
	closed bool

	// next is the round-robin start for the next batch.
	next atomic.Uint32
}

// NewWorkerPool starts a pool with the given number of workers. Zero or a
// negative count selects GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{
		queues: make([]chan func(), workers),
		done:   make(chan struct{}),
	}
	size := max(workers*4, 8)
	for i := range p.queues {
		p.queues[i] = make(chan func(), size)
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		}
	}
}

// drain runs what is left in q.
func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue.
func (p *WorkerPool) steal(id int) func() {
	for i, q := range p.queues {
		if i == id {
			continue
		}
		select {
		case fn := <-q:
			return fn
		default:
		}
	}
	return nil
}

// batch tracks one ExecuteAll call.
type batch struct {
	wg       sync.WaitGroup
	once     sync.Once
	panicked bool
	value    any
}

// wrap runs fn, recording the first panic of the batch.
func (b *batch) wrap(fn func()) func() {
	return func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.once.Do(func() {
					b.panicked = true
					b.value = r
				})
			}
		}()
		fn()
	}
}

// ExecuteAll runs every item and returns when all of them have completed.
//
// Items are spread round-robin over the workers. After Close they run on
// the calling goroutine. If an item panics, the remaining items still run
// and the first panic is raised again on the caller. Items must not call
// ExecuteAll on the same pool.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}

	b := &batch{}
	b.wg.Add(len(work))

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		for _, fn := range work {
			b.wrap(fn)()
		}
	} else {
		start := int(p.next.Add(1))
		for i, fn := range work {
			p.queues[(start+i)%len(p.queues)] <- b.wrap(fn)
		}
		p.mu.RUnlock()
	}

	b.wg.Wait()
	if b.panicked {
		panic(b.value)
	}
}

// Close waits for queued work to finish and stops the workers. Close is
// idempotent.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}
