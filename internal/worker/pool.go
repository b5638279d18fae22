package worker

import (
	"sync"
	"time"
)

type workerMeta struct {
	ch        chan job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan job]*workerMeta
	min      int
	max      int
	running  int
	expiry   time.Duration
	closed   bool
	quit     chan struct{}
	runner   *Runner
}

const defaultWorkerIdle = 30 * time.Second

func newPool(minWorkers, maxWorkers int, idle time.Duration, runner *Runner) *pool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 0 {
		minWorkers = 0
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &pool{
		metadata: make(map[chan job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		quit:     make(chan struct{}),
		runner:   runner,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// newWorkerLocked registers a worker; the caller must hold p.mu.
func (p *pool) newWorkerLocked() (*worker, *workerMeta) {
	w := newWorker(p)
	meta := &workerMeta{ch: w.jobs, lastUsed: time.Now()}
	p.metadata[w.jobs] = meta
	p.running++
	return w, meta
}

// spawnWorker adds an idle worker, used to warm the pool up.
func (p *pool) spawnWorker() {
	p.mu.Lock()
	if p.closed || p.running >= p.max {
		p.mu.Unlock()
		return
	}
	w, meta := p.newWorkerLocked()
	meta.enqueued = true
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	w.start()
	p.cond.Signal()
}

// acquire returns an idle worker's channel, spawning one when below max and
// waiting otherwise. It returns nil once the pool is closed.
func (p *pool) acquire() chan job {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil
		}
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch
		}
		if p.running < p.max {
			w, meta := p.newWorkerLocked()
			w.start()
			return meta.ch
		}
		p.cond.Wait()
	}
}

// release puts a worker back in the idle queue. It reports false when the
// worker should exit instead.
func (p *pool) release(ch chan job) bool {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || p.closed {
		p.mu.Unlock()
		return false
	}
	if !meta.enqueued {
		meta.enqueued = true
		meta.lastUsed = time.Now()
		p.idle = append(p.idle, meta)
	}
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

// retire deletes a worker.
func (p *pool) retire(ch chan job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// popIdleLocked returns the first idle worker that is still alive.
func (p *pool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

// purgeStaleWorkers calls shutdownExpired whenever the idle timeout elapses.
func (p *pool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.shutdownExpired(time.Now())
		case <-p.quit:
			return
		}
	}
}

// shutdownExpired retires idle workers unused for longer than the expiry,
// keeping at least min alive.
func (p *pool) shutdownExpired(now time.Time) {
	var stale []*workerMeta

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- job{stop: true}
	}
}

// close stops idle workers now; busy ones exit after their current task.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for _, meta := range idle {
		meta.discarded = true
		meta.enqueued = false
	}
	close(p.quit)
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, meta := range idle {
		meta.ch <- job{stop: true}
	}
}
