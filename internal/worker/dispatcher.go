package worker

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mooai/internal/metrics"
)

var (
	ErrRunnerClosed = errors.New("runner is shut down")
	ErrRunnerBusy   = errors.New("runner queue is full")
)

// Task is work that must finish after the HTTP response has been written.
// Tasks sharing a Key run in submission order; different keys take turns.
type Task struct {
	Key  string
	Name string
	Run  func(ctx context.Context) error
}

type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
	TaskTimeout time.Duration
}

type keyQueue struct {
	tasks    []Task
	enqueued bool
}

// fairQueue hands out tasks round robin across keys.
type fairQueue struct {
	queues    map[string]*keyQueue
	ready     *list.List // keys with pending tasks, least recently served first
	positions map[string]*list.Element
}

func newFairQueue() *fairQueue {
	return &fairQueue{
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}
}

func (q *fairQueue) push(t Task) {
	kq := q.queues[t.Key]
	if kq == nil {
		kq = &keyQueue{}
		q.queues[t.Key] = kq
	}
	kq.tasks = append(kq.tasks, t)
	if kq.enqueued {
		return
	}
	kq.enqueued = true
	q.positions[t.Key] = q.ready.PushBack(t.Key)
}

func (q *fairQueue) pop() (Task, bool) {
	elem := q.ready.Front()
	if elem == nil {
		return Task{}, false
	}
	key := elem.Value.(string)
	kq := q.queues[key]
	t := kq.tasks[0]
	kq.tasks = kq.tasks[1:]
	if len(kq.tasks) == 0 {
		kq.enqueued = false
		q.ready.Remove(elem)
		delete(q.positions, key)
		delete(q.queues, key)
	} else {
		q.ready.MoveToBack(elem)
	}
	return t, true
}

// Runner executes tasks on a bounded, self-shrinking pool of workers.
type Runner struct {
	pool    *pool
	queue   chan Task
	timeout time.Duration
	metrics *metrics.Metrics
	log     *slog.Logger

	mu       sync.Mutex
	pending  *fairQueue
	closed   bool
	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

func NewRunner(opts Options, m *metrics.Metrics, log *slog.Logger) *Runner {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		queue:   make(chan Task, opts.QueueSize),
		timeout: opts.TaskTimeout,
		metrics: m,
		log:     log,
		pending: newFairQueue(),
		done:    make(chan struct{}),
	}
	r.pool = newPool(opts.MinWorkers, opts.MaxWorkers, opts.IdleTimeout, r)

	for i := 0; i < opts.MinWorkers; i++ {
		r.pool.spawnWorker()
	}

	go r.run()
	return r
}

// WaitUntil schedules t and returns immediately. It never blocks the caller:
// a full queue is reported as ErrRunnerBusy.
func (r *Runner) WaitUntil(t Task) error {
	if t.Run == nil {
		return errors.New("task has no body")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	select {
	case r.queue <- t:
		return nil
	default:
		r.inflight.Done()
		return ErrRunnerBusy
	}
}

// Shutdown stops accepting tasks and waits for the accepted ones to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("drain background tasks: %w", ctx.Err())
	}
	r.stopOnce.Do(func() {
		close(r.done)
		r.pool.close()
	})
	return err
}

func (r *Runner) run() {
	for {
		if !r.dispatchOne() {
			select {
			case t := <-r.queue:
				r.enqueue(t)
			case <-r.done:
				return
			}
			continue
		}
		select {
		case t := <-r.queue:
			r.enqueue(t)
		default:
		}
	}
}

func (r *Runner) enqueue(t Task) {
	r.mu.Lock()
	r.pending.push(t)
	r.mu.Unlock()
}

// dispatchOne hands the next fair task to a worker.
func (r *Runner) dispatchOne() bool {
	r.mu.Lock()
	t, ok := r.pending.pop()
	r.mu.Unlock()
	if !ok {
		return false
	}

	ch := r.pool.acquire()
	if ch == nil {
		r.finish(t, ErrRunnerClosed)
		return true
	}
	ch <- job{task: t}
	return true
}

// execute runs a task with its own deadline. It is detached from any request
// context so the response can go out first.
func (r *Runner) execute(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("task %s panicked: %v", t.Name, rec)
			}
		}()
		err = t.Run(ctx)
	}()
	r.finish(t, err)
}

func (r *Runner) finish(t Task, err error) {
	defer r.inflight.Done()
	r.metrics.ObserveTask(t.Name, err)
	if err != nil {
		r.log.Error("background task failed", "task", t.Name, "key", t.Key, "error", err)
		return
	}
	r.log.Debug("background task done", "task", t.Name, "key", t.Key)
}
