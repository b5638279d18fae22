package worker

type job struct {
	task Task
	stop bool
}

type worker struct {
	pool *pool
	jobs chan job
}

func newWorker(p *pool) *worker {
	return &worker{pool: p, jobs: make(chan job)}
}

func (w *worker) start() {
	go func() {
		for j := range w.jobs {
			if j.stop {
				w.pool.retire(w.jobs)
				return
			}
			w.pool.runner.execute(j.task)
			if !w.pool.release(w.jobs) {
				w.pool.retire(w.jobs)
				return
			}
		}
	}()
}
