package worker

import (
	"testing"
	"time"
)

func waitForSize(t *testing.T, p *pool, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.size() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pool size = %d, want %d", p.size(), want)
}

func TestPoolRetiresExpiredWorkers(t *testing.T) {
	p := newPool(1, 3, time.Hour, nil)
	defer p.close()

	var chans []chan job
	for i := 0; i < 3; i++ {
		chans = append(chans, p.acquire())
	}
	if p.size() != 3 {
		t.Fatalf("expected 3 workers, got %d", p.size())
	}
	for _, ch := range chans {
		if !p.release(ch) {
			t.Fatalf("release reported closed pool")
		}
	}

	p.shutdownExpired(time.Now().Add(2 * time.Hour))
	waitForSize(t, p, 1)
}

func TestPoolKeepsFreshWorkers(t *testing.T) {
	p := newPool(0, 2, time.Hour, nil)
	defer p.close()

	ch := p.acquire()
	p.release(ch)
	p.shutdownExpired(time.Now())
	if p.size() != 1 {
		t.Fatalf("fresh worker must survive, size %d", p.size())
	}
}

func TestPoolReusesIdleWorker(t *testing.T) {
	p := newPool(0, 2, time.Hour, nil)
	defer p.close()

	first := p.acquire()
	p.release(first)
	if again := p.acquire(); again != first {
		t.Fatalf("expected idle worker to be reused")
	}
	if p.size() != 1 {
		t.Fatalf("expected a single worker, got %d", p.size())
	}
}

func TestPoolCloseStopsWorkers(t *testing.T) {
	p := newPool(2, 2, time.Hour, nil)
	p.spawnWorker()
	p.spawnWorker()
	if p.size() != 2 {
		t.Fatalf("expected 2 warm workers, got %d", p.size())
	}
	p.close()
	waitForSize(t, p, 0)
	if p.acquire() != nil {
		t.Fatalf("acquire on closed pool must return nil")
	}
	if p.release(make(chan job)) {
		t.Fatalf("release on closed pool must report false")
	}
}
