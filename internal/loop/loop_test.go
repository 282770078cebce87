package loop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsPostedFunctionsInOrder(t *testing.T) {
	l := New()
	defer l.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	l.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 calls, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("call %d ran out of order: got %d", i, v)
		}
	}
}

func TestLoopDoWaitsForResult(t *testing.T) {
	l := New()
	defer l.Close()

	var result int
	l.Do(func() { result = 42 })
	if result != 42 {
		t.Fatalf("expected Do to block until fn ran, got %d", result)
	}
}

func TestLoopEveryStops(t *testing.T) {
	l := New()
	defer l.Close()

	var ticks atomic.Int32
	fired := make(chan struct{}, 16)
	task := l.Every(5*time.Millisecond, func() {
		ticks.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}

	l.Do(task.Stop)
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	l.Do(func() {})

	if got := ticks.Load(); got != after {
		t.Fatalf("expected no ticks after Stop, got %d more", got-after)
	}
}

func TestLoopCloseDropsLaterCalls(t *testing.T) {
	l := New()
	l.Close()

	ran := false
	l.Post(func() { ran = true })
	l.Do(func() { ran = true })
	if ran {
		t.Fatal("expected calls after Close to be dropped")
	}
	l.Close()
}
