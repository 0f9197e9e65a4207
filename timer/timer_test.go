package timer

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wfunc/gamerisk/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func TestSchedule_FiresOnce(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	fired := make(chan struct{}, 1)
	manager.Schedule("once", 0, 0, func() {
		fired <- struct{}{}
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduled task did not fire")
	}

	// A one-shot task must not fire again.
	select {
	case <-fired:
		t.Fatal("One-shot task fired twice")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSchedule_Repeats(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	var count int64
	manager.Schedule("repeating", 0, 50*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&count) >= 3 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Repeating task fired %d times, expected at least 3", atomic.LoadInt64(&count))
}

func TestCancel(t *testing.T) {
	manager := NewManager()
	defer manager.Stop()

	var fired int64
	id := manager.Schedule("cancelled", 400*time.Millisecond, 0, func() {
		atomic.AddInt64(&fired, 1)
	})
	manager.Cancel(id)

	time.Sleep(800 * time.Millisecond)
	if atomic.LoadInt64(&fired) != 0 {
		t.Fatal("Cancelled task still fired")
	}
}

func TestStop(t *testing.T) {
	manager := NewManager()

	var fired int64
	manager.Schedule("after_stop", 400*time.Millisecond, 0, func() {
		atomic.AddInt64(&fired, 1)
	})
	manager.Stop()

	time.Sleep(800 * time.Millisecond)
	if atomic.LoadInt64(&fired) != 0 {
		t.Fatal("Task fired after the manager was stopped")
	}
}
