package pipeline

import (
	"sync"
	"testing"
	"time"
)

func TestPublishThenTake(t *testing.T) {
	p := New[int]()

	p.Publish("preview", 42)

	got, ok := p.TryTake("preview")
	if !ok {
		t.Fatal("TryTake() should find the published value")
	}
	if got != 42 {
		t.Errorf("TryTake() = %v, want 42", got)
	}
}

func TestTakeEmpty(t *testing.T) {
	p := New[int]()

	if _, ok := p.TryTake("preview"); ok {
		t.Error("TryTake() on empty pipeline should report not ok")
	}

	// Taking twice only yields once
	p.Publish("preview", 1)
	p.TryTake("preview")
	if _, ok := p.TryTake("preview"); ok {
		t.Error("second TryTake() should find nothing")
	}
}

func TestDropOldest(t *testing.T) {
	p := New[int]()

	// N publishes with no intervening take: only the newest survives
	for i := 0; i < 1000; i++ {
		p.Publish("preview", i)
	}

	got, ok := p.TryTake("preview")
	if !ok {
		t.Fatal("TryTake() should find a value")
	}
	if got != 999 {
		t.Errorf("TryTake() = %v, want most recent (999)", got)
	}
	if _, ok := p.TryTake("preview"); ok {
		t.Error("only one value should be retrievable")
	}
}

func TestConsumersAreIndependent(t *testing.T) {
	p := New[string]()

	p.Publish("camera1", "a")
	p.Publish("camera2", "b")

	if got, _ := p.TryTake("camera1"); got != "a" {
		t.Errorf("camera1 = %q, want a", got)
	}
	if got, _ := p.TryTake("camera2"); got != "b" {
		t.Errorf("camera2 = %q, want b", got)
	}
}

func TestDropCallback(t *testing.T) {
	var dropped []int
	p := NewWithDrop(func(v int) { dropped = append(dropped, v) })

	p.Publish("preview", 1)
	p.Publish("preview", 2)
	p.Publish("preview", 3)

	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Errorf("dropped = %v, want [1 2]", dropped)
	}
}

func TestClear(t *testing.T) {
	var dropped []int
	p := NewWithDrop(func(v int) { dropped = append(dropped, v) })

	p.Publish("camera1", 1)
	p.Publish("camera2", 2)
	p.Clear()

	if len(dropped) != 2 {
		t.Errorf("Clear() should hand both unread values to onDrop, got %v", dropped)
	}
	if _, ok := p.TryTake("camera1"); ok {
		t.Error("mailboxes should be empty after Clear()")
	}
}

// Publish must never block, no matter how fast the producer runs or how
// slow the consumer polls.
func TestPublishNeverBlocks(t *testing.T) {
	p := New[int]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100000; i++ {
			p.Publish("slow", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked with an unread slot")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	p := New[int]()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				p.Publish("preview", i)
			}
		}
	}()

	last := -1
	for j := 0; j < 1000; j++ {
		if v, ok := p.TryTake("preview"); ok {
			if v < last {
				t.Fatalf("observed stale value %d after %d", v, last)
			}
			last = v
		}
	}

	close(stop)
	wg.Wait()
}
