package scanning

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFixedResourceManager_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		rm := NewFixedResourceManager(5)

		if err := rm.Acquire(context.Background(), "device-1"); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}
		stats := rm.GetStats()
		if stats["active"] != 1 {
			t.Errorf("Expected 1 active slot, got %v", stats["active"])
		}
		if stats["available"] != 4 {
			t.Errorf("Expected 4 available slots, got %v", stats["available"])
		}

		rm.Release("device-1")
		if active := rm.GetStats()["active"]; active != 0 {
			t.Errorf("Expected 0 active slots after release, got %v", active)
		}
	})

	t.Run("resource exhaustion", func(t *testing.T) {
		rm := NewFixedResourceManager(2)
		ctx := context.Background()

		if err := rm.Acquire(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if err := rm.Acquire(ctx, "b"); err != nil {
			t.Fatal(err)
		}

		ctx3, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := rm.Acquire(ctx3, "c"); err == nil {
			t.Error("Expected timeout error, got success")
		}

		rm.Release("a")
		if err := rm.Acquire(ctx, "c"); err != nil {
			t.Errorf("Expected slot after release, got %v", err)
		}
	})

	t.Run("closed manager rejects", func(t *testing.T) {
		rm := NewFixedResourceManager(1)
		if err := rm.Close(); err != nil {
			t.Fatal(err)
		}
		if err := rm.Acquire(context.Background(), "late"); err == nil {
			t.Error("Expected error from closed manager")
		}
		if err := rm.Close(); err != nil {
			t.Errorf("Expected idempotent close, got %v", err)
		}
		if closed := rm.GetStats()["closed"]; closed != true {
			t.Errorf("Expected closed stats, got %v", closed)
		}
	})

	t.Run("zero capacity is raised to one", func(t *testing.T) {
		rm := NewFixedResourceManager(0)
		if available := rm.GetStats()["available"]; available != 1 {
			t.Errorf("Expected 1 available slot, got %v", available)
		}
	})
}

func TestFixedResourceManager_ReleaseUnknownKey(t *testing.T) {
	rm := NewFixedResourceManager(1)
	if err := rm.Acquire(context.Background(), "held"); err != nil {
		t.Fatal(err)
	}

	rm.Release("never-acquired")
	if active := rm.GetStats()["active"]; active != 1 {
		t.Errorf("Expected unknown release to be ignored, active=%v", active)
	}
}

func TestFixedResourceManager_ConcurrentBound(t *testing.T) {
	rm := NewFixedResourceManager(3)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("device-%d", i)
			if err := rm.Acquire(context.Background(), key); err != nil {
				t.Errorf("acquire %s: %v", key, err)
				return
			}
			time.Sleep(2 * time.Millisecond)
			rm.Release(key)
		}(i)
	}
	wg.Wait()

	stats := rm.GetStats()
	if peak := stats["peak"].(int); peak > 3 {
		t.Errorf("Expected at most 3 concurrent holders, saw %d", peak)
	}
	if stats["active"] != 0 {
		t.Errorf("Expected no active slots, got %v", stats["active"])
	}
}
