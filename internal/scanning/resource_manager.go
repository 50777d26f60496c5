package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FixedResourceManager bounds how many devices are scanned at once with a
// fixed number of slots.
type FixedResourceManager struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	peak      int
	mutex     sync.RWMutex
	closed    bool
}

// NewFixedResourceManager creates a resource manager with the given capacity.
// Capacities below one are raised to one.
func NewFixedResourceManager(capacity int) *FixedResourceManager {
	if capacity <= 0 {
		capacity = 1
	}

	return &FixedResourceManager{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free for key or ctx is cancelled.
func (rm *FixedResourceManager) Acquire(ctx context.Context, key string) error {
	rm.mutex.RLock()
	closed := rm.closed
	rm.mutex.RUnlock()
	if closed {
		return fmt.Errorf("resource manager is closed")
	}

	select {
	case rm.semaphore <- struct{}{}:
		rm.mutex.Lock()
		rm.active[key] = time.Now()
		if len(rm.active) > rm.peak {
			rm.peak = len(rm.active)
		}
		rm.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot held by key. Releasing an unknown key is a no-op.
func (rm *FixedResourceManager) Release(key string) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if _, exists := rm.active[key]; !exists {
		return
	}
	delete(rm.active, key)

	select {
	case <-rm.semaphore:
	default:
	}
}

// Close releases every slot and rejects further acquisitions.
func (rm *FixedResourceManager) Close() error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if rm.closed {
		return nil
	}

	rm.closed = true
	rm.active = make(map[string]time.Time)

	for {
		select {
		case <-rm.semaphore:
		default:
			return nil
		}
	}
}

// GetStats returns slot statistics for logging.
func (rm *FixedResourceManager) GetStats() map[string]interface{} {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	return map[string]interface{}{
		"capacity":  rm.capacity,
		"active":    len(rm.active),
		"available": rm.capacity - len(rm.active),
		"peak":      rm.peak,
		"closed":    rm.closed,
	}
}
