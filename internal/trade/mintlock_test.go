package trade

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// TestKeyedLock_Basic
// ---------------------------------------------------------------------------
func TestKeyedLock_Basic(t *testing.T) {
	k := NewKeyedLock()

	assert.True(t, k.TryAcquire("MintA"))
	assert.False(t, k.TryAcquire("MintA"), "held lock cannot be taken again")
	assert.True(t, k.Held("MintA"))

	// Distinct mints never contend.
	assert.True(t, k.TryAcquire("MintB"))

	k.Release("MintA")
	assert.False(t, k.Held("MintA"))
	assert.True(t, k.TryAcquire("MintA"))
}

// ---------------------------------------------------------------------------
// TestKeyedLock_ReleaseUnheld
// ---------------------------------------------------------------------------
func TestKeyedLock_ReleaseUnheld(t *testing.T) {
	k := NewKeyedLock()
	k.Release("MintA")
	assert.True(t, k.TryAcquire("MintA"))
}

// ---------------------------------------------------------------------------
// TestKeyedLock_ConcurrentAcquire
// Exactly one winner per mint regardless of contention
// ---------------------------------------------------------------------------
func TestKeyedLock_ConcurrentAcquire(t *testing.T) {
	k := NewKeyedLock()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if k.TryAcquire("MintA") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
