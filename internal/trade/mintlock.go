package trade

import (
	"sync"

	"github.com/helix-trading/helix/internal/solana"
)

// KeyedLock is a non-blocking per-mint lock. TryAcquire either takes the
// lock immediately or reports it held; callers that lose surface a
// ConcurrencyError instead of queuing silently.
type KeyedLock struct {
	mu   sync.Mutex
	held map[solana.Pubkey]struct{}
}

// NewKeyedLock creates an empty keyed lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: make(map[solana.Pubkey]struct{})}
}

// TryAcquire takes the lock for mint if it is free. Returns false when
// another holder already has it.
func (k *KeyedLock) TryAcquire(mint solana.Pubkey) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, taken := k.held[mint]; taken {
		return false
	}
	k.held[mint] = struct{}{}
	return true
}

// Release frees the lock for mint. Releasing an unheld lock is a no-op.
func (k *KeyedLock) Release(mint solana.Pubkey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, mint)
}

// Held reports whether the lock for mint is currently taken.
func (k *KeyedLock) Held(mint solana.Pubkey) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, taken := k.held[mint]
	return taken
}
