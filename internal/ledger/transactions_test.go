package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-trading/helix/internal/solana"
)

func txAt(mint solana.Pubkey, status TxStatus, ts time.Time) Transaction {
	tx := NewTransaction(mint, status, "")
	tx.Timestamp = ts
	return tx
}

// ---------------------------------------------------------------------------
// TestAggregator_AppendDedup
// Duplicate (mint, status, timestamp) entries are dropped
// ---------------------------------------------------------------------------
func TestAggregator_AppendDedup(t *testing.T) {
	a := NewAggregator(10)
	ts := time.Now()

	assert.True(t, a.Append(txAt("MintA", TxBought, ts)))
	assert.False(t, a.Append(txAt("MintA", TxBought, ts)), "same key is a no-op")

	// A different status or timestamp is a distinct entry.
	assert.True(t, a.Append(txAt("MintA", TxSuccess, ts)))
	assert.True(t, a.Append(txAt("MintA", TxBought, ts.Add(time.Nanosecond))))

	assert.Equal(t, 3, a.Len())
}

// ---------------------------------------------------------------------------
// TestAggregator_MergeIdempotent
// Replaying the same batch converges to one copy of each entry
// ---------------------------------------------------------------------------
func TestAggregator_MergeIdempotent(t *testing.T) {
	a := NewAggregator(10)
	ts := time.Now()

	batch := []Transaction{
		txAt("MintA", TxBuying, ts),
		txAt("MintA", TxBought, ts.Add(time.Second)),
		txAt("MintB", TxBuying, ts.Add(2*time.Second)),
	}

	assert.Equal(t, 3, a.Merge(batch))
	assert.Equal(t, 0, a.Merge(batch))
	assert.Equal(t, 3, a.Len())
}

// ---------------------------------------------------------------------------
// TestAggregator_MergeConcurrent
// Overlapping merges of the same batch never double-count
// ---------------------------------------------------------------------------
func TestAggregator_MergeConcurrent(t *testing.T) {
	a := NewAggregator(100)
	ts := time.Now()

	batch := make([]Transaction, 0, 20)
	for i := 0; i < 20; i++ {
		mint := solana.Pubkey(fmt.Sprintf("Mint%02d", i))
		batch = append(batch, txAt(mint, TxBought, ts.Add(time.Duration(i)*time.Millisecond)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Merge(batch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, a.Len())
}

// ---------------------------------------------------------------------------
// TestAggregator_WindowEviction
// Oldest entries leave both the window and the dedup index
// ---------------------------------------------------------------------------
func TestAggregator_WindowEviction(t *testing.T) {
	a := NewAggregator(3)
	ts := time.Now()

	for i := 0; i < 5; i++ {
		a.Append(txAt("MintA", TxBought, ts.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, 3, a.Len())

	snap := a.Snapshot()
	assert.Equal(t, ts.Add(4*time.Second).UnixNano(), snap[0].Timestamp.UnixNano())
	assert.Equal(t, ts.Add(2*time.Second).UnixNano(), snap[2].Timestamp.UnixNano())

	// An evicted key is admissible again.
	assert.True(t, a.Append(txAt("MintA", TxBought, ts)))
}

// ---------------------------------------------------------------------------
// TestAggregator_SnapshotOrder
// ---------------------------------------------------------------------------
func TestAggregator_SnapshotOrder(t *testing.T) {
	a := NewAggregator(10)
	ts := time.Now()

	a.Append(txAt("MintA", TxBuying, ts))
	a.Append(txAt("MintB", TxBuying, ts.Add(2*time.Second)))
	a.Append(txAt("MintC", TxBuying, ts.Add(time.Second)))

	snap := a.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, solana.Pubkey("MintB"), snap[0].Mint)
	assert.Equal(t, solana.Pubkey("MintC"), snap[1].Mint)
	assert.Equal(t, solana.Pubkey("MintA"), snap[2].Mint)
}

// ---------------------------------------------------------------------------
// TestAggregator_ForMint
// ---------------------------------------------------------------------------
func TestAggregator_ForMint(t *testing.T) {
	a := NewAggregator(10)
	ts := time.Now()

	a.Append(txAt("MintA", TxBuying, ts))
	a.Append(txAt("MintB", TxBuying, ts.Add(time.Second)))
	a.Append(txAt("MintA", TxBought, ts.Add(2*time.Second)))

	forA := a.ForMint("MintA")
	require.Len(t, forA, 2)
	assert.Equal(t, TxBought, forA[0].Status)
	assert.Equal(t, TxBuying, forA[1].Status)

	assert.Empty(t, a.ForMint("MintZ"))
}

// ---------------------------------------------------------------------------
// TestAggregator_DefaultWindow
// ---------------------------------------------------------------------------
func TestAggregator_DefaultWindow(t *testing.T) {
	a := NewAggregator(0)
	ts := time.Now()

	for i := 0; i < DefaultTxWindow+50; i++ {
		a.Append(txAt("MintA", TxBought, ts.Add(time.Duration(i)*time.Millisecond)))
	}
	assert.Equal(t, DefaultTxWindow, a.Len())
}
