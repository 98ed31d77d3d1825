package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helix-trading/helix/internal/solana"
)

// ---------------------------------------------------------------------------
// Transaction Aggregator — time-ordered, deduplicated trade history
// ---------------------------------------------------------------------------

// TxStatus is the status of a logical trade attempt. Transitions are
// monotonic per attempt: Buying→Bought|Error, Selling→Success|Error.
type TxStatus string

const (
	TxBuying  TxStatus = "BUYING"
	TxBought  TxStatus = "BOUGHT"
	TxSelling TxStatus = "SELLING"
	TxSuccess TxStatus = "SUCCESS"
	TxError   TxStatus = "ERROR"
	TxPending TxStatus = "PENDING"
)

// Transaction is one append-only history entry.
type Transaction struct {
	ID        string           `json:"id"`
	Mint      solana.Pubkey    `json:"mint"`
	Status    TxStatus         `json:"status"`
	Details   string           `json:"details,omitempty"`
	Signature solana.Signature `json:"signature,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewTransaction builds an entry with a generated ID.
func NewTransaction(mint solana.Pubkey, status TxStatus, details string) Transaction {
	return Transaction{
		ID:        uuid.New().String(),
		Mint:      mint,
		Status:    status,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// txKey is the dedup key tolerating overlapping refresh calls.
type txKey struct {
	mint   solana.Pubkey
	status TxStatus
	ts     int64 // unix nanos
}

func keyOf(tx Transaction) txKey {
	return txKey{mint: tx.Mint, status: tx.Status, ts: tx.Timestamp.UnixNano()}
}

// Aggregator maintains the windowed transaction log. It is the sole
// writer of the collection; consumers read snapshots.
type Aggregator struct {
	mu    sync.Mutex
	limit int
	txs   []Transaction
	seen  map[txKey]struct{}
}

// DefaultTxWindow is the default history window size.
const DefaultTxWindow = 200

// NewAggregator creates an aggregator keeping at most limit entries.
// limit <= 0 falls back to DefaultTxWindow.
func NewAggregator(limit int) *Aggregator {
	if limit <= 0 {
		limit = DefaultTxWindow
	}
	return &Aggregator{
		limit: limit,
		seen:  make(map[txKey]struct{}),
	}
}

// Append records one transaction. Duplicates on (mint, status, timestamp)
// are dropped, so replaying the same entry is a no-op.
func (a *Aggregator) Append(tx Transaction) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appendLocked(tx)
}

// Merge records a batch of transactions. Safe to call concurrently with
// itself: overlapping merges of the same batch converge to one copy of
// each entry.
func (a *Aggregator) Merge(txs []Transaction) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, tx := range txs {
		if a.appendLocked(tx) {
			added++
		}
	}
	return added
}

func (a *Aggregator) appendLocked(tx Transaction) bool {
	key := keyOf(tx)
	if _, dup := a.seen[key]; dup {
		return false
	}
	a.seen[key] = struct{}{}
	a.txs = append(a.txs, tx)

	if len(a.txs) > a.limit {
		evicted := a.txs[:len(a.txs)-a.limit]
		for _, old := range evicted {
			delete(a.seen, keyOf(old))
		}
		a.txs = append([]Transaction(nil), a.txs[len(a.txs)-a.limit:]...)
	}
	return true
}

// Snapshot returns the log ordered newest first.
func (a *Aggregator) Snapshot() []Transaction {
	a.mu.Lock()
	out := make([]Transaction, len(a.txs))
	copy(out, a.txs)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ForMint returns the history entries for one mint, newest first.
func (a *Aggregator) ForMint(mint solana.Pubkey) []Transaction {
	all := a.Snapshot()
	out := make([]Transaction, 0, 4)
	for _, tx := range all {
		if tx.Mint == mint {
			out = append(out, tx)
		}
	}
	return out
}

// Len returns the current window length.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.txs)
}
