package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helix-trading/helix/internal/solana"
)

// ---------------------------------------------------------------------------
// Position Ledger — the single writer for open positions
// ---------------------------------------------------------------------------

// Position is an open, partially-liquidatable holding of a token.
type Position struct {
	Mint            solana.Pubkey   `json:"mint"`
	Symbol          string          `json:"symbol"`
	Amount          decimal.Decimal `json:"amount"`
	BuyTime         time.Time       `json:"buy_time"`
	CostBasisSOL    decimal.Decimal `json:"cost_basis_sol"` // weighted mean, per token
	CurrentValueUSD decimal.Decimal `json:"current_value_usd"`
}

// PriceFunc resolves the current USD price of a mint during refresh.
type PriceFunc func(ctx context.Context, mint solana.Pubkey) (decimal.Decimal, error)

// Ledger tracks open positions. All mutation goes through ApplyBuy /
// ApplySell / Refresh; everything else reads snapshots.
type Ledger struct {
	mu        sync.RWMutex
	positions map[solana.Pubkey]*Position
}

// NewLedger creates an empty position ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[solana.Pubkey]*Position)}
}

// ApplyBuy upserts a position after a successful buy. An existing position
// for the mint gets its amount increased and its cost basis recomputed as
// the weighted mean of old and new.
func (l *Ledger) ApplyBuy(mint solana.Pubkey, symbol string, amountToken, costSOL decimal.Decimal, at time.Time) *Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[mint]
	if !ok {
		basis := decimal.Zero
		if amountToken.IsPositive() {
			basis = costSOL.Div(amountToken)
		}
		pos = &Position{
			Mint:         mint,
			Symbol:       symbol,
			Amount:       amountToken,
			BuyTime:      at,
			CostBasisSOL: basis,
		}
		l.positions[mint] = pos
		return snapshotOf(pos)
	}

	// Weighted mean: (oldBasis*oldAmount + costSOL) / (oldAmount + amountToken).
	totalCost := pos.CostBasisSOL.Mul(pos.Amount).Add(costSOL)
	totalAmount := pos.Amount.Add(amountToken)
	if totalAmount.IsPositive() {
		pos.CostBasisSOL = totalCost.Div(totalAmount)
	}
	pos.Amount = totalAmount
	pos.BuyTime = at
	return snapshotOf(pos)
}

// ApplySell decrements a position's amount after a successful sell.
// The position is removed when the amount reaches zero. Returns true
// when the position was removed.
func (l *Ledger) ApplySell(mint solana.Pubkey, amountToken decimal.Decimal) (removed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[mint]
	if !ok {
		return false, fmt.Errorf("ledger: no position for mint %s", mint)
	}
	if amountToken.GreaterThan(pos.Amount) {
		return false, fmt.Errorf("ledger: sell %s exceeds position amount %s", amountToken, pos.Amount)
	}

	pos.Amount = pos.Amount.Sub(amountToken)
	if pos.Amount.IsZero() {
		delete(l.positions, mint)
		return true, nil
	}
	return false, nil
}

// Get returns a snapshot of the position for a mint, if one is open.
func (l *Ledger) Get(mint solana.Pubkey) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[mint]
	if !ok {
		return Position{}, false
	}
	return *snapshotOf(pos), true
}

// Snapshot returns all open positions, most recent buy first.
func (l *Ledger) Snapshot() []Position {
	l.mu.RLock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *snapshotOf(pos))
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BuyTime.Equal(out[j].BuyTime) {
			return out[i].BuyTime.After(out[j].BuyTime)
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// Refresh recomputes current values from live prices. Overlapping calls
// converge to the same snapshot: each position's value is a pure function
// of its amount and the latest price, so the merge is idempotent.
// A failed price lookup leaves that position's value unchanged.
func (l *Ledger) Refresh(ctx context.Context, price PriceFunc) {
	if price == nil {
		return
	}

	l.mu.RLock()
	mints := make([]solana.Pubkey, 0, len(l.positions))
	for mint := range l.positions {
		mints = append(mints, mint)
	}
	l.mu.RUnlock()

	for _, mint := range mints {
		p, err := price(ctx, mint)
		if err != nil {
			continue
		}
		l.mu.Lock()
		if pos, ok := l.positions[mint]; ok {
			pos.CurrentValueUSD = pos.Amount.Mul(p)
		}
		l.mu.Unlock()
	}
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

func snapshotOf(pos *Position) *Position {
	cp := *pos
	return &cp
}
