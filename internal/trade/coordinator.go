package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/helix-trading/helix/internal/errs"
	"github.com/helix-trading/helix/internal/ledger"
	"github.com/helix-trading/helix/internal/observability"
	"github.com/helix-trading/helix/internal/solana"
)

// ---------------------------------------------------------------------------
// Trade Coordinator — serialized buy/sell execution per mint
// At most one in-flight buy and one in-flight sell per mint; completed
// trades trigger a ledger refresh. The coordinator never writes position
// or transaction collections directly, only through the ledger packages.
// ---------------------------------------------------------------------------

// Coordinator executes buys and sells against the trade executor and
// reconciles the position ledger and transaction history.
type Coordinator struct {
	executor  solana.TradeExecutor
	wallet    solana.WalletSource
	positions *ledger.Ledger
	txs       *ledger.Aggregator
	price     ledger.PriceFunc

	buyLocks  *KeyedLock
	sellLocks *KeyedLock

	mu         sync.RWMutex
	ready      func() bool
	onComplete func(op string, success bool)
	metrics    *observability.Metrics
}

// NewCoordinator creates a trade coordinator. price resolves the current
// USD price of a mint; it is consulted before a buy to size the position
// and during refresh to revalue open positions.
func NewCoordinator(executor solana.TradeExecutor, wallet solana.WalletSource, positions *ledger.Ledger, txs *ledger.Aggregator, price ledger.PriceFunc) *Coordinator {
	return &Coordinator{
		executor:  executor,
		wallet:    wallet,
		positions: positions,
		txs:       txs,
		price:     price,
		buyLocks:  NewKeyedLock(),
		sellLocks: NewKeyedLock(),
	}
}

// SetReadyGate installs the session gate checked before every trade.
func (c *Coordinator) SetReadyGate(fn func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = fn
}

// SetOnComplete installs the callback fired after every trade attempt.
func (c *Coordinator) SetOnComplete(fn func(op string, success bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// SetMetrics wires in prometheus instruments.
func (c *Coordinator) SetMetrics(m *observability.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// ExecuteBuy swaps amountSol into the token and opens or grows the
// position for mint. Returns the transaction signature as the trade id.
func (c *Coordinator) ExecuteBuy(ctx context.Context, mint solana.Pubkey, symbol string, amountSol float64) (string, error) {
	if amountSol <= 0 {
		return "", &errs.ValidationError{Field: "amountSol", Reason: "must be positive"}
	}
	if err := c.checkPreconditions("buy"); err != nil {
		return "", err
	}

	if !c.buyLocks.TryAcquire(mint) {
		c.countAttempt("buy", "concurrent")
		return "", &errs.ConcurrencyError{Op: "buy", Mint: string(mint)}
	}
	defer c.buyLocks.Release(mint)

	log.Info().
		Str("mint", string(mint)).
		Float64("amount_sol", amountSol).
		Msg("trade: executing buy")

	c.txs.Append(ledger.NewTransaction(mint, ledger.TxBuying,
		fmt.Sprintf("buying for %.4f SOL", amountSol)))

	// Resolve prices up front so a failed lookup aborts before the swap.
	tokenPrice, err := c.price(ctx, mint)
	if err != nil {
		return "", c.failTrade("buy", mint, fmt.Errorf("price lookup: %w", err))
	}
	solPrice, err := c.wallet.SOLPriceUSD(ctx)
	if err != nil {
		return "", c.failTrade("buy", mint, fmt.Errorf("sol price lookup: %w", err))
	}
	if !tokenPrice.IsPositive() || solPrice <= 0 {
		return "", c.failTrade("buy", mint, fmt.Errorf("non-positive price for mint"))
	}

	sig, err := c.executor.ExecuteBuy(ctx, mint, amountSol)
	if err != nil {
		return "", c.failTrade("buy", mint, err)
	}

	costSOL := decimal.NewFromFloat(amountSol)
	amountToken := costSOL.Mul(decimal.NewFromFloat(solPrice)).Div(tokenPrice)
	c.positions.ApplyBuy(mint, symbol, amountToken, costSOL, time.Now())

	bought := ledger.NewTransaction(mint, ledger.TxBought,
		fmt.Sprintf("bought %s tokens for %.4f SOL", amountToken.StringFixed(4), amountSol))
	bought.Signature = sig
	c.txs.Append(bought)

	log.Info().
		Str("mint", string(mint)).
		Str("signature", string(sig)).
		Str("amount_token", amountToken.String()).
		Msg("trade: buy complete")

	c.countAttempt("buy", "success")
	c.complete(ctx, "buy", true)
	return string(sig), nil
}

// SellPosition sells amount (or percentage of the position when amount is
// zero) back into SOL. Full sells remove the position from the ledger.
func (c *Coordinator) SellPosition(ctx context.Context, pos ledger.Position, amount decimal.Decimal, percentage float64) error {
	if amount.IsZero() && percentage > 0 {
		if percentage > 100 {
			return &errs.ValidationError{Field: "percentage", Reason: "must be in (0, 100]"}
		}
		amount = pos.Amount.Mul(decimal.NewFromFloat(percentage)).Div(decimal.NewFromInt(100))
	}
	if !amount.IsPositive() {
		return &errs.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if amount.GreaterThan(pos.Amount) {
		return &errs.ValidationError{Field: "amount", Reason: "exceeds position amount"}
	}
	if err := c.checkPreconditions("sell"); err != nil {
		return err
	}

	if !c.sellLocks.TryAcquire(pos.Mint) {
		c.countAttempt("sell", "concurrent")
		return &errs.ConcurrencyError{Op: "sell", Mint: string(pos.Mint)}
	}
	defer c.sellLocks.Release(pos.Mint)

	log.Info().
		Str("mint", string(pos.Mint)).
		Str("amount", amount.String()).
		Msg("trade: executing sell")

	c.txs.Append(ledger.NewTransaction(pos.Mint, ledger.TxSelling,
		fmt.Sprintf("selling %s %s", amount.StringFixed(4), pos.Symbol)))

	amountF, _ := amount.Float64()
	sig, err := c.executor.ExecuteSell(ctx, pos.Mint, amountF)
	if err != nil {
		return c.failTrade("sell", pos.Mint, err)
	}

	removed, err := c.positions.ApplySell(pos.Mint, amount)
	if err != nil {
		return c.failTrade("sell", pos.Mint, err)
	}

	success := ledger.NewTransaction(pos.Mint, ledger.TxSuccess,
		fmt.Sprintf("sold %s %s", amount.StringFixed(4), pos.Symbol))
	success.Signature = sig
	c.txs.Append(success)

	log.Info().
		Str("mint", string(pos.Mint)).
		Str("signature", string(sig)).
		Bool("position_closed", removed).
		Msg("trade: sell complete")

	c.countAttempt("sell", "success")
	c.complete(ctx, "sell", true)
	return nil
}

// Refresh revalues open positions and updates gauges. Safe to call
// concurrently; overlapping calls converge.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.positions.Refresh(ctx, c.price)

	c.mu.RLock()
	m := c.metrics
	c.mu.RUnlock()
	if m != nil {
		m.OpenPositions.Set(float64(c.positions.Count()))
		m.TxWindowSize.Set(float64(c.txs.Len()))
	}
}

func (c *Coordinator) checkPreconditions(op string) error {
	if !c.wallet.Connected() {
		return &errs.PreconditionError{Op: op, Reason: "wallet not connected"}
	}
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if ready != nil && !ready() {
		return &errs.PreconditionError{Op: op, Reason: "bot not initialized"}
	}
	return nil
}

// failTrade records the failed attempt and wraps the cause. The ledger is
// only written after a successful swap, so a failure leaves it untouched.
func (c *Coordinator) failTrade(op string, mint solana.Pubkey, cause error) error {
	log.Error().Err(cause).Str("mint", string(mint)).Str("op", op).Msg("trade: FAILED")

	c.txs.Append(ledger.NewTransaction(mint, ledger.TxError,
		fmt.Sprintf("%s failed: %v", op, cause)))
	c.countAttempt(op, "error")
	c.complete(context.Background(), op, false)
	return &errs.TransactionError{Op: op, Mint: string(mint), Err: cause}
}

func (c *Coordinator) complete(ctx context.Context, op string, success bool) {
	c.mu.RLock()
	cb := c.onComplete
	c.mu.RUnlock()
	if cb != nil {
		cb(op, success)
	}
	c.Refresh(ctx)
}

func (c *Coordinator) countAttempt(op, outcome string) {
	c.mu.RLock()
	m := c.metrics
	c.mu.RUnlock()
	if m != nil {
		m.TradeAttempts.WithLabelValues(op, outcome).Inc()
	}
}
