package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/helix-trading/helix/internal/bus"
	"github.com/helix-trading/helix/internal/classify"
	"github.com/helix-trading/helix/internal/errs"
	"github.com/helix-trading/helix/internal/observability"
	"github.com/helix-trading/helix/internal/solana"
)

// ---------------------------------------------------------------------------
// Bot Controller — session state machine and scan scheduling
// Idle → Initializing → (initialized) Idle → Active ⇄ Paused → Stopped
// Exactly one session exists per controller; all mutation goes through
// the transition methods below.
// ---------------------------------------------------------------------------

// Mode is the operational mode of the bot session.
type Mode string

const (
	ModeIdle         Mode = "IDLE"
	ModeInitializing Mode = "INITIALIZING"
	ModeActive       Mode = "ACTIVE"
	ModePaused       Mode = "PAUSED"
	ModeStopped      Mode = "STOPPED"
)

// Stats are the session's derived statistics.
type Stats struct {
	ScansCompleted int64   `json:"scans_completed"`
	RulesActive    int     `json:"rules_active"`
	SuccessRate    float64 `json:"success_rate"` // successful trades / attempts, 0 with no attempts
	TriggeredBuys  int64   `json:"triggered_buys"`
	TradeAttempts  int64   `json:"trade_attempts"`
}

// Session is a read-only snapshot of the bot session.
type Session struct {
	Mode        Mode          `json:"mode"`
	Config      ScannerConfig `json:"config"`
	Initialized bool          `json:"initialized"`
	ActiveSince *time.Time    `json:"active_since,omitempty"`
	ActiveFor   time.Duration `json:"active_for"`
	Stats       Stats         `json:"stats"`
}

// scanFlight tracks one in-flight scan cycle. Concurrent triggers join
// the flight instead of starting a duplicate scan.
type scanFlight struct {
	done    chan struct{}
	results []classify.TokenScanResult
	err     error
}

// Controller owns the bot session.
type Controller struct {
	source solana.MetadataSource
	wallet solana.WalletSource
	events *bus.Bus

	mu          sync.Mutex
	mode        Mode
	initialized bool
	config      ScannerConfig

	activeSince time.Time // zero when not active
	activeTotal time.Duration

	scansCompleted int64
	triggeredBuys  int64
	tradeAttempts  int64
	tradeSuccess   int64

	// generation invalidates in-flight scans on pause/stop; a cycle whose
	// generation no longer matches must not mutate session state.
	generation uint64
	flight     *scanFlight

	results     map[solana.Pubkey]classify.TokenScanResult
	solPriceUSD float64 // last known, refreshed each cycle

	loopCancel context.CancelFunc
	loopWake   chan struct{}
	lastScan   time.Time // start of the most recent applied cycle

	onTransition func(from, to Mode)
	metrics      *observability.Metrics
}

// NewController creates an Idle controller. The controller owns the event
// bus passed in: Stop closes it and releases all subscriptions.
func NewController(source solana.MetadataSource, wallet solana.WalletSource, events *bus.Bus) *Controller {
	return &Controller{
		source:   source,
		wallet:   wallet,
		events:   events,
		mode:     ModeIdle,
		config:   DefaultScannerConfig(),
		results:  make(map[solana.Pubkey]classify.TokenScanResult),
		loopWake: make(chan struct{}, 1),
	}
}

// SetMetrics wires in prometheus instruments.
func (c *Controller) SetMetrics(m *observability.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// SetOnTransition installs a hook fired on every mode change. The hook runs
// with the controller's lock held and must not call back into it.
func (c *Controller) SetOnTransition(fn func(from, to Mode)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = fn
}

func (c *Controller) setModeLocked(to Mode) {
	from := c.mode
	if from == to {
		return
	}
	c.mode = to
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

// Events returns the controller's event bus for subscribers.
func (c *Controller) Events() *bus.Bus { return c.events }

// Initialized reports whether Initialize has succeeded. Used as the trade
// coordinator's ready gate.
func (c *Controller) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// Initialize verifies the wallet/connection prerequisites. On failure the
// session stays Idle and Initialize may be retried. Does not start scanning.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeIdle {
		c.mu.Unlock()
		return &errs.PreconditionError{Op: "initialize", Reason: fmt.Sprintf("not allowed in mode %s", c.mode)}
	}
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.setModeLocked(ModeInitializing)
	c.mu.Unlock()

	fail := func(reason string, cause error) error {
		c.mu.Lock()
		if c.mode == ModeInitializing {
			c.setModeLocked(ModeIdle)
		}
		c.mu.Unlock()
		log.Warn().Err(cause).Str("reason", reason).Msg("bot: initialization failed")
		return &errs.InitializationError{Reason: reason, Err: cause}
	}

	if !c.wallet.Connected() {
		return fail("wallet not connected", nil)
	}
	price, err := c.wallet.SOLPriceUSD(ctx)
	if err != nil {
		return fail("price source unavailable", err)
	}

	// Stop can land while the lock is released for wallet I/O. A mode that
	// is no longer Initializing wins: the outcome is discarded.
	c.mu.Lock()
	if c.mode != ModeInitializing {
		mode := c.mode
		c.mu.Unlock()
		return &errs.PreconditionError{Op: "initialize", Reason: fmt.Sprintf("aborted in mode %s", mode)}
	}
	c.initialized = true
	c.setModeLocked(ModeIdle)
	c.solPriceUSD = price
	c.mu.Unlock()

	log.Info().Float64("sol_price_usd", price).Msg("bot: initialized")
	return nil
}

// Start transitions to Active from initialized Idle or from Paused, and
// starts the scan loop when auto-scan is enabled.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return &errs.PreconditionError{Op: "start", Reason: "not initialized"}
	}
	if c.mode != ModeIdle && c.mode != ModePaused {
		return &errs.PreconditionError{Op: "start", Reason: fmt.Sprintf("not allowed in mode %s", c.mode)}
	}

	c.setModeLocked(ModeActive)
	c.activeSince = time.Now()
	if c.config.AutoScan {
		c.startLoopLocked()
	}

	log.Info().
		Dur("scan_interval", c.config.ScanInterval).
		Bool("auto_scan", c.config.AutoScan).
		Msg("bot: started")
	return nil
}

// Pause transitions Active → Paused. The scan loop stops, accumulated
// stats survive, and any in-flight scan is invalidated.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeActive {
		return &errs.PreconditionError{Op: "pause", Reason: fmt.Sprintf("not allowed in mode %s", c.mode)}
	}

	c.setModeLocked(ModePaused)
	c.activeTotal += time.Since(c.activeSince)
	c.activeSince = time.Time{}
	c.generation++
	c.stopLoopLocked()

	log.Info().Dur("active_total", c.activeTotal).Msg("bot: paused")
	return nil
}

// Stop transitions any state → Stopped, cancels pending scheduled scans,
// invalidates in-flight cycles, and releases all bus subscriptions.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.mode == ModeStopped {
		c.mu.Unlock()
		return
	}
	if c.mode == ModeActive {
		c.activeTotal += time.Since(c.activeSince)
		c.activeSince = time.Time{}
	}
	c.setModeLocked(ModeStopped)
	c.generation++
	c.stopLoopLocked()
	c.mu.Unlock()

	c.events.Close()
	log.Info().Msg("bot: stopped")
}

// UpdateScannerConfig atomically replaces the config. On a validation
// failure nothing is applied. An interval change while Active reschedules
// the next scan relative to the last cycle start, without drift.
func (c *Controller) UpdateScannerConfig(cfg ScannerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.config
	c.config = cfg

	if c.mode == ModeActive {
		switch {
		case cfg.AutoScan && c.loopCancel == nil:
			c.startLoopLocked()
		case !cfg.AutoScan && c.loopCancel != nil:
			c.stopLoopLocked()
		case cfg.ScanInterval != old.ScanInterval:
			c.wakeLoopLocked()
		}
	}

	log.Info().
		Dur("scan_interval", cfg.ScanInterval).
		Float64("max_rug_score", cfg.MaxRugScore).
		Msg("bot: scanner config updated")
	return nil
}

// RecordTradeResult feeds trade attempt outcomes into the session stats.
// Wired as the trade coordinator's completion callback.
func (c *Controller) RecordTradeResult(op string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tradeAttempts++
	if success {
		c.tradeSuccess++
	}
	if op == "buy" {
		c.triggeredBuys++
	}
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

// TriggerManualScan runs one scan cycle and blocks until it completes.
// Allowed in any non-Stopped state. A call made while a cycle is already
// outstanding joins that cycle and returns its eventual result instead of
// starting a duplicate scan.
func (c *Controller) TriggerManualScan(ctx context.Context) ([]classify.TokenScanResult, error) {
	c.mu.Lock()
	if c.mode == ModeStopped {
		c.mu.Unlock()
		return nil, &errs.PreconditionError{Op: "scan", Reason: "bot is stopped"}
	}
	if f := c.flight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.results, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &scanFlight{done: make(chan struct{})}
	c.flight = f
	gen := c.generation
	c.mu.Unlock()

	c.runScan(ctx, gen, f)
	return f.results, f.err
}

// runScan executes one scan cycle tagged with gen. Results are applied to
// session state only if gen still matches when they are ready.
func (c *Controller) runScan(ctx context.Context, gen uint64, f *scanFlight) {
	defer func() {
		c.mu.Lock()
		if c.flight == f {
			c.flight = nil
		}
		c.mu.Unlock()
		close(f.done)
	}()

	start := time.Now()

	c.mu.Lock()
	cfg := c.config
	solPrice := c.solPriceUSD
	c.mu.Unlock()

	tokens, err := c.source.GetDiscoveredTokens(ctx)
	if err != nil {
		f.err = fmt.Errorf("scan: discover tokens: %w", err)
		log.Error().Err(err).Msg("bot: scan cycle failed")
		return
	}

	// Refresh the SOL price once per cycle; keep the last known value on error.
	if price, perr := c.wallet.SOLPriceUSD(ctx); perr == nil && price > 0 {
		solPrice = price
	}

	// Pre-filter on liquidity before spending rug-check lookups. The
	// SOL-denominated threshold converts to USD here, once per cycle.
	candidates := make([]solana.TokenRecord, 0, len(tokens))
	minLiqUSD := decimal.NewFromFloat(cfg.MinLiquiditySOL * solPrice)
	for _, token := range tokens {
		if solPrice > 0 && token.LiquidityUSD.LessThan(minLiqUSD) {
			continue
		}
		candidates = append(candidates, token)
	}

	// Classification lookups run concurrently per token; each one is
	// independently awaited and a failure substitutes the neutral report.
	results := make([]classify.TokenScanResult, len(candidates))
	failures := make([]bool, len(candidates))
	var wg sync.WaitGroup
	for i, token := range candidates {
		wg.Add(1)
		go func(i int, token solana.TokenRecord) {
			defer wg.Done()
			report, rerr := c.source.CheckRugScore(ctx, token.Mint)
			if rerr != nil {
				log.Warn().Err(rerr).Str("mint", string(token.Mint)).Msg("bot: rug check failed, using neutral default")
				report = solana.NeutralRugReport(token.Mint)
				failures[i] = true
			}
			results[i] = classify.Scan(token, report, start)
		}(i, token)
	}
	wg.Wait()

	f.results = results

	// Apply: discard wholesale when the cycle's generation was superseded
	// by a pause/stop while classification was in flight.
	c.mu.Lock()
	if c.generation != gen || c.mode == ModeStopped {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.StaleScans.Inc()
		}
		log.Debug().Uint64("generation", gen).Msg("bot: discarding stale scan cycle")
		return
	}

	fresh := make([]classify.TokenScanResult, 0, len(results))
	highRisk := 0
	for _, r := range results {
		if _, known := c.results[r.Mint]; !known {
			fresh = append(fresh, r)
		}
		c.results[r.Mint] = r // replace, never merge
		if r.IsHighRisk {
			highRisk++
		}
	}
	c.scansCompleted++
	c.lastScan = start
	c.solPriceUSD = solPrice
	m := c.metrics
	c.mu.Unlock()

	for _, r := range fresh {
		c.events.Publish(bus.NewTokenEvent{
			BaseEvent:  bus.NewBaseEvent("bot"),
			Generation: gen,
			Result:     r,
		})
	}
	c.events.Publish(bus.ScanCompleteEvent{
		BaseEvent:   bus.NewBaseEvent("bot"),
		Generation:  gen,
		Results:     results,
		TokensFound: len(results),
		HighRisk:    highRisk,
		Duration:    time.Since(start),
	})

	if m != nil {
		m.ScansTotal.Inc()
		m.ScanDuration.Observe(time.Since(start).Seconds())
		m.TokensScanned.Add(float64(len(results)))
		m.HighRiskTokens.Add(float64(highRisk))
		for _, failed := range failures {
			if failed {
				m.ClassifyFailures.Inc()
			}
		}
	}

	log.Info().
		Int("tokens", len(results)).
		Int("new", len(fresh)).
		Int("high_risk", highRisk).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("bot: scan cycle complete")
}

// scanOnce is the loop's scan entry: join an outstanding flight or run one.
func (c *Controller) scanOnce(ctx context.Context) {
	c.mu.Lock()
	if c.mode != ModeActive {
		c.mu.Unlock()
		return
	}
	if f := c.flight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
		case <-ctx.Done():
		}
		return
	}
	f := &scanFlight{done: make(chan struct{})}
	c.flight = f
	gen := c.generation
	c.mu.Unlock()

	c.runScan(ctx, gen, f)
}

// runLoop schedules scans without drift: the next deadline is always
// anchored to the previous cycle start, so interval changes and slow
// cycles never accumulate offset.
func (c *Controller) runLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		interval := c.config.ScanInterval
		anchor := c.lastScan
		c.mu.Unlock()

		next := anchor.Add(interval)
		if anchor.IsZero() {
			next = time.Now() // first cycle fires immediately
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.loopWake:
			timer.Stop()
			continue // recompute the deadline from the new config
		case <-timer.C:
			c.scanOnce(ctx)
		}
	}
}

func (c *Controller) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	go c.runLoop(ctx)
}

func (c *Controller) stopLoopLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

func (c *Controller) wakeLoopLocked() {
	select {
	case c.loopWake <- struct{}{}:
	default:
	}
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Session{
		Mode:        c.mode,
		Config:      c.config,
		Initialized: c.initialized,
		ActiveFor:   c.activeTotal,
		Stats: Stats{
			ScansCompleted: c.scansCompleted,
			RulesActive:    c.config.RulesActive(),
			TriggeredBuys:  c.triggeredBuys,
			TradeAttempts:  c.tradeAttempts,
		},
	}
	if !c.activeSince.IsZero() {
		since := c.activeSince
		s.ActiveSince = &since
		s.ActiveFor += time.Since(since)
	}
	if c.tradeAttempts > 0 {
		s.Stats.SuccessRate = float64(c.tradeSuccess) / float64(c.tradeAttempts)
	}
	return s
}

// Tokens returns the latest classified snapshot of every scanned token,
// most recently scanned first.
func (c *Controller) Tokens() []classify.TokenScanResult {
	c.mu.Lock()
	out := make([]classify.TokenScanResult, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].ScannedAt.After(out[j].ScannedAt)
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// PriceOf returns the USD price from the latest classified snapshot of a
// mint, if one exists.
func (c *Controller) PriceOf(mint solana.Pubkey) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[mint]
	return r.PriceUSD, ok
}

// LowRiskTokens filters the scanned snapshot through the active config
// rules. High-risk and rugged tokens are always excluded.
func (c *Controller) LowRiskTokens() []classify.TokenScanResult {
	c.mu.Lock()
	cfg := c.config
	c.mu.Unlock()

	all := c.Tokens()
	out := make([]classify.TokenScanResult, 0, len(all))
	for _, r := range all {
		if r.IsHighRisk || r.IsRugged {
			continue
		}
		if r.RugScore > cfg.MaxRugScore {
			continue
		}
		if r.TopHolderConcentration > cfg.MaxTopHolderPct {
			continue
		}
		if cfg.OnlyVerified && !r.IsVerified {
			continue
		}
		out = append(out, r)
	}
	return out
}
