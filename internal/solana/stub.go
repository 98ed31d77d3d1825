package solana

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Stub collaborators (for testing and stub mode)
// ---------------------------------------------------------------------------

// StubMetadataSource is an in-memory MetadataSource.
type StubMetadataSource struct {
	mu         sync.RWMutex
	tokens     []TokenRecord
	reports    map[Pubkey]*RugReport
	failMints  map[Pubkey]error
	listErr    error
	listHook   func() // runs mid-discovery, lets tests overlap scan cycles
	listCalls  int
	scoreCalls int
}

// NewStubMetadataSource creates an empty stub metadata source.
func NewStubMetadataSource() *StubMetadataSource {
	return &StubMetadataSource{
		reports:   make(map[Pubkey]*RugReport),
		failMints: make(map[Pubkey]error),
	}
}

// AddToken registers a discovered token and its risk report.
func (s *StubMetadataSource) AddToken(token TokenRecord, report *RugReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	if report != nil {
		s.reports[token.Mint] = report
	}
}

// SetTokens replaces the discovered-token list.
func (s *StubMetadataSource) SetTokens(tokens []TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
}

// FailRugScore makes CheckRugScore fail for the given mint.
func (s *StubMetadataSource) FailRugScore(mint Pubkey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMints[mint] = err
}

// FailDiscovery makes GetDiscoveredTokens fail with err (nil clears).
func (s *StubMetadataSource) FailDiscovery(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// SetDiscoveryHook installs a hook invoked mid-discovery, outside the
// stub's lock.
func (s *StubMetadataSource) SetDiscoveryHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listHook = fn
}

func (s *StubMetadataSource) GetDiscoveredTokens(_ context.Context) ([]TokenRecord, error) {
	s.mu.Lock()
	s.listCalls++
	err := s.listErr
	hook := s.listHook
	out := make([]TokenRecord, len(s.tokens))
	copy(out, s.tokens)
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StubMetadataSource) CheckRugScore(_ context.Context, mint Pubkey) (*RugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreCalls++
	if err, ok := s.failMints[mint]; ok {
		return nil, err
	}
	if report, ok := s.reports[mint]; ok {
		cp := *report
		return &cp, nil
	}
	return nil, fmt.Errorf("stub: no rug report for mint %s", mint)
}

// DiscoveryCalls returns how many times GetDiscoveredTokens was invoked.
func (s *StubMetadataSource) DiscoveryCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCalls
}

// ---------------------------------------------------------------------------

// StubWalletSource is an in-memory WalletSource.
type StubWalletSource struct {
	mu        sync.RWMutex
	connected bool
	balance   WalletBalance
	priceUSD  float64
	priceHook func() // runs during SOLPriceUSD, outside the stub's lock
}

// NewStubWalletSource creates a connected stub wallet with the given SOL balance.
func NewStubWalletSource(sol float64) *StubWalletSource {
	return &StubWalletSource{
		connected: true,
		balance: WalletBalance{
			SOL:    decimal.NewFromFloat(sol),
			Tokens: make(map[Pubkey]decimal.Decimal),
		},
		priceUSD: 150.0,
	}
}

// SetConnected toggles the connection status.
func (w *StubWalletSource) SetConnected(connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = connected
}

// SetSOLPrice sets the reported SOL/USD price.
func (w *StubWalletSource) SetSOLPrice(price float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.priceUSD = price
}

func (w *StubWalletSource) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *StubWalletSource) Balance(_ context.Context) (*WalletBalance, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return nil, fmt.Errorf("stub: wallet not connected")
	}
	cp := WalletBalance{SOL: w.balance.SOL, Tokens: make(map[Pubkey]decimal.Decimal, len(w.balance.Tokens))}
	for k, v := range w.balance.Tokens {
		cp.Tokens[k] = v
	}
	return &cp, nil
}

// SetPriceHook installs a hook invoked during price lookups. Lets tests
// overlap calls with lifecycle transitions.
func (w *StubWalletSource) SetPriceHook(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.priceHook = fn
}

func (w *StubWalletSource) SOLPriceUSD(_ context.Context) (float64, error) {
	w.mu.RLock()
	hook := w.priceHook
	price := w.priceUSD
	w.mu.RUnlock()

	if hook != nil {
		hook()
	}
	return price, nil
}

// ---------------------------------------------------------------------------

// StubTradeExecutor fabricates swap signatures without touching the network.
// Used for all trade execution outside live trading deployments.
type StubTradeExecutor struct {
	mu       sync.Mutex
	buyErr   error
	sellErr  error
	buys     []StubSwap
	sells    []StubSwap
	buyHook  func(mint Pubkey) // called while a buy is in flight, before returning
	sellHook func(mint Pubkey)
}

// StubSwap records one executed stub swap.
type StubSwap struct {
	Mint      Pubkey
	Amount    float64
	Signature Signature
}

// NewStubTradeExecutor creates an always-succeeding stub executor.
func NewStubTradeExecutor() *StubTradeExecutor {
	return &StubTradeExecutor{}
}

// FailBuys makes ExecuteBuy fail with err (nil clears).
func (e *StubTradeExecutor) FailBuys(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buyErr = err
}

// FailSells makes ExecuteSell fail with err (nil clears).
func (e *StubTradeExecutor) FailSells(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sellErr = err
}

// SetBuyHook installs a hook invoked mid-buy. Lets tests overlap calls.
func (e *StubTradeExecutor) SetBuyHook(fn func(mint Pubkey)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buyHook = fn
}

// SetSellHook installs a hook invoked mid-sell.
func (e *StubTradeExecutor) SetSellHook(fn func(mint Pubkey)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sellHook = fn
}

func (e *StubTradeExecutor) ExecuteBuy(_ context.Context, mint Pubkey, amountSol float64) (Signature, error) {
	e.mu.Lock()
	err := e.buyErr
	hook := e.buyHook
	e.mu.Unlock()

	if hook != nil {
		hook(mint)
	}
	if err != nil {
		return "", err
	}

	sig := Signature(fmt.Sprintf("STUB-BUY-%s", uuid.New().String()[:12]))
	e.mu.Lock()
	e.buys = append(e.buys, StubSwap{Mint: mint, Amount: amountSol, Signature: sig})
	e.mu.Unlock()
	return sig, nil
}

func (e *StubTradeExecutor) ExecuteSell(_ context.Context, mint Pubkey, amountToken float64) (Signature, error) {
	e.mu.Lock()
	err := e.sellErr
	hook := e.sellHook
	e.mu.Unlock()

	if hook != nil {
		hook(mint)
	}
	if err != nil {
		return "", err
	}

	sig := Signature(fmt.Sprintf("STUB-SELL-%s", uuid.New().String()[:12]))
	e.mu.Lock()
	e.sells = append(e.sells, StubSwap{Mint: mint, Amount: amountToken, Signature: sig})
	e.mu.Unlock()
	return sig, nil
}

// Buys returns a snapshot of executed buy swaps.
func (e *StubTradeExecutor) Buys() []StubSwap {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StubSwap, len(e.buys))
	copy(out, e.buys)
	return out
}

// Sells returns a snapshot of executed sell swaps.
func (e *StubTradeExecutor) Sells() []StubSwap {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StubSwap, len(e.sells))
	copy(out, e.sells)
	return out
}
