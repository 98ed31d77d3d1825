package solana

import (
	"context"
)

// ---------------------------------------------------------------------------
// External collaborator contracts
// The bot core only ever talks to these interfaces. Implementations:
// LiveMetadataSource (real HTTP/WS providers), Stub* (testing and dry runs).
// ---------------------------------------------------------------------------

// MetadataSource supplies discovered-token records and per-token risk reports.
type MetadataSource interface {
	// GetDiscoveredTokens returns tokens listed since the last call window.
	GetDiscoveredTokens(ctx context.Context) ([]TokenRecord, error)

	// CheckRugScore fetches the risk report for a mint.
	CheckRugScore(ctx context.Context, mint Pubkey) (*RugReport, error)
}

// WalletSource exposes wallet connection status, balance and SOL price.
// The core only reads these, never mutates.
type WalletSource interface {
	// Connected reports whether a wallet is connected and usable.
	Connected() bool

	// Balance returns the current SOL + SPL token balances.
	Balance(ctx context.Context) (*WalletBalance, error)

	// SOLPriceUSD returns the current SOL/USD price.
	SOLPriceUSD(ctx context.Context) (float64, error)
}

// TradeExecutor submits buy/sell swaps to the network.
type TradeExecutor interface {
	// ExecuteBuy swaps amountSol SOL into the token. Returns the
	// transaction signature on success.
	ExecuteBuy(ctx context.Context, mint Pubkey, amountSol float64) (Signature, error)

	// ExecuteSell swaps amountToken of the token back into SOL.
	ExecuteSell(ctx context.Context, mint Pubkey, amountToken float64) (Signature, error)
}
