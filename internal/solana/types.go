package solana

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (base58 string).
type Pubkey string

// Signature is a Solana transaction signature.
type Signature string

// ---------------------------------------------------------------------------
// Token & risk-report types
// ---------------------------------------------------------------------------

// TokenRecord describes a newly listed token as reported by the metadata source.
type TokenRecord struct {
	Mint         Pubkey          `json:"mint"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	MarketCapUSD decimal.Decimal `json:"market_cap_usd"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	ListedAt     time.Time       `json:"listed_at"`
	Links        SocialLinks     `json:"links"`
}

// SocialLinks holds the token's published social media links.
// Empty string = not published.
type SocialLinks struct {
	Website  string `json:"website,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

// HolderInfo describes a token holder.
type HolderInfo struct {
	Address    Pubkey          `json:"address"`
	Balance    decimal.Decimal `json:"balance"`
	Percentage float64         `json:"percentage"` // % of total supply
}

// Verification is the external verification status of a token.
type Verification struct {
	Verified bool   `json:"verified"`
	Source   string `json:"source,omitempty"`
}

// RugReport is the per-token risk report from the analysis service.
// Score is 0-100, higher = riskier.
type RugReport struct {
	Mint         Pubkey          `json:"mint"`
	Score        float64         `json:"score"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	Verification *Verification   `json:"verification,omitempty"`
	TopHolders   []HolderInfo    `json:"top_holders"`
	Risks        []string        `json:"risks,omitempty"`
	IsRugged     bool            `json:"is_rugged"`
}

// NeutralRugScore is substituted when a risk lookup fails, so one bad
// lookup never aborts a whole scan cycle.
const NeutralRugScore = 50.0

// NeutralRugReport builds the fallback report for a failed lookup.
func NeutralRugReport(mint Pubkey) *RugReport {
	return &RugReport{Mint: mint, Score: NeutralRugScore}
}

// ---------------------------------------------------------------------------
// Wallet types
// ---------------------------------------------------------------------------

// WalletBalance represents the balance of a wallet.
type WalletBalance struct {
	SOL    decimal.Decimal            `json:"sol"`
	Tokens map[Pubkey]decimal.Decimal `json:"tokens"` // mint -> amount
}

// Well-known mints.
const (
	SOLMint  Pubkey = "So11111111111111111111111111111111111111112"
	USDCMint Pubkey = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)
