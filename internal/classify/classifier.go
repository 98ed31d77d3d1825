package classify

import (
	"time"

	"github.com/helix-trading/helix/internal/solana"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Risk Classifier — pure scoring of a discovered token + its rug report
// Identical inputs always produce identical output; re-scans are idempotent.
// ---------------------------------------------------------------------------

// Thresholds for the high-risk verdict. The market-cap floor is USD;
// SOL-denominated caps are converted before classification, not here.
const (
	HighRiskScore        = 65.0
	HighRiskTopHolderPct = 80.0
	MinSafeMarketCapUSD  = 100_000
)

// RiskAssessment is the derived risk view of a token.
type RiskAssessment struct {
	RugScore               float64 `json:"rug_score"`
	LiquidityLocked        bool    `json:"liquidity_locked"`
	IsVerified             bool    `json:"is_verified"`
	IsRugged               bool    `json:"is_rugged"`
	TopHolderConcentration float64 `json:"top_holder_concentration"`
	SocialMediaCount       int     `json:"social_media_count"`
	IsHighRisk             bool    `json:"is_high_risk"`
}

// TokenScanResult is a discovered token plus its risk assessment.
// Created on scan ingestion and replaced wholesale on re-classification,
// never partially mutated.
type TokenScanResult struct {
	Mint         solana.Pubkey   `json:"mint"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	MarketCapUSD decimal.Decimal `json:"market_cap_usd"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	ScannedAt    time.Time       `json:"scanned_at"`

	RiskAssessment
}

// Classify derives the risk assessment for a token record and its rug report.
// A nil report is treated as a failed lookup: the neutral default score is
// substituted so one bad lookup never poisons the batch.
func Classify(token solana.TokenRecord, report *solana.RugReport) RiskAssessment {
	if report == nil {
		report = solana.NeutralRugReport(token.Mint)
	}

	assessment := RiskAssessment{
		RugScore:        report.Score,
		LiquidityLocked: report.LiquidityUSD.GreaterThan(decimal.Zero),
		IsRugged:        report.IsRugged,
	}

	if report.Verification != nil {
		assessment.IsVerified = report.Verification.Verified
	}

	if len(report.TopHolders) > 0 {
		assessment.TopHolderConcentration = report.TopHolders[0].Percentage
	}

	assessment.SocialMediaCount = countSocials(token.Links)

	// Any single condition is sufficient.
	assessment.IsHighRisk = report.Score > HighRiskScore ||
		assessment.TopHolderConcentration > HighRiskTopHolderPct ||
		token.MarketCapUSD.LessThan(decimal.NewFromInt(MinSafeMarketCapUSD))

	return assessment
}

// Scan builds the full scan result for a token at the given instant.
func Scan(token solana.TokenRecord, report *solana.RugReport, at time.Time) TokenScanResult {
	return TokenScanResult{
		Mint:           token.Mint,
		Symbol:         token.Symbol,
		Name:           token.Name,
		PriceUSD:       token.PriceUSD,
		MarketCapUSD:   token.MarketCapUSD,
		LiquidityUSD:   token.LiquidityUSD,
		ScannedAt:      at,
		RiskAssessment: Classify(token, report),
	}
}

func countSocials(links solana.SocialLinks) int {
	count := 0
	if links.Website != "" {
		count++
	}
	if links.Twitter != "" {
		count++
	}
	if links.Telegram != "" {
		count++
	}
	return count
}
