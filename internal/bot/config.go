package bot

import (
	"fmt"
	"time"

	"github.com/helix-trading/helix/internal/errs"
)

// MinScanInterval is the floor for the scan scheduling interval.
const MinScanInterval = 10 * time.Second

// ScannerConfig governs token filtering and scan scheduling. Replaced
// wholesale on update, never field-by-field. MaxRugScore and
// MaxTopHolderPct are percentages in [0, 100].
type ScannerConfig struct {
	MinLiquiditySOL float64       `yaml:"min_liquidity_sol" json:"min_liquidity_sol"`
	MaxRugScore     float64       `yaml:"max_rug_score" json:"max_rug_score"`
	MaxTopHolderPct float64       `yaml:"max_top_holder_pct" json:"max_top_holder_pct"`
	OnlyVerified    bool          `yaml:"only_verified" json:"only_verified"`
	ScanInterval    time.Duration `yaml:"scan_interval" json:"scan_interval"`
	AutoScan        bool          `yaml:"auto_scan" json:"auto_scan"`
}

// DefaultScannerConfig returns conservative defaults.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MinLiquiditySOL: 5,
		MaxRugScore:     70,
		MaxTopHolderPct: 80,
		OnlyVerified:    false,
		ScanInterval:    30 * time.Second,
		AutoScan:        true,
	}
}

// Validate checks the config invariants. Returns a ValidationError on the
// first violation; the caller applies nothing on failure.
func (c ScannerConfig) Validate() error {
	if c.ScanInterval < MinScanInterval {
		return &errs.ValidationError{
			Field:  "scan_interval",
			Reason: fmt.Sprintf("must be at least %s, got %s", MinScanInterval, c.ScanInterval),
		}
	}
	if c.MaxRugScore < 0 || c.MaxRugScore > 100 {
		return &errs.ValidationError{Field: "max_rug_score", Reason: "must be in [0, 100]"}
	}
	if c.MaxTopHolderPct < 0 || c.MaxTopHolderPct > 100 {
		return &errs.ValidationError{Field: "max_top_holder_pct", Reason: "must be in [0, 100]"}
	}
	if c.MinLiquiditySOL < 0 {
		return &errs.ValidationError{Field: "min_liquidity_sol", Reason: "must be non-negative"}
	}
	return nil
}

// RulesActive counts the filter rules this config actually enforces.
func (c ScannerConfig) RulesActive() int {
	rules := 0
	if c.MinLiquiditySOL > 0 {
		rules++
	}
	if c.MaxRugScore < 100 {
		rules++
	}
	if c.MaxTopHolderPct < 100 {
		rules++
	}
	if c.OnlyVerified {
		rules++
	}
	return rules
}
