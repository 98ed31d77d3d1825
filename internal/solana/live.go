package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// Live Metadata Source — real discovery + rug-check providers over HTTP
// with rate limiting and a circuit breaker around the risk service
// ---------------------------------------------------------------------------

// SourceConfig configures the live metadata source.
type SourceConfig struct {
	DiscoveryURL string        `yaml:"discovery_url"` // token listing feed
	RugCheckURL  string        `yaml:"rugcheck_url"`  // per-mint risk reports
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"` // lookups per second
}

// DefaultSourceConfig returns development defaults.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		DiscoveryURL: "https://api.dexscreener.com/token-profiles/latest/v1",
		RugCheckURL:  "https://api.rugcheck.xyz/v1/tokens",
		Timeout:      10 * time.Second,
		RateLimitRPS: 10,
	}
}

// LiveMetadataSource talks to real discovery and rug-check HTTP providers.
type LiveMetadataSource struct {
	config     SourceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewLiveMetadataSource creates a live metadata source.
// The rug-check provider sits behind a circuit breaker: when it flaps, the
// breaker trips open and callers fall back to the neutral report instead of
// stalling the scan cycle on timeouts.
func NewLiveMetadataSource(config SourceConfig) *LiveMetadataSource {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "rugcheck",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("source: circuit breaker state change")
		},
	})

	return &LiveMetadataSource{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimitRPS), int(config.RateLimitRPS)),
		breaker:    breaker,
	}
}

// GetDiscoveredTokens fetches the latest token listings.
func (s *LiveMetadataSource) GetDiscoveredTokens(ctx context.Context) ([]TokenRecord, error) {
	var tokens []TokenRecord
	if err := s.getJSON(ctx, s.config.DiscoveryURL, &tokens); err != nil {
		return nil, fmt.Errorf("fetch discovered tokens: %w", err)
	}
	return tokens, nil
}

// CheckRugScore fetches the risk report for a mint through the breaker.
func (s *LiveMetadataSource) CheckRugScore(ctx context.Context, mint Pubkey) (*RugReport, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		report := &RugReport{}
		endpoint := fmt.Sprintf("%s/%s/report", s.config.RugCheckURL, url.PathEscape(string(mint)))
		if err := s.getJSON(ctx, endpoint, report); err != nil {
			return nil, err
		}
		return report, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rug check %s: %w", mint, err)
	}
	report := result.(*RugReport)
	report.Mint = mint
	return report, nil
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (s *LiveMetadataSource) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	s.requestCount.Add(1)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.errorCount.Add(1)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.errorCount.Add(1)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d from %s: %s", resp.StatusCode, endpoint, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("decode response: %w", err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("source: request ok")
	return nil
}

// Stats returns cumulative request/error counts.
func (s *LiveMetadataSource) Stats() (requests, errors int64) {
	return s.requestCount.Load(), s.errorCount.Load()
}
