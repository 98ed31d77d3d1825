package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLiveFixture(t *testing.T, handler http.Handler) *LiveMetadataSource {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return NewLiveMetadataSource(SourceConfig{
		DiscoveryURL: ts.URL + "/discover",
		RugCheckURL:  ts.URL + "/rugcheck",
		Timeout:      2 * time.Second,
		RateLimitRPS: 100,
	})
}

// ---------------------------------------------------------------------------
// TestLiveSource_GetDiscoveredTokens
// ---------------------------------------------------------------------------
func TestLiveSource_GetDiscoveredTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode([]TokenRecord{
			{Mint: "MintA", Symbol: "AAA"},
			{Mint: "MintB", Symbol: "BBB"},
		})
	})

	s := newLiveFixture(t, mux)
	tokens, err := s.GetDiscoveredTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, Pubkey("MintA"), tokens[0].Mint)

	requests, errors := s.Stats()
	assert.Equal(t, int64(1), requests)
	assert.Equal(t, int64(0), errors)
}

// ---------------------------------------------------------------------------
// TestLiveSource_GetDiscoveredTokens_HTTPError
// ---------------------------------------------------------------------------
func TestLiveSource_GetDiscoveredTokens_HTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discover", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	s := newLiveFixture(t, mux)
	_, err := s.GetDiscoveredTokens(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, errors := s.Stats()
	assert.Equal(t, int64(1), errors)
}

// ---------------------------------------------------------------------------
// TestLiveSource_CheckRugScore
// ---------------------------------------------------------------------------
func TestLiveSource_CheckRugScore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rugcheck/MintA/report", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(RugReport{Score: 42})
	})

	s := newLiveFixture(t, mux)
	report, err := s.CheckRugScore(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, 42.0, report.Score)
	assert.Equal(t, Pubkey("MintA"), report.Mint, "mint is stamped onto the report")
}

// ---------------------------------------------------------------------------
// TestLiveSource_BreakerTripsOnConsecutiveFailures
// After five consecutive failures the breaker opens and requests stop
// reaching the provider
// ---------------------------------------------------------------------------
func TestLiveSource_BreakerTripsOnConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/rugcheck/MintA/report", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	s := newLiveFixture(t, mux)
	for i := 0; i < 5; i++ {
		_, err := s.CheckRugScore(context.Background(), "MintA")
		require.Error(t, err)
	}
	require.Equal(t, int64(5), hits.Load())

	// Open breaker short-circuits without a request.
	_, err := s.CheckRugScore(context.Background(), "MintA")
	require.Error(t, err)
	assert.Equal(t, int64(5), hits.Load())
}
