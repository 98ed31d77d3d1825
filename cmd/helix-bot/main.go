package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/helix-trading/helix/internal/audit"
	"github.com/helix-trading/helix/internal/bot"
	"github.com/helix-trading/helix/internal/bus"
	"github.com/helix-trading/helix/internal/config"
	"github.com/helix-trading/helix/internal/control"
	"github.com/helix-trading/helix/internal/ledger"
	"github.com/helix-trading/helix/internal/observability"
	"github.com/helix-trading/helix/internal/solana"
	"github.com/helix-trading/helix/internal/trade"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults when empty)")
	stubMode := flag.Bool("stub", false, "Use stub collaborators (no network)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	setupLogging(cfg.General)

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Bool("stub_mode", *stubMode).
		Dur("scan_interval", cfg.Scanner.ScanInterval).
		Msg("helix: starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("helix: configuration validation failed")
	}

	// External collaborators. Trade execution stays stubbed outside live
	// trading deployments; token discovery uses the real providers unless
	// stub mode is requested.
	var source solana.MetadataSource
	wallet := solana.NewStubWalletSource(10)
	executor := solana.NewStubTradeExecutor()

	var feed *solana.TokenFeed
	if *stubMode {
		source = seedStubSource()
		log.Info().Msg("helix: metadata source in STUB mode")
	} else {
		source = solana.NewLiveMetadataSource(cfg.Source)
		feed = solana.NewTokenFeed(cfg.Feed)
	}

	// Core wiring: explicit dependency injection, lifecycle owned here.
	metrics := observability.NewMetrics()
	events := bus.New()
	controller := bot.NewController(source, wallet, events)
	controller.SetMetrics(metrics)
	if err := controller.UpdateScannerConfig(cfg.Scanner); err != nil {
		log.Fatal().Err(err).Msg("helix: invalid scanner config")
	}

	positions := ledger.NewLedger()
	txs := ledger.NewAggregator(cfg.Trading.TxWindow)

	price := func(_ context.Context, mint solana.Pubkey) (decimal.Decimal, error) {
		if p, ok := controller.PriceOf(mint); ok && p.IsPositive() {
			return p, nil
		}
		return decimal.Zero, fmt.Errorf("no price for mint %s", mint)
	}

	trail := audit.NewTrail(500)
	trail.AttachBus(events)
	controller.SetOnTransition(func(from, to bot.Mode) {
		trail.RecordTransition(string(from), string(to))
	})

	coordinator := trade.NewCoordinator(executor, wallet, positions, txs, price)
	coordinator.SetReadyGate(controller.Initialized)
	coordinator.SetOnComplete(func(op string, success bool) {
		controller.RecordTradeResult(op, success)
		trail.RecordTrade(op, success)
	})
	coordinator.SetMetrics(metrics)

	unsubscribe := events.Subscribe(bus.TopicScanComplete, func(event bus.Event) {
		e := event.(bus.ScanCompleteEvent)
		log.Info().
			Uint64("generation", e.Generation).
			Int("tokens", e.TokensFound).
			Int("high_risk", e.HighRisk).
			Msg("helix: scan complete")
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session lifecycle.
	if err := controller.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("helix: initialization failed")
	}
	if err := controller.Start(); err != nil {
		log.Fatal().Err(err).Msg("helix: start failed")
	}

	// Push feed shortens reaction time: each pushed listing joins or
	// triggers a scan cycle.
	if feed != nil {
		go func() {
			for range feed.Start(ctx) {
				if _, err := controller.TriggerManualScan(ctx); err != nil {
					log.Warn().Err(err).Msg("helix: feed-triggered scan failed")
				}
			}
		}()
	}

	// Periodic ledger refresh on top of the on-completion refresh.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				coordinator.Refresh(ctx)
			}
		}
	}()

	srvMetrics := metrics
	if cfg.Control.MetricsEnabled != nil && !*cfg.Control.MetricsEnabled {
		srvMetrics = nil
	}
	server := control.NewServer(cfg.Control.ListenAddr, controller, coordinator, positions, txs, wallet, trail, srvMetrics)
	server.SetDefaultBuySOL(cfg.Trading.DefaultBuySOL)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("helix: control server failed")
			cancel()
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("helix: shutting down")
	case <-ctx.Done():
	}

	controller.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("helix: control server shutdown failed")
	}

	session := controller.Session()
	log.Info().
		Int64("scans_completed", session.Stats.ScansCompleted).
		Int64("triggered_buys", session.Stats.TriggeredBuys).
		Float64("success_rate", session.Stats.SuccessRate).
		Msg("helix: stopped")
}

func setupLogging(cfg config.GeneralConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// seedStubSource builds a stub metadata source with a few plausible
// listings so stub mode produces visible scan cycles.
func seedStubSource() *solana.StubMetadataSource {
	source := solana.NewStubMetadataSource()

	source.AddToken(solana.TokenRecord{
		Mint:         "GoodMint1111111111111111111111111111111111",
		Symbol:       "HLX",
		Name:         "Helix Test Token",
		PriceUSD:     decimal.NewFromFloat(0.002),
		MarketCapUSD: decimal.NewFromInt(450_000),
		LiquidityUSD: decimal.NewFromInt(25_000),
		ListedAt:     time.Now().Add(-5 * time.Minute),
		Links:        solana.SocialLinks{Website: "https://example.com", Twitter: "https://x.com/helix"},
	}, &solana.RugReport{
		Score:        20,
		LiquidityUSD: decimal.NewFromInt(25_000),
		Verification: &solana.Verification{Verified: true},
		TopHolders:   []solana.HolderInfo{{Address: "H1", Percentage: 12}},
	})

	source.AddToken(solana.TokenRecord{
		Mint:         "RiskMint111111111111111111111111111111111",
		Symbol:       "RUG",
		Name:         "Suspicious Token",
		PriceUSD:     decimal.NewFromFloat(0.0004),
		MarketCapUSD: decimal.NewFromInt(40_000),
		LiquidityUSD: decimal.NewFromInt(3_000),
		ListedAt:     time.Now().Add(-2 * time.Minute),
	}, &solana.RugReport{
		Score:      88,
		TopHolders: []solana.HolderInfo{{Address: "H2", Percentage: 91}},
	})

	return source
}
