package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/helix-trading/helix/internal/audit"
	"github.com/helix-trading/helix/internal/bot"
	"github.com/helix-trading/helix/internal/errs"
	"github.com/helix-trading/helix/internal/ledger"
	"github.com/helix-trading/helix/internal/observability"
	"github.com/helix-trading/helix/internal/solana"
	"github.com/helix-trading/helix/internal/trade"
)

// ---------------------------------------------------------------------------
// Control Plane — HTTP surface for operating the bot
// ---------------------------------------------------------------------------

// Server exposes the bot over HTTP.
type Server struct {
	controller  *bot.Controller
	coordinator *trade.Coordinator
	positions   *ledger.Ledger
	txs         *ledger.Aggregator
	wallet      solana.WalletSource
	trail       *audit.Trail
	metrics     *observability.Metrics

	defaultBuySOL float64

	httpServer *http.Server
}

// NewServer wires the control plane. trail and metrics may be nil to
// disable /audit and /metrics.
func NewServer(addr string, controller *bot.Controller, coordinator *trade.Coordinator, positions *ledger.Ledger, txs *ledger.Aggregator, wallet solana.WalletSource, trail *audit.Trail, metrics *observability.Metrics) *Server {
	s := &Server{
		controller:  controller,
		coordinator: coordinator,
		positions:   positions,
		txs:         txs,
		wallet:      wallet,
		trail:       trail,
		metrics:     metrics,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/tokens", s.handleTokens).Methods(http.MethodGet)
	r.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	r.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)
	r.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodPost)
	r.HandleFunc("/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/sell", s.handleSell).Methods(http.MethodPost)
	if trail != nil {
		r.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetDefaultBuySOL sets the buy size applied when a /buy body omits
// amount_sol. Zero leaves the amount mandatory.
func (s *Server) SetDefaultBuySOL(amount float64) {
	s.defaultBuySOL = amount
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("control: listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := s.controller.Session()

	status := map[string]any{
		"session":          session,
		"wallet_connected": s.wallet.Connected(),
		"open_positions":   s.positions.Count(),
	}
	if balance, err := s.wallet.Balance(r.Context()); err == nil {
		status["wallet_sol"] = balance.SOL
	}
	if price, err := s.wallet.SOLPriceUSD(r.Context()); err == nil {
		status["sol_price_usd"] = price
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("filter") == "lowrisk" {
		writeJSON(w, http.StatusOK, s.controller.LowRiskTokens())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Tokens())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if mint := r.URL.Query().Get("mint"); mint != "" {
		writeJSON(w, http.StatusOK, s.trail.ForMint(mint))
		return
	}
	writeJSON(w, http.StatusOK, s.trail.Entries())
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.positions.Snapshot())
}

func (s *Server) handleTransactions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.txs.Snapshot())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	results, err := s.controller.TriggerManualScan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": len(results), "results": results})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Initialize(r.Context()); err != nil {
		var pre *errs.PreconditionError
		if !errors.As(err, &pre) {
			writeError(w, err)
			return
		}
		// Already past Idle: Start below decides.
	}
	if err := s.controller.Start(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Session())
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := s.controller.Pause(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Session())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var cfg bot.ScannerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid config body"})
		return
	}
	if err := s.controller.UpdateScannerConfig(cfg); err != nil {
		writeError(w, err)
		return
	}
	if s.trail != nil {
		s.trail.RecordConfig(cfg)
	}
	writeJSON(w, http.StatusOK, s.controller.Session().Config)
}

type buyRequest struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	AmountSOL float64 `json:"amount_sol"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid buy body"})
		return
	}
	if req.AmountSOL == 0 {
		req.AmountSOL = s.defaultBuySOL
	}
	txID, err := s.coordinator.ExecuteBuy(r.Context(), solana.Pubkey(req.Mint), req.Symbol, req.AmountSOL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transaction_id": txID})
}

type sellRequest struct {
	Mint       string  `json:"mint"`
	Amount     string  `json:"amount,omitempty"` // decimal string
	Percentage float64 `json:"percentage,omitempty"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sell body"})
		return
	}

	pos, ok := s.positions.Get(solana.Pubkey(req.Mint))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open position for mint"})
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
			return
		}
		amount = parsed
	}

	if err := s.coordinator.SellPosition(r.Context(), pos, amount, req.Percentage); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sold"})
}

// ---------------------------------------------------------------------------

// writeError maps taxonomy errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		initErr *errs.InitializationError
		valErr  *errs.ValidationError
		preErr  *errs.PreconditionError
		concErr *errs.ConcurrencyError
		txErr   *errs.TransactionError
	)
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
	case errors.As(err, &preErr):
		status = http.StatusConflict
	case errors.As(err, &concErr):
		status = http.StatusConflict
	case errors.As(err, &initErr):
		status = http.StatusServiceUnavailable
	case errors.As(err, &txErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("control: encode response failed")
	}
}
