// Package httpapi mounts the optional read-only HTTP query surface
// described in spec §6's EXTERNAL INTERFACES: query/positions/analyze over
// JSON, as a thin alternate transport over the same read APIs the CLI uses.
// Grounded on teacher internal/server's router setup (chi + cors + standard
// middleware chain) before that package's deletion from this tree.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/portfolio/internal/analysis"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Server wraps a chi.Mux over the market store and an analysis runner
// factory, kept as a func so each request gets a fresh Runner without the
// handler needing to know how one is built.
type Server struct {
	router *chi.Mux
	market *storage.MarketStore
	ledger *storage.LedgerStore
	runner func() *analysis.Runner
	log    zerolog.Logger
}

// New builds the router and registers routes. runner is invoked once per
// /analyze request since Runner carries no per-call state worth reusing.
func New(market *storage.MarketStore, ledger *storage.LedgerStore, runner func() *analysis.Runner, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		market: market,
		ledger: ledger,
		runner: runner,
		log:    log.With().Str("component", "httpapi").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/query", s.handleQuery)
		r.Get("/positions", s.handlePositions)
		r.Get("/analyze", s.handleAnalyze)
	})
}

// ServeHTTP implements http.Handler, so Server plugs straight into
// http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	bars, err := s.market.GetStockData(symbol, r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n < len(bars) {
			bars = bars[len(bars)-n:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "bars": bars})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	symbols := []string{symbol}
	if symbol == "" {
		all, err := s.ledger.ListSymbols()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list symbols")
			return
		}
		symbols = all
	}

	type position struct {
		Symbol   string `json:"symbol"`
		Quantity string `json:"quantity"`
		LotCount int    `json:"lot_count"`
	}
	var positions []position
	for _, sym := range symbols {
		lots, err := s.ledger.GetPositionLots(sym, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load lots")
			return
		}
		if len(lots) == 0 {
			continue
		}
		quantity := lots[0].RemainingQuantity.Sub(lots[0].RemainingQuantity)
		for _, l := range lots {
			quantity = quantity.Add(l.RemainingQuantity)
		}
		positions = append(positions, position{Symbol: sym, Quantity: quantity.String(), LotCount: len(lots)})
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	start := r.URL.Query().Get("start")
	if start == "" {
		start = time.Now().AddDate(-1, 0, 0).Format("2006-01-02")
	}
	end := r.URL.Query().Get("end")
	if end == "" {
		end = time.Now().Format("2006-01-02")
	}

	result := s.runner().Run(symbol, start, end)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
