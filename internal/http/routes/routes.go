// Package routes builds the HTTP surface: dashboard pages, the JSON/CSV
// data API, and the cache admin endpoints.
package routes

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/andrewlind/stockdash/cache"
	"github.com/andrewlind/stockdash/internal/config"
	appmw "github.com/andrewlind/stockdash/internal/http/middleware"
	"github.com/andrewlind/stockdash/internal/stocks"
	"github.com/andrewlind/stockdash/marketdata"
)

const recentSymbolsKey = "recent_symbols"
const maxRecentSymbols = 5

type Server struct {
	Router *chi.Mux
	Sess   *scs.SessionManager
	Tmpl   *template.Template
	Stocks *stocks.Service
	Cache  *cache.Store
	Cfg    config.Config
	Log    zerolog.Logger
}

type ServerOptions struct {
	Sess   *scs.SessionManager
	Tmpl   *template.Template
	Stocks *stocks.Service
	Cache  *cache.Store
	Cfg    config.Config
	Log    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router: r,
		Sess:   opts.Sess,
		Tmpl:   opts.Tmpl,
		Stocks: opts.Stocks,
		Cache:  opts.Cache,
		Cfg:    opts.Cfg,
		Log:    opts.Log,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			s.Log.Warn().Err(err).Msg("error writing health check response")
		}
	})

	r.Get("/", s.handleHome)
	r.Get("/stocks/{symbol}", s.handleStockPage)

	r.Get("/api/stocks/compare", s.handleCompare)
	r.Get("/api/stocks/compare.csv", s.handleCompareCSV)
	r.Route("/api/stocks/{symbol}", func(api chi.Router) {
		api.Get("/history", s.handleHistory)
		api.Get("/history.csv", s.handleHistoryCSV)
		api.Get("/profile", s.handleProfile)
		api.Get("/financials", s.handleFinancials)
		api.Get("/summary", s.handleSummary)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(appmw.RequireAdminToken(opts.Cfg.AdminToken))
		admin.Post("/admin/cache/clear", s.handleCacheClear)
		admin.Post("/admin/cache/sweep", s.handleCacheSweep)
	})

	return s
}

type homeData struct {
	DefaultSymbol string
	DefaultPeriod string
	Periods       []string
	Watchlist     []string
	Recent        []string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := homeData{
		DefaultSymbol: s.Cfg.DefaultSymbol,
		DefaultPeriod: s.Cfg.DefaultPeriod,
		Periods:       marketdata.ValidPeriods,
		Watchlist:     s.Cfg.Watchlist,
		Recent:        s.recentSymbols(r),
	}
	s.render(w, "dashboard", data)
}

type stockPageData struct {
	Summary *stocks.Summary
	Period  string
	Periods []string
	Recent  []string
	RowsTop [][]string // most recent rows of the history table, header first
}

func (s *Server) handleStockPage(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	period := s.period(r)

	if err := stocks.ValidateSymbol(symbol); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.Stocks.Summary(r.Context(), symbol, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.rememberSymbol(r, symbol)

	records := summary.History.Records()
	const recent = 10
	top := [][]string{records[0]}
	if n := len(records); n > 1 {
		start := n - recent
		if start < 1 {
			start = 1
		}
		// newest last in the table; show newest first
		for i := n - 1; i >= start; i-- {
			top = append(top, records[i])
		}
	}

	s.render(w, "stock", stockPageData{
		Summary: summary,
		Period:  period,
		Periods: marketdata.ValidPeriods,
		Recent:  s.recentSymbols(r),
		RowsTop: top,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	table, err := s.Stocks.History(r.Context(), symbol, s.period(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, table)
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	table, err := s.Stocks.History(r.Context(), symbol, s.period(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_history.csv", symbol))
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(table.Records()); err != nil {
		s.Log.Warn().Err(err).Str("symbol", symbol).Msg("error writing csv response")
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	profile, err := s.Stocks.Profile(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, profile)
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	fin, err := s.Stocks.Financials(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, fin)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	summary, err := s.Stocks.Summary(r.Context(), symbol, s.period(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, summary)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.Stocks.Compare(r.Context(), compareSymbols(r), s.period(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, cmp)
}

func (s *Server) handleCompareCSV(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.Stocks.Compare(r.Context(), compareSymbols(r), s.period(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=stock_comparison_data.csv")
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(cmp.Closes.Records()); err != nil {
		s.Log.Warn().Err(err).Msg("error writing comparison csv response")
	}
}

// compareSymbols parses the symbols query parameter into uppercased
// ticker symbols, dropping empty elements.
func compareSymbols(r *http.Request) []string {
	var symbols []string
	for _, raw := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if symbol := strings.ToUpper(strings.TrimSpace(raw)); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Cache.ClearAll(); err != nil {
		s.Log.Error().Err(err).Msg("cache clear failed")
		http.Error(w, "cache clear failed", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	ttl := s.Cfg.LongestTTL()
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
		ttl = parsed
	}
	s.respondJSON(w, s.Cache.SweepExpired(ttl))
}

// period returns the validated period query parameter or the default.
func (s *Server) period(r *http.Request) string {
	period := r.URL.Query().Get("period")
	if period == "" {
		return s.Cfg.DefaultPeriod
	}
	for _, valid := range marketdata.ValidPeriods {
		if period == valid {
			return period
		}
	}
	return s.Cfg.DefaultPeriod
}

func (s *Server) respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warn().Err(err).Msg("error encoding json response")
	}
}

// writeError maps service errors to HTTP statuses. Cache failures never
// reach here; only validation and provider errors surface.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *marketdata.FetchError
	switch {
	case errors.As(err, &fe):
		s.Log.Error().Err(err).Str("path", r.URL.Path).Msg("fetch failed")
		status := http.StatusBadGateway
		if marketdata.IsNotFound(err) {
			status = http.StatusNotFound
		}
		http.Error(w, fe.Error(), status)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.Tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.Log.Error().Err(err).Str("template", name).Msg("template render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// rememberSymbol prepends symbol to the session's recently-viewed list.
func (s *Server) rememberSymbol(r *http.Request, symbol string) {
	if s.Sess == nil {
		return
	}
	recent := []string{symbol}
	for _, prev := range s.recentSymbols(r) {
		if prev != symbol && len(recent) < maxRecentSymbols {
			recent = append(recent, prev)
		}
	}
	s.Sess.Put(r.Context(), recentSymbolsKey, strings.Join(recent, ","))
}

func (s *Server) recentSymbols(r *http.Request) []string {
	if s.Sess == nil {
		return nil
	}
	raw := s.Sess.GetString(r.Context(), recentSymbolsKey)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
