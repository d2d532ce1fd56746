// Package stocks composes the provider fetches with the result cache and
// exposes the operations the HTTP layer and the worker call.
package stocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrewlind/stockdash/cache"
	"github.com/andrewlind/stockdash/dataset"
	"github.com/andrewlind/stockdash/marketdata"
)

// Fetcher is the provider surface the service needs. *marketdata.Client
// implements it; tests substitute a stub.
type Fetcher interface {
	History(ctx context.Context, symbol, period string) (*dataset.Table, error)
	Profile(ctx context.Context, symbol string) (map[string]any, error)
	Financials(ctx context.Context, symbol string) (*marketdata.Financials, error)
}

// TTLs carries the per-operation cache freshness windows.
type TTLs struct {
	History    time.Duration
	Profile    time.Duration
	Financials time.Duration
}

// DefaultTTLs returns the documented defaults: price series are short
// lived, profiles moderately so, statements barely change within a day.
func DefaultTTLs() TTLs {
	return TTLs{
		History:    time.Hour,
		Profile:    2 * time.Hour,
		Financials: 24 * time.Hour,
	}
}

// Service provides cached access to market data for one shared Store.
type Service struct {
	history    *cache.Op[*dataset.Table]
	profile    *cache.Op[map[string]any]
	financials *cache.Op[*marketdata.Financials]
	log        zerolog.Logger
}

// NewService wires the provider operations through the cache store.
func NewService(store *cache.Store, fetcher Fetcher, ttls TTLs, log zerolog.Logger) *Service {
	return &Service{
		history: cache.Cached(store, "fetch_stock_data", ttls.History,
			func(ctx context.Context, call cache.Call) (*dataset.Table, error) {
				log.Info().Str("symbol", call.Args[0]).Str("period", call.Args[1]).Msg("fetching stock history")
				return fetcher.History(ctx, call.Args[0], call.Args[1])
			}),
		profile: cache.Cached(store, "fetch_company_info", ttls.Profile,
			func(ctx context.Context, call cache.Call) (map[string]any, error) {
				log.Info().Str("symbol", call.Args[0]).Msg("fetching company info")
				return fetcher.Profile(ctx, call.Args[0])
			}),
		financials: cache.Cached(store, "fetch_financials", ttls.Financials,
			func(ctx context.Context, call cache.Call) (*marketdata.Financials, error) {
				log.Info().Str("symbol", call.Args[0]).Msg("fetching financials")
				return fetcher.Financials(ctx, call.Args[0])
			}),
		log: log,
	}
}

// History returns cached daily price history for symbol over period.
func (s *Service) History(ctx context.Context, symbol, period string) (*dataset.Table, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return s.history.Call(ctx, symbol, period)
}

// Profile returns cached company information for symbol.
func (s *Service) Profile(ctx context.Context, symbol string) (map[string]any, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return s.profile.Call(ctx, symbol)
}

// Financials returns cached financial statements for symbol.
func (s *Service) Financials(ctx context.Context, symbol string) (*marketdata.Financials, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return s.financials.Call(ctx, symbol)
}

// Summary is the complete picture of one stock for the dashboard.
type Summary struct {
	Symbol      string                 `json:"symbol"`
	CompanyName string                 `json:"company_name"`
	Period      string                 `json:"period"`
	History     *dataset.Table         `json:"history"`
	Profile     map[string]any         `json:"profile"`
	Financials  *marketdata.Financials `json:"financials"`
	Metrics     KeyMetrics             `json:"metrics"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Summary fetches history, profile, and financials for symbol (each
// through its own cached operation) and computes the headline metrics.
func (s *Service) Summary(ctx context.Context, symbol, period string) (*Summary, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	history, err := s.history.Call(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile.Call(ctx, symbol)
	if err != nil {
		return nil, err
	}
	financials, err := s.financials.Call(ctx, symbol)
	if err != nil {
		return nil, err
	}

	name, _ := profile["longName"].(string)
	if name == "" {
		name = symbol
	}

	return &Summary{
		Symbol:      symbol,
		CompanyName: name,
		Period:      period,
		History:     history,
		Profile:     profile,
		Financials:  financials,
		Metrics:     ComputeKeyMetrics(history, profile),
		LastUpdated: time.Now(),
	}, nil
}

// Warm pre-populates the cache for a list of symbols. Failures are
// logged per symbol and do not stop the rest of the list.
func (s *Service) Warm(ctx context.Context, symbols []string, period string) {
	for _, symbol := range symbols {
		if _, err := s.Summary(ctx, symbol, period); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("cache warm failed")
			continue
		}
		s.log.Debug().Str("symbol", symbol).Msg("cache warmed")
	}
}

// reservedSymbols are common placeholder inputs that are never tickers.
var reservedSymbols = map[string]bool{
	"none":   true,
	"symbol": true,
	"stock":  true,
	"ticker": true,
}

// ValidateSymbol checks a ticker symbol before any fetch happens:
// non-empty, letters/digits/dots only, at most 10 characters.
func ValidateSymbol(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fmt.Errorf("stock symbol cannot be empty")
	}
	if len(symbol) > 10 {
		return fmt.Errorf("stock symbol too long (max 10 characters)")
	}
	for _, r := range symbol {
		if !isAlnum(r) && r != '.' {
			return fmt.Errorf("stock symbol must contain only letters, numbers, and dots")
		}
	}
	if reservedSymbols[strings.ToLower(symbol)] {
		return fmt.Errorf("please enter a valid stock symbol")
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
