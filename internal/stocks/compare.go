package stocks

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andrewlind/stockdash/dataset"
)

// maxCompareSymbols bounds one comparison request.
const maxCompareSymbols = 5

// ComparisonStat is one symbol's row in the performance table.
type ComparisonStat struct {
	Symbol        string `json:"symbol"`
	StartingPrice string `json:"starting_price"`
	CurrentPrice  string `json:"current_price"`
	TotalReturn   string `json:"total_return"`
	Volatility    string `json:"volatility"`
	MaxDrawdown   string `json:"max_drawdown"`
}

// Comparison holds the side-by-side view of several stocks: per-symbol
// performance stats plus a combined close-price table for download.
type Comparison struct {
	Period string           `json:"period"`
	Stats  []ComparisonStat `json:"stats"`
	Closes *dataset.Table   `json:"closes"`
}

// Compare fetches history for each symbol (through the same cached
// operation single-stock lookups use) and builds the comparison. Any
// symbol failing validation or fetch fails the whole request.
func (s *Service) Compare(ctx context.Context, symbols []string, period string) (*Comparison, error) {
	if len(symbols) < 2 {
		return nil, fmt.Errorf("comparison needs at least 2 symbols")
	}
	if len(symbols) > maxCompareSymbols {
		return nil, fmt.Errorf("comparison supports at most %d symbols", maxCompareSymbols)
	}
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		if err := ValidateSymbol(symbol); err != nil {
			return nil, err
		}
		if seen[symbol] {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		seen[symbol] = true
	}

	histories := make([]*dataset.Table, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			history, err := s.history.Call(ctx, symbol, period)
			if err != nil {
				return err
			}
			histories[i] = history
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := make([]ComparisonStat, len(symbols))
	for i, symbol := range symbols {
		stats[i] = comparisonStat(symbol, histories[i])
	}

	return &Comparison{
		Period: period,
		Stats:  stats,
		Closes: combinedCloses(symbols, histories),
	}, nil
}

func comparisonStat(symbol string, history *dataset.Table) ComparisonStat {
	st := ComparisonStat{
		Symbol:        symbol,
		StartingPrice: notAvailable,
		CurrentPrice:  notAvailable,
		TotalReturn:   notAvailable,
		Volatility:    notAvailable,
		MaxDrawdown:   notAvailable,
	}
	closes, ok := history.Floats("Close")
	if !ok || len(closes) == 0 {
		return st
	}

	first := decimal.NewFromFloat(closes[0])
	last := decimal.NewFromFloat(closes[len(closes)-1])
	st.StartingPrice = "$" + first.StringFixed(2)
	st.CurrentPrice = "$" + last.StringFixed(2)
	if !first.IsZero() {
		ret := last.Div(first).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
		st.TotalReturn = ret.StringFixed(2) + "%"
	}
	if vol, ok := volatility(closes); ok {
		st.Volatility = fmt.Sprintf("%.2f%%", vol)
	}
	if dd, ok := maxDrawdown(closes); ok {
		st.MaxDrawdown = fmt.Sprintf("%.2f%%", dd)
	}
	return st
}

// combinedCloses joins the close series into one table, a Float column
// per symbol, keeping the dates on which every symbol traded.
func combinedCloses(symbols []string, histories []*dataset.Table) *dataset.Table {
	cols := make([]dataset.Col, len(symbols))
	for i, symbol := range symbols {
		cols[i] = dataset.Col{Name: symbol, Type: dataset.Float}
	}
	out := dataset.New(cols...)

	bySymbol := make([]map[string]float64, len(histories))
	for i, history := range histories {
		closes, _ := history.Floats("Close")
		m := make(map[string]float64, len(closes))
		for j, date := range history.Index() {
			if j < len(closes) {
				m[date] = closes[j]
			}
		}
		bySymbol[i] = m
	}

	for _, date := range histories[0].Index() {
		cells := make([]any, 0, len(symbols))
		complete := true
		for _, m := range bySymbol {
			v, ok := m[date]
			if !ok {
				complete = false
				break
			}
			cells = append(cells, v)
		}
		if complete {
			_ = out.AppendRow(date, cells...)
		}
	}
	return out
}
