package stocks

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/andrewlind/stockdash/dataset"
)

// KeyMetrics are the headline figures shown above the chart: latest
// price with period change, market cap, 52-week range, and the
// performance numbers computed from the close series.
type KeyMetrics struct {
	CurrentPrice string `json:"current_price"`
	TotalReturn  string `json:"total_return"`
	MarketCap    string `json:"market_cap"`
	Range52w     string `json:"range_52w"`
	Volatility   string `json:"volatility"`
	MaxDrawdown  string `json:"max_drawdown"`
	AvgVolume    string `json:"avg_volume"`
}

const notAvailable = "N/A"

// ComputeKeyMetrics derives display metrics from a price history table
// and a company profile. Missing inputs render as "N/A" rather than
// failing the whole summary.
func ComputeKeyMetrics(history *dataset.Table, profile map[string]any) KeyMetrics {
	m := KeyMetrics{
		CurrentPrice: notAvailable,
		TotalReturn:  notAvailable,
		MarketCap:    notAvailable,
		Range52w:     notAvailable,
		Volatility:   notAvailable,
		MaxDrawdown:  notAvailable,
		AvgVolume:    notAvailable,
	}

	if closes, ok := history.Floats("Close"); ok && len(closes) > 0 {
		last := decimal.NewFromFloat(closes[len(closes)-1])
		m.CurrentPrice = "$" + last.StringFixed(2)

		first := decimal.NewFromFloat(closes[0])
		if !first.IsZero() {
			ret := last.Div(first).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
			m.TotalReturn = ret.StringFixed(2) + "%"
		}
		if vol, ok := volatility(closes); ok {
			m.Volatility = fmt.Sprintf("%.2f%%", vol)
		}
		if dd, ok := maxDrawdown(closes); ok {
			m.MaxDrawdown = fmt.Sprintf("%.2f%%", dd)
		}
	}

	if volumes, ok := history.Ints("Volume"); ok && len(volumes) > 0 {
		var total int64
		for _, v := range volumes {
			total += v
		}
		m.AvgVolume = humanize.Comma(total / int64(len(volumes)))
	}

	if mcap, ok := profile["marketCap"].(float64); ok && mcap > 0 {
		m.MarketCap = FormatLargeCurrency(mcap)
	}
	low, lowOK := profile["fiftyTwoWeekLow"].(float64)
	high, highOK := profile["fiftyTwoWeekHigh"].(float64)
	if lowOK && highOK {
		m.Range52w = fmt.Sprintf("$%.2f - $%.2f", low, high)
	}

	return m
}

// volatility is the standard deviation of daily returns, in percent.
func volatility(closes []float64) (float64, bool) {
	returns := dailyReturns(closes)
	if len(returns) < 2 {
		return 0, false
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * 100, true
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative
// return series, in percent (a negative number).
func maxDrawdown(closes []float64) (float64, bool) {
	if len(closes) < 2 {
		return 0, false
	}
	peak := closes[0]
	worst := 0.0
	for _, c := range closes[1:] {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (c/peak - 1) * 100
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst, true
}

func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns
}

// FormatLargeCurrency renders a dollar amount in billions or millions,
// falling back to a plain figure below a million.
func FormatLargeCurrency(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 1e9:
		return "$" + d.Div(decimal.NewFromInt(1e9)).StringFixed(2) + "B"
	case v >= 1e6:
		return "$" + d.Div(decimal.NewFromInt(1e6)).StringFixed(2) + "M"
	default:
		return "$" + d.StringFixed(2)
	}
}
