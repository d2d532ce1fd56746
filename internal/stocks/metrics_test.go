package stocks

import (
	"testing"

	"github.com/andrewlind/stockdash/dataset"
)

func closesTable(t *testing.T, closes []float64) *dataset.Table {
	t.Helper()
	table := dataset.New(
		dataset.Col{Name: "Close", Type: dataset.Float},
		dataset.Col{Name: "Volume", Type: dataset.Int},
	)
	for i, c := range closes {
		if err := table.AppendRow("row", c, int64((i+1)*100)); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	return table
}

func TestComputeKeyMetrics(t *testing.T) {
	table := closesTable(t, []float64{100, 110, 99, 120})
	profile := map[string]any{
		"marketCap":        3.2e9,
		"fiftyTwoWeekLow":  95.5,
		"fiftyTwoWeekHigh": 125.0,
	}

	m := ComputeKeyMetrics(table, profile)

	if m.CurrentPrice != "$120.00" {
		t.Errorf("CurrentPrice = %s", m.CurrentPrice)
	}
	if m.TotalReturn != "20.00%" {
		t.Errorf("TotalReturn = %s", m.TotalReturn)
	}
	if m.MarketCap != "$3.20B" {
		t.Errorf("MarketCap = %s", m.MarketCap)
	}
	if m.Range52w != "$95.50 - $125.00" {
		t.Errorf("Range52w = %s", m.Range52w)
	}
	if m.AvgVolume != "250" {
		t.Errorf("AvgVolume = %s", m.AvgVolume)
	}
	if m.Volatility == notAvailable || m.MaxDrawdown == notAvailable {
		t.Errorf("performance metrics missing: vol=%s dd=%s", m.Volatility, m.MaxDrawdown)
	}
}

func TestComputeKeyMetricsEmptyInputs(t *testing.T) {
	empty := dataset.New(dataset.Col{Name: "Close", Type: dataset.Float})
	m := ComputeKeyMetrics(empty, map[string]any{})

	for name, v := range map[string]string{
		"CurrentPrice": m.CurrentPrice,
		"TotalReturn":  m.TotalReturn,
		"MarketCap":    m.MarketCap,
		"Range52w":     m.Range52w,
		"Volatility":   m.Volatility,
		"MaxDrawdown":  m.MaxDrawdown,
	} {
		if v != notAvailable {
			t.Errorf("%s = %s, want %s", name, v, notAvailable)
		}
	}
}

func TestMaxDrawdown(t *testing.T) {
	// peak 110, trough 88: drawdown -20%
	dd, ok := maxDrawdown([]float64{100, 110, 88, 95})
	if !ok {
		t.Fatal("expected drawdown")
	}
	if dd > -19.99 || dd < -20.01 {
		t.Errorf("maxDrawdown = %.4f, want -20", dd)
	}

	// monotonic rise has no drawdown
	dd, _ = maxDrawdown([]float64{100, 110, 120})
	if dd != 0 {
		t.Errorf("maxDrawdown of rising series = %.4f, want 0", dd)
	}
}

func TestFormatLargeCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.95e12, "$2950.00B"},
		{3.2e9, "$3.20B"},
		{450e6, "$450.00M"},
		{999999, "$999999.00"},
		{12.5, "$12.50"},
	}
	for _, tt := range tests {
		if got := FormatLargeCurrency(tt.in); got != tt.want {
			t.Errorf("FormatLargeCurrency(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
