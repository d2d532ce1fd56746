package stocks

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/andrewlind/stockdash/cache"
	"github.com/andrewlind/stockdash/dataset"
	"github.com/andrewlind/stockdash/marketdata"
)

type stubFetcher struct {
	historyCalls    atomic.Int64
	profileCalls    atomic.Int64
	financialsCalls atomic.Int64
	err             error
}

func (f *stubFetcher) History(ctx context.Context, symbol, period string) (*dataset.Table, error) {
	f.historyCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	table := dataset.New(
		dataset.Col{Name: "Open", Type: dataset.Float},
		dataset.Col{Name: "High", Type: dataset.Float},
		dataset.Col{Name: "Low", Type: dataset.Float},
		dataset.Col{Name: "Close", Type: dataset.Float},
		dataset.Col{Name: "Volume", Type: dataset.Int},
	)
	_ = table.AppendRow("2026-08-27", 100.0, 112.0, 99.0, 110.0, int64(1_000_000))
	_ = table.AppendRow("2026-08-28", 110.0, 122.0, 109.0, 121.0, int64(2_000_000))
	return table, nil
}

func (f *stubFetcher) Profile(ctx context.Context, symbol string) (map[string]any, error) {
	f.profileCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{
		"longName":         symbol + " Corp",
		"sector":           "Technology",
		"marketCap":        2.5e9,
		"fiftyTwoWeekLow":  90.0,
		"fiftyTwoWeekHigh": 130.0,
	}, nil
}

func (f *stubFetcher) Financials(ctx context.Context, symbol string) (*marketdata.Financials, error) {
	f.financialsCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	income := dataset.New(dataset.Col{Name: "TotalRevenue", Type: dataset.Int})
	_ = income.AppendRow("2025-12-31", int64(5_000_000_000))
	return &marketdata.Financials{
		IncomeStatement: income,
		BalanceSheet:    dataset.New(dataset.Col{Name: "TotalAssets", Type: dataset.Int}),
		CashFlow:        dataset.New(dataset.Col{Name: "OperatingCashFlow", Type: dataset.Int}),
	}, nil
}

func newTestService(t *testing.T, dir string, fetcher Fetcher) *Service {
	t.Helper()
	store, err := cache.New(dir)
	require.NoError(t, err)
	return NewService(store, fetcher, DefaultTTLs(), zerolog.Nop())
}

func TestSummaryComposesAndCachesEachOperation(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := newTestService(t, t.TempDir(), fetcher)
	ctx := context.Background()

	summary, err := svc.Summary(ctx, "AAPL", "1y")
	require.NoError(t, err)
	require.Equal(t, "AAPL Corp", summary.CompanyName)
	require.Equal(t, 2, summary.History.Len())
	require.Equal(t, "$121.00", summary.Metrics.CurrentPrice)
	require.Equal(t, "10.00%", summary.Metrics.TotalReturn)

	// every fetch goes through its own cached operation
	_, err = svc.Summary(ctx, "AAPL", "1y")
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.historyCalls.Load())
	require.EqualValues(t, 1, fetcher.profileCalls.Load())
	require.EqualValues(t, 1, fetcher.financialsCalls.Load())

	// a different period is a different history key but the same profile
	_, err = svc.History(ctx, "AAPL", "5y")
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.historyCalls.Load())
	require.EqualValues(t, 1, fetcher.profileCalls.Load())
}

func TestHistorySurvivesRestartWithTypesIntact(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := &stubFetcher{}
	svc1 := newTestService(t, dir, first)
	orig, err := svc1.History(ctx, "AAPL", "1y")
	require.NoError(t, err)

	// same cache directory, fresh process: history must come from disk
	second := &stubFetcher{}
	svc2 := newTestService(t, dir, second)
	got, err := svc2.History(ctx, "AAPL", "1y")
	require.NoError(t, err)
	require.EqualValues(t, 0, second.historyCalls.Load())

	require.True(t, orig.Equal(got), "cached table must round-trip exactly")
	vols, ok := got.Ints("Volume")
	require.True(t, ok, "Volume column must stay typed as int")
	require.Equal(t, []int64{1_000_000, 2_000_000}, vols)
}

func TestFetchErrorsPropagate(t *testing.T) {
	fetchErr := &marketdata.FetchError{Op: "history", Symbol: "AAPL", Msg: "provider down"}
	fetcher := &stubFetcher{err: fetchErr}
	svc := newTestService(t, t.TempDir(), fetcher)

	_, err := svc.Summary(context.Background(), "AAPL", "1y")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "provider down", fe.Msg)
}

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		ok     bool
	}{
		{"AAPL", true},
		{"BRK.B", true},
		{"brk.b", true},
		{"7203", true},
		{"", false},
		{"   ", false},
		{"TOOLONGSYMBOL", false},
		{"AAPL$", false},
		{"AA PL", false},
		{"ticker", false},
		{"None", false},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if tt.ok && err != nil {
				t.Errorf("ValidateSymbol(%q) = %v, want nil", tt.symbol, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("ValidateSymbol(%q) = nil, want error", tt.symbol)
			}
		})
	}
}

func TestValidationSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := newTestService(t, t.TempDir(), fetcher)

	_, err := svc.History(context.Background(), "BAD SYMBOL", "1y")
	require.Error(t, err)
	require.EqualValues(t, 0, fetcher.historyCalls.Load())
}
