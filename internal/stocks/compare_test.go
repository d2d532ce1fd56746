package stocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewlind/stockdash/dataset"
	"github.com/andrewlind/stockdash/marketdata"
)

// compareFetcher serves a distinct close series per symbol.
type compareFetcher struct {
	stubFetcher
	closes map[string]map[string]float64 // symbol -> date -> close
}

func (f *compareFetcher) History(ctx context.Context, symbol, period string) (*dataset.Table, error) {
	f.historyCalls.Add(1)
	table := dataset.New(dataset.Col{Name: "Close", Type: dataset.Float})
	for _, date := range []string{"2026-08-26", "2026-08-27", "2026-08-28"} {
		if c, ok := f.closes[symbol][date]; ok {
			_ = table.AppendRow(date, c)
		}
	}
	return table, nil
}

func TestCompareComputesStatsAndCombinedCloses(t *testing.T) {
	fetcher := &compareFetcher{closes: map[string]map[string]float64{
		"AAPL": {"2026-08-26": 100, "2026-08-27": 105, "2026-08-28": 110},
		// MSFT did not trade on the 27th; that date is dropped from the join
		"MSFT": {"2026-08-26": 200, "2026-08-28": 190},
	}}
	svc := newTestService(t, t.TempDir(), fetcher)

	cmp, err := svc.Compare(context.Background(), []string{"AAPL", "MSFT"}, "1y")
	require.NoError(t, err)
	require.Equal(t, "1y", cmp.Period)
	require.Len(t, cmp.Stats, 2)

	aapl := cmp.Stats[0]
	require.Equal(t, "AAPL", aapl.Symbol)
	require.Equal(t, "$100.00", aapl.StartingPrice)
	require.Equal(t, "$110.00", aapl.CurrentPrice)
	require.Equal(t, "10.00%", aapl.TotalReturn)

	msft := cmp.Stats[1]
	require.Equal(t, "-5.00%", msft.TotalReturn)
	require.Equal(t, notAvailable, msft.Volatility, "one daily return is not enough for a deviation")

	require.Equal(t, []string{"2026-08-26", "2026-08-28"}, cmp.Closes.Index())
	msftCloses, ok := cmp.Closes.Floats("MSFT")
	require.True(t, ok)
	require.Equal(t, []float64{200, 190}, msftCloses)
}

func TestCompareUsesCachedHistories(t *testing.T) {
	fetcher := &compareFetcher{closes: map[string]map[string]float64{
		"AAPL": {"2026-08-26": 100},
		"MSFT": {"2026-08-26": 200},
	}}
	svc := newTestService(t, t.TempDir(), fetcher)
	ctx := context.Background()

	_, err := svc.History(ctx, "AAPL", "1y")
	require.NoError(t, err)

	_, err = svc.Compare(ctx, []string{"AAPL", "MSFT"}, "1y")
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.historyCalls.Load(), "the prior AAPL fetch is reused")

	_, err = svc.Compare(ctx, []string{"AAPL", "MSFT"}, "1y")
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.historyCalls.Load())
}

func TestCompareValidatesInput(t *testing.T) {
	svc := newTestService(t, t.TempDir(), &compareFetcher{})
	ctx := context.Background()

	_, err := svc.Compare(ctx, []string{"AAPL"}, "1y")
	require.ErrorContains(t, err, "at least 2")

	_, err = svc.Compare(ctx, []string{"A", "B", "C", "D", "E", "F"}, "1y")
	require.ErrorContains(t, err, "at most 5")

	_, err = svc.Compare(ctx, []string{"AAPL", "AAPL"}, "1y")
	require.ErrorContains(t, err, "duplicate")

	_, err = svc.Compare(ctx, []string{"AAPL", "TICKER"}, "1y")
	require.Error(t, err)
}

func TestCompareFetchErrorFailsRequest(t *testing.T) {
	fetcher := &stubFetcher{err: &marketdata.FetchError{Op: "history", Symbol: "ZZZZ", Msg: "no data"}}
	svc := newTestService(t, t.TempDir(), fetcher)

	_, err := svc.Compare(context.Background(), []string{"AAPL", "ZZZZ"}, "1y")
	var fe *marketdata.FetchError
	require.ErrorAs(t, err, &fe)
}
