// Package marketdata is a thin HTTP client for the market-data provider.
// It fetches price history, company profiles, and financial statements
// and converts them to the shapes the rest of the application works
// with. It performs no caching of its own.
package marketdata

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/tidwall/gjson"

	"github.com/andrewlind/stockdash/dataset"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "stockdash/1.0"
)

// Periods the chart endpoint accepts.
var ValidPeriods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}

type Client struct {
	http      *http.Client
	baseURL   *url.URL
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   u,
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get performs a GET against the provider and returns the response body.
func (c *Client) get(ctx context.Context, op, symbol, p string, q map[string]string) ([]byte, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	qq := u.Query()
	for k, v := range q {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Op: op, Symbol: symbol, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, Symbol: symbol, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Op: op, Symbol: symbol, Status: resp.StatusCode, Msg: string(body)}
	}
	return body, nil
}

// History fetches daily price history for symbol over period (e.g. "1y")
// as a table with Open/High/Low/Close/Volume columns indexed by date.
func (c *Client) History(ctx context.Context, symbol, period string) (*dataset.Table, error) {
	body, err := c.get(ctx, "history", symbol, "/v8/finance/chart/"+url.PathEscape(symbol), map[string]string{
		"range":    period,
		"interval": "1d",
	})
	if err != nil {
		return nil, err
	}

	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
		return nil, &FetchError{Op: "history", Symbol: symbol, Msg: desc.String()}
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, &FetchError{Op: "history", Symbol: symbol, Msg: "no data in chart response"}
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	table := dataset.New(
		dataset.Col{Name: "Open", Type: dataset.Float},
		dataset.Col{Name: "High", Type: dataset.Float},
		dataset.Col{Name: "Low", Type: dataset.Float},
		dataset.Col{Name: "Close", Type: dataset.Float},
		dataset.Col{Name: "Volume", Type: dataset.Int},
	)
	// Degenerate responses can carry quote arrays shorter than the
	// timestamp list, or omit them entirely; only rows present in every
	// series are usable.
	n := len(timestamps)
	for _, series := range [][]gjson.Result{opens, highs, lows, closes, volumes} {
		if len(series) < n {
			n = len(series)
		}
	}
	for i := 0; i < n; i++ {
		if closes[i].Type == gjson.Null {
			// The provider pads trading halts and the current day with
			// nulls; those rows carry no price.
			continue
		}
		date := time.Unix(timestamps[i].Int(), 0).UTC().Format("2006-01-02")
		err := table.AppendRow(date,
			round2(opens[i].Float()),
			round2(highs[i].Float()),
			round2(lows[i].Float()),
			round2(closes[i].Float()),
			volumes[i].Int(),
		)
		if err != nil {
			return nil, &FetchError{Op: "history", Symbol: symbol, Err: err}
		}
	}
	if table.Len() == 0 {
		return nil, &FetchError{Op: "history", Symbol: symbol, Msg: "no price data for period " + period}
	}
	return table, nil
}

// profileFields maps provider quoteSummary paths to profile keys.
var profileFields = map[string]string{
	"price.longName":                     "longName",
	"price.currency":                     "currency",
	"price.regularMarketPrice.raw":       "regularMarketPrice",
	"price.marketCap.raw":                "marketCap",
	"assetProfile.sector":                "sector",
	"assetProfile.industry":              "industry",
	"assetProfile.website":               "website",
	"assetProfile.country":               "country",
	"assetProfile.longBusinessSummary":   "longBusinessSummary",
	"assetProfile.fullTimeEmployees":     "fullTimeEmployees",
	"summaryDetail.trailingPE.raw":       "trailingPE",
	"summaryDetail.dividendYield.raw":    "dividendYield",
	"summaryDetail.fiftyTwoWeekHigh.raw": "fiftyTwoWeekHigh",
	"summaryDetail.fiftyTwoWeekLow.raw":  "fiftyTwoWeekLow",
	"summaryDetail.averageVolume.raw":    "averageVolume",
}

// Profile fetches company information and key statistics for symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (map[string]any, error) {
	body, err := c.quoteSummary(ctx, "profile", symbol, "assetProfile,price,summaryDetail")
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, "quoteSummary.result.0")
	info := make(map[string]any)
	for field, key := range profileFields {
		v := result.Get(field)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.Number:
			info[key] = v.Float()
		default:
			info[key] = v.String()
		}
	}
	if len(info) < 5 {
		// Mirrors the minimal-validity check on company info: a symbol
		// that resolves but carries almost no fields is not usable.
		return nil, &FetchError{Op: "profile", Symbol: symbol, Msg: "insufficient company information"}
	}
	return info, nil
}

// Financials bundles the three statement tables for one company.
// Rows are fiscal period end dates; values are reported in the listing
// currency's base units.
type Financials struct {
	IncomeStatement *dataset.Table `json:"income_statement"`
	BalanceSheet    *dataset.Table `json:"balance_sheet"`
	CashFlow        *dataset.Table `json:"cash_flow"`
}

// Empty reports whether no statement has any rows.
func (f *Financials) Empty() bool {
	return f.IncomeStatement.Len() == 0 && f.BalanceSheet.Len() == 0 && f.CashFlow.Len() == 0
}

// Financials fetches annual income statement, balance sheet, and cash
// flow history for symbol.
func (c *Client) Financials(ctx context.Context, symbol string) (*Financials, error) {
	body, err := c.quoteSummary(ctx, "financials", symbol,
		"incomeStatementHistory,balanceSheetHistory,cashflowStatementHistory")
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, "quoteSummary.result.0")
	fin := &Financials{
		IncomeStatement: statementTable(result.Get("incomeStatementHistory.incomeStatementHistory"),
			"TotalRevenue", "totalRevenue",
			"GrossProfit", "grossProfit",
			"OperatingIncome", "operatingIncome",
			"NetIncome", "netIncome",
		),
		BalanceSheet: statementTable(result.Get("balanceSheetHistory.balanceSheetStatements"),
			"TotalAssets", "totalAssets",
			"TotalLiabilities", "totalLiab",
			"StockholderEquity", "totalStockholderEquity",
			"Cash", "cash",
		),
		CashFlow: statementTable(result.Get("cashflowStatementHistory.cashflowStatements"),
			"OperatingCashFlow", "totalCashFromOperatingActivities",
			"CapitalExpenditures", "capitalExpenditures",
			"NetIncome", "netIncome",
		),
	}
	if fin.Empty() {
		return nil, &FetchError{Op: "financials", Symbol: symbol, Msg: "no financial statements available"}
	}
	return fin, nil
}

func (c *Client) quoteSummary(ctx context.Context, op, symbol, modules string) ([]byte, error) {
	body, err := c.get(ctx, op, symbol, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), map[string]string{
		"modules": modules,
	})
	if err != nil {
		return nil, err
	}
	if desc := gjson.GetBytes(body, "quoteSummary.error.description"); desc.Exists() {
		return nil, &FetchError{Op: op, Symbol: symbol, Msg: desc.String()}
	}
	if !gjson.GetBytes(body, "quoteSummary.result.0").Exists() {
		return nil, &FetchError{Op: op, Symbol: symbol, Msg: "empty quoteSummary response"}
	}
	return body, nil
}

// statementTable builds one statement history table from a provider
// statement array. pairs alternate column name and provider field; a
// field missing from a period is recorded as zero, matching how the
// provider reports unavailable line items.
func statementTable(statements gjson.Result, pairs ...string) *dataset.Table {
	cols := make([]dataset.Col, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		cols = append(cols, dataset.Col{Name: pairs[i], Type: dataset.Int})
	}
	table := dataset.New(cols...)

	for _, stmt := range statements.Array() {
		endDate := stmt.Get("endDate.fmt").String()
		if endDate == "" {
			continue
		}
		cells := make([]any, 0, len(cols))
		for i := 1; i < len(pairs); i += 2 {
			cells = append(cells, stmt.Get(pairs[i]+".raw").Int())
		}
		// Rows arrive newest first; keep provider order.
		_ = table.AppendRow(endDate, cells...)
	}
	return table
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// IsNotFound reports whether err is a provider response for an unknown
// symbol rather than a transport failure.
func IsNotFound(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status == http.StatusNotFound
	}
	return false
}
