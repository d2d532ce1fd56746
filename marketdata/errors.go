package marketdata

import "fmt"

// FetchError is returned when the provider cannot supply data: network
// failures, unknown symbols, upstream errors. Callers (and the cache
// wrapping these operations) see it unchanged.
type FetchError struct {
	Op     string // operation that failed, e.g. "history"
	Symbol string
	Status int // HTTP status, 0 when the request never completed
	Msg    string
	Err    error
}

func (e *FetchError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Symbol, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Symbol, msg)
}

func (e *FetchError) Unwrap() error { return e.Err }
