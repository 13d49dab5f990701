// Package quote adapts external market-data providers to a single fallible
// fetch operation. A Source returns the most recent close price for a ticker
// symbol; it may be slow, return nothing, or fail outright, and the caller
// decides what to do about that.
package quote

import (
	"context"
	"errors"
)

// ErrNoData is returned when the provider responded but carried no usable
// price for the requested symbol.
var ErrNoData = errors.New("no price data")

// Source fetches the current market price for a ticker symbol, in USD.
// Implementations must bound the call with their own timeout so a hanging
// provider cannot stall callers indefinitely.
type Source interface {
	Fetch(ctx context.Context, symbol string) (float64, error)
}
