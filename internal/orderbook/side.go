package orderbook

import (
	"fmt"
	"strings"
)

// Side is one side of an order book.
type Side int

const (
	Bids Side = iota
	Asks
)

// Aliases
const (
	Buy  = Bids
	Sell = Asks
)

func (s Side) Valid() bool {
	return s == Bids || s == Asks
}

func (s Side) String() string {
	switch s {
	case Bids:
		return "bids"
	case Asks:
		return "asks"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide accepts bids/bid/buy and asks/ask/sell in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bids", "bid", "buy":
		return Bids, nil
	case "asks", "ask", "sell":
		return Asks, nil
	}
	return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidArgument, s)
}
