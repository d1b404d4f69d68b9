// Package exchange adapter
package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"

	wallex "github.com/wallexchange/wallex-go"
)

func parseNumber(n wallex.Number) (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// levelsFromMarketOrders folds REST depth rows into a price map.
// Rows with an unparsable price are returned in skipped.
func levelsFromMarketOrders(orders []*wallex.MarketOrder) (levels map[float64]float64, skipped int) {
	levels = make(map[float64]float64, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		price, err := parseNumber(o.Price)
		if err != nil {
			skipped++
			continue
		}
		qty, err := parseNumber(o.Quantity)
		if err != nil {
			skipped++
			continue
		}
		levels[price] += qty
	}
	return levels, skipped
}

// levelsFromEntries converts a websocket depth payload into a price map.
func levelsFromEntries(entries []OrderBookEntry) (map[float64]float64, error) {
	levels := make(map[float64]float64, len(entries))
	for _, e := range entries {
		price, err := strconv.ParseFloat(e.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", e.Price, err)
		}
		levels[price] += e.Quantity
	}
	return levels, nil
}

// decodeDepth accepts both the list and the keyed object shape of a depth payload.
func decodeDepth(data []byte) ([]OrderBookEntry, error) {
	var list []OrderBookEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var keyed OrderBook
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}
	list = make([]OrderBookEntry, 0, len(keyed))
	for _, e := range keyed {
		list = append(list, e)
	}
	return list, nil
}
