package market

import (
	"math"
	"testing"
	"time"

	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ob := OrderBook{
		Symbol:    "BTC-USDT",
		Source:    "wallex",
		Bids:      map[float64]float64{99: 1, 98: 2},
		Asks:      map[float64]float64{101: 3},
		Timestamp: ts,
	}

	bids, err := ob.Book(orderbook.Bids)
	require.NoError(t, err)
	assert.Equal(t, 2, bids.Len())
	assert.Equal(t, "BTC-USDT", bids.Meta()["symbol"])
	assert.Equal(t, "wallex", bids.Meta()["source"])
	assert.Equal(t, ts, bids.Meta()["timestamp"])

	asks, err := ob.Book(orderbook.Asks)
	require.NoError(t, err)
	assert.Equal(t, 3.0, asks.Depth())
}

func TestBookInvalidLevel(t *testing.T) {
	ob := OrderBook{Symbol: "X", Asks: map[float64]float64{math.NaN(): 1}}
	_, err := ob.Book(orderbook.Asks)
	assert.ErrorIs(t, err, orderbook.ErrInvalidArgument)

	_, err = ob.Book(orderbook.Side(9))
	assert.ErrorIs(t, err, orderbook.ErrInvalidArgument)
}
