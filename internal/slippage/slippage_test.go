package slippage

import (
	"testing"

	"github.com/amirphl/depthbook/internal/generate"
	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBps(t *testing.T) {
	bids, asks, err := generate.Books(10)
	require.NoError(t, err)

	tests := []struct {
		name     string
		book     *orderbook.SideOrderBook
		quantity float64
		want     float64
	}{
		// avg 110 vs best 100
		{name: "asks", book: asks, quantity: 4, want: 1000},
		// avg (190*10+180*4)/14 vs best 190
		{name: "bids", book: bids, quantity: 14, want: (190 - (190*10+180*4)/14.0) / 190 * 10000},
		{name: "single level", book: asks, quantity: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := tt.book.GetPriceStats(tt.quantity, 0)
			require.NoError(t, err)
			got, ok := Bps(stats, tt.book.Side())
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}

	_, ok := Bps(orderbook.PriceStats{}, orderbook.Asks)
	assert.False(t, ok)
}

func TestMidAndVersusMid(t *testing.T) {
	bids, err := orderbook.New(orderbook.Bids, map[float64]float64{99: 1, 98: 2}, nil)
	require.NoError(t, err)
	asks, err := orderbook.New(orderbook.Asks, map[float64]float64{101: 1, 102: 2}, nil)
	require.NoError(t, err)

	mid, ok := Mid(bids, asks)
	require.True(t, ok)
	assert.Equal(t, 100.0, mid)

	buy, err := asks.GetPriceStats(2, 0)
	require.NoError(t, err)
	got, ok := VersusMid(buy, orderbook.Asks, mid)
	require.True(t, ok)
	assert.InDelta(t, 150.0, got, 1e-9)

	sell, err := bids.GetPriceStats(2, 0)
	require.NoError(t, err)
	got, ok = VersusMid(sell, orderbook.Bids, mid)
	require.True(t, ok)
	assert.InDelta(t, 150.0, got, 1e-9)

	empty, err := orderbook.New(orderbook.Asks, nil, nil)
	require.NoError(t, err)
	_, ok = Mid(bids, empty)
	assert.False(t, ok)
}

func TestQuote(t *testing.T) {
	_, asks, err := generate.Books(10)
	require.NoError(t, err)

	est, err := Quote(asks, 8, 6)
	require.NoError(t, err)
	assert.Equal(t, "asks", est.Side)
	assert.Equal(t, 8.0, est.Quantity)
	assert.Equal(t, 6.0, est.Buffer)
	require.NotNil(t, est.Bps)
	// avg 135 vs best 130
	assert.InDelta(t, 5.0/130*10000, *est.Bps, 1e-9)

	est, err = Quote(asks, 5, 1000)
	require.NoError(t, err)
	assert.Nil(t, est.Bps)
	assert.True(t, est.Stats.DepthExceeded)

	_, err = Quote(asks, -1, 0)
	assert.ErrorIs(t, err, orderbook.ErrInvalidArgument)
}
