package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/depthbook/internal/config"
	"github.com/amirphl/depthbook/internal/exchange"
	"github.com/amirphl/depthbook/internal/generate"
	"github.com/amirphl/depthbook/internal/metrics"
	"github.com/amirphl/depthbook/internal/notifier"
	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunStatsSynthetic(t *testing.T) {
	cfg := config.Config{
		Mode:       config.ModeStats,
		Source:     config.SourceSynthetic,
		Symbol:     "TEST",
		Side:       "both",
		Quantities: []float64{4, 60},
		BookSizes:  []int{10},
	}
	var out bytes.Buffer
	err := runStats(context.Background(), cfg, statsSources(cfg, nil, zap.NewNop()), zap.NewNop(), &out)
	require.NoError(t, err)

	var reports []sideReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 2)

	bids, asks := reports[0], reports[1]
	assert.Equal(t, "bids", bids.Side)
	assert.Equal(t, "asks", asks.Side)
	assert.Equal(t, "synthetic", asks.Source)
	assert.Equal(t, 10, asks.Levels)
	assert.Equal(t, 55.0, asks.Depth)
	// both sides share the ladder, so best bid 190 and best ask 100
	require.NotNil(t, asks.Mid)
	assert.Equal(t, 145.0, *asks.Mid)

	require.Len(t, asks.Estimates, 2)
	require.NotNil(t, asks.Estimates[0].Stats.Average)
	assert.Equal(t, 110.0, *asks.Estimates[0].Stats.Average)
	assert.True(t, asks.Estimates[1].Stats.DepthExceeded)
	assert.Equal(t, 55.0, bids.Estimates[1].Stats.TotalQty)
}

func TestRunStatsOneSide(t *testing.T) {
	cfg := config.Config{Side: "asks", Symbol: "TEST", Quantities: []float64{1}}
	var out bytes.Buffer
	err := runStats(context.Background(), cfg, []exchange.Exchange{exchange.NewSyntheticExchange(3)}, zap.NewNop(), &out)
	require.NoError(t, err)

	var reports []sideReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Nil(t, reports[0].Mid)
}

func TestRunBench(t *testing.T) {
	cfg := config.Config{Side: "bids", BookSizes: []int{5}, Orders: []int{5}, Iterations: 1, Seed: 3}
	var out bytes.Buffer
	require.NoError(t, runBench(context.Background(), cfg, zap.NewNop(), &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 1+7)
}

func TestReporterAlertsOncePerCrossing(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New()
	state := exchange.NewBookState(nil)
	require.NoError(t, state.Replace("TEST", orderbook.Asks, generate.Ladder(10)))

	rep := &reporter{
		cfg:      config.Config{Symbol: "TEST", Quantities: []float64{4, 60}, WatchInterval: time.Second},
		state:    state,
		metrics:  m,
		notifier: notifier.NewLogNotifier(zap.New(core)),
		logger:   zap.NewNop(),
		exceeded: make(map[string]bool),
	}
	ss := []orderbook.Side{orderbook.Bids, orderbook.Asks}

	rep.report(context.Background(), ss)
	rep.report(context.Background(), ss)
	assert.Equal(t, 1, logs.FilterMessage("Notifier | alert").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DepthExceeded.WithLabelValues("TEST", "asks")))
	assert.Equal(t, 55.0, testutil.ToFloat64(m.BookDepth.WithLabelValues("TEST", "asks")))

	// depth recovers, then runs out again
	require.NoError(t, state.Replace("TEST", orderbook.Asks, generate.Ladder(20)))
	rep.report(context.Background(), ss)
	require.NoError(t, state.Replace("TEST", orderbook.Asks, generate.Ladder(10)))
	rep.report(context.Background(), ss)
	assert.Equal(t, 2, logs.FilterMessage("Notifier | alert").Len())
}

type fakeWatcher struct {
	exchange.DepthWatcher
	health    error
	connected bool
}

func (f *fakeWatcher) Health() error     { return f.health }
func (f *fakeWatcher) IsConnected() bool { return f.connected }

func TestReporterLogsUnhealthyWatchers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rep := &reporter{
		cfg:      config.Config{Symbol: "TEST"},
		state:    exchange.NewBookState(nil),
		metrics:  metrics.New(),
		notifier: notifier.NewLogNotifier(zap.NewNop()),
		logger:   zap.New(core),
		watchers: []exchange.DepthWatcher{
			&fakeWatcher{connected: true},
			&fakeWatcher{health: exchange.ErrPongTimeout, connected: true},
			&fakeWatcher{health: errors.New("dial failed")},
		},
		exceeded: make(map[string]bool),
	}

	rep.report(context.Background(), []orderbook.Side{orderbook.Asks})

	entries := logs.FilterMessage("Watch | watcher unhealthy").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ContextMap()["watcher"])
	assert.Equal(t, true, entries[0].ContextMap()["connected"])
	assert.Equal(t, exchange.ErrPongTimeout.Error(), entries[0].ContextMap()["error"])
	assert.Equal(t, false, entries[1].ContextMap()["connected"])
}
