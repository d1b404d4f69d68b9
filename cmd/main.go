package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/depthbook/internal/bench"
	"github.com/amirphl/depthbook/internal/config"
	"github.com/amirphl/depthbook/internal/exchange"
	"github.com/amirphl/depthbook/internal/metrics"
	"github.com/amirphl/depthbook/internal/notifier"
	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/amirphl/depthbook/internal/slippage"
	"github.com/amirphl/depthbook/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sideReport is the stats output for one side of one book.
type sideReport struct {
	Symbol    string              `json:"symbol"`
	Source    string              `json:"source"`
	Side      string              `json:"side"`
	Levels    int                 `json:"levels"`
	Depth     float64             `json:"depth"`
	Mid       *float64            `json:"mid,omitempty"`
	Estimates []slippage.Estimate `json:"estimates"`
}

func sides(cfg config.Config) ([]orderbook.Side, error) {
	var out []orderbook.Side
	for _, s := range cfg.Sides() {
		side, err := orderbook.ParseSide(s)
		if err != nil {
			return nil, err
		}
		out = append(out, side)
	}
	return out, nil
}

func newNotifier(cfg config.Config, logger *zap.Logger) notifier.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notifier.NewLogNotifier(logger)
	}
	return notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID,
		cfg.NotificationRetries, cfg.NotificationDelay,
		notifier.WithLogger(logger),
		notifier.WithProxy(cfg.ProxyURL),
	)
}

func runBench(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	ss, err := sides(cfg)
	if err != nil {
		return err
	}
	results, err := bench.Run(ctx, bench.Config{
		Sides:      ss,
		Sizes:      cfg.BookSizes,
		Orders:     cfg.Orders,
		Iterations: cfg.Iterations,
		Seed:       cfg.Seed,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return bench.Write(out, results)
}

// statsSources returns one exchange per book to report on.
func statsSources(cfg config.Config, n notifier.Notifier, logger *zap.Logger) []exchange.Exchange {
	if cfg.Source == config.SourceWallex {
		return []exchange.Exchange{
			exchange.NewWallexExchange(cfg.WallexAPIKey, n, exchange.WithExchangeLogger(logger)),
		}
	}
	var out []exchange.Exchange
	for _, size := range cfg.BookSizes {
		out = append(out, exchange.NewSyntheticExchange(size))
	}
	return out
}

func runStats(ctx context.Context, cfg config.Config, sources []exchange.Exchange, logger *zap.Logger, out io.Writer) error {
	ss, err := sides(cfg)
	if err != nil {
		return err
	}

	var reports []sideReport
	for _, src := range sources {
		ob, err := src.FetchOrderBook(ctx, cfg.Symbol)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
		books := make(map[orderbook.Side]*orderbook.SideOrderBook, len(ss))
		for _, side := range ss {
			book, err := ob.Book(side, orderbook.WithLogger(logger))
			if err != nil {
				return err
			}
			books[side] = book
		}

		var mid *float64
		if len(books) == 2 {
			if m, ok := slippage.Mid(books[orderbook.Bids], books[orderbook.Asks]); ok {
				mid = &m
			}
		}

		for _, side := range ss {
			book := books[side]
			r := sideReport{
				Symbol: ob.Symbol,
				Source: ob.Source,
				Side:   side.String(),
				Levels: book.Len(),
				Depth:  book.GetQuantity(nil, nil),
				Mid:    mid,
			}
			for _, q := range cfg.Quantities {
				est, err := slippage.Quote(book, q, cfg.Buffer)
				if err != nil {
					return err
				}
				r.Estimates = append(r.Estimates, est)
			}
			reports = append(reports, r)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// reporter samples the watched books on every tick.
type reporter struct {
	cfg      config.Config
	state    *exchange.BookState
	metrics  *metrics.Metrics
	notifier notifier.Notifier
	logger   *zap.Logger
	watchers []exchange.DepthWatcher
	// exceeded remembers which quantities were last over depth, so alerts
	// fire once per crossing.
	exceeded map[string]bool
}

func (r *reporter) checkWatchers() {
	for i, w := range r.watchers {
		if err := w.Health(); err != nil {
			r.logger.Warn("Watch | watcher unhealthy",
				zap.Int("watcher", i),
				zap.Bool("connected", w.IsConnected()),
				zap.Error(err))
		}
	}
}

func (r *reporter) report(ctx context.Context, ss []orderbook.Side) {
	r.checkWatchers()

	var alerts []string
	for _, side := range ss {
		var estimates []slippage.Estimate
		err := r.state.View(r.cfg.Symbol, side, func(book *orderbook.SideOrderBook) error {
			r.metrics.ObserveBook(r.cfg.Symbol, book)
			for _, q := range r.cfg.Quantities {
				var est slippage.Estimate
				var err error
				r.metrics.Timed("price_stats", func() {
					est, err = slippage.Quote(book, q, r.cfg.Buffer)
				})
				if err != nil {
					return err
				}
				estimates = append(estimates, est)
			}
			return nil
		})
		if errors.Is(err, orderbook.ErrNotFound) {
			r.logger.Debug("Watch | no depth yet", zap.Stringer("side", side))
			continue
		}
		if err != nil {
			r.logger.Error("Watch | report failed", zap.Stringer("side", side), zap.Error(err))
			continue
		}

		for _, est := range estimates {
			r.metrics.ObserveEstimate(r.cfg.Symbol, est)
			fields := []zap.Field{
				zap.Stringer("side", side),
				zap.Float64("quantity", est.Quantity),
				zap.Bool("depth_exceeded", est.Stats.DepthExceeded),
			}
			if est.Stats.Average != nil {
				fields = append(fields, zap.Float64("average", *est.Stats.Average))
			}
			if est.Bps != nil {
				fields = append(fields, zap.Float64("slippage_bps", *est.Bps))
			}
			r.logger.Info("Watch | fill estimate", fields...)

			key := fmt.Sprintf("%s/%v", side, est.Quantity)
			if est.Stats.DepthExceeded && !r.exceeded[key] {
				alerts = append(alerts, fmt.Sprintf("%s %s: %v exceeds book depth (filled %v)",
					r.cfg.Symbol, side, est.Quantity, est.Stats.TotalQty))
			}
			r.exceeded[key] = est.Stats.DepthExceeded
		}
	}

	for _, msg := range alerts {
		if err := r.notifier.SendWithRetry(ctx, msg); err != nil {
			r.logger.Error("Watch | alert not delivered", zap.Error(err))
		}
	}
}

func runWatch(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ss, err := sides(cfg)
	if err != nil {
		return err
	}
	m := metrics.New()
	state := exchange.NewBookState(logger)
	watchers := make([]exchange.DepthWatcher, 0, len(ss))
	for _, side := range ss {
		watchers = append(watchers, exchange.NewWallexDepthWatcher(state, cfg.Symbol, side,
			exchange.WithWatcherLogger(logger),
			exchange.WithMetrics(m),
		))
	}
	rep := &reporter{
		cfg:      cfg,
		state:    state,
		metrics:  m,
		notifier: newNotifier(cfg, logger),
		logger:   logger,
		watchers: watchers,
		exceeded: make(map[string]bool),
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		defer w.Close()
		g.Go(func() error { return w.Run(ctx) })
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("Watch | serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.WatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				rep.report(ctx, ss)
			}
		}
	})

	return g.Wait()
}

func main() {
	cfg := config.MustLoadConfig()

	logCfg := utils.DefaultLogConfig()
	logCfg.Filename = cfg.LogFile
	logCfg.Level = cfg.LogLevel
	utils.Configure(logCfg, cfg.Mode == config.ModeWatch)
	logger := utils.GetLogger()
	defer logger.Sync()
	logger.Info("Starting depthbook", zap.String("mode", cfg.Mode), zap.String("source", cfg.Source))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", zap.Stringer("signal", sig))
		cancel()
	}()

	var err error
	switch cfg.Mode {
	case config.ModeBench:
		err = runBench(ctx, cfg, logger, os.Stdout)
	case config.ModeStats:
		err = runStats(ctx, cfg, statsSources(cfg, newNotifier(cfg, logger), logger), logger, os.Stdout)
	case config.ModeWatch:
		err = runWatch(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("depthbook failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
