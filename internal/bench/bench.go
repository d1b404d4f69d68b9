// Package bench times the order book's public operations on synthetic data.
package bench

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/amirphl/depthbook/internal/generate"
	"github.com/amirphl/depthbook/internal/orderbook"
	"go.uber.org/zap"
)

const (
	CaseInit       = "init"
	CaseSet        = "set"
	CaseUpdate     = "update"
	CaseDelete     = "delete"
	CaseClear      = "clear"
	CasePriceStats = "price_stats"
	CaseQuantity   = "quantity"
)

var AllCases = []string{CaseInit, CaseSet, CaseUpdate, CaseDelete, CaseClear, CasePriceStats, CaseQuantity}

type Config struct {
	Sides      []orderbook.Side
	Sizes      []int
	Orders     []int
	Iterations int
	Seed       uint64
	Cases      []string // empty means AllCases
	Logger     *zap.Logger
}

type Result struct {
	Case       string
	Side       orderbook.Side
	Size       int
	Orders     int
	Iterations int
	Total      time.Duration
	PerOp      time.Duration
}

type fixture struct {
	side   orderbook.Side
	size   int
	ladder map[float64]float64
	orders map[float64]float64
	// query arguments, mirrored so they mean the same window on both sides
	queries   [][2]*float64
	fills     [][2]float64
	deletions []float64
}

func newFixture(cfg Config, side orderbook.Side, size, norders int) fixture {
	rng := generate.NewRand(cfg.Seed + uint64(size)*31 + uint64(norders))
	ladder := generate.Ladder(size)
	top := 100 + float64(norders)*10
	f := fixture{
		side:      side,
		size:      size,
		ladder:    ladder,
		orders:    generate.Orders(rng, size, generate.Bounds{Lo: 100, Hi: top}, generate.DefaultQtyBounds),
		deletions: slices.Sorted(maps.Keys(ladder)),
	}
	for i := 0; i < norders; i++ {
		lo := 100 + rng.Float64()*float64(size)*10
		hi := lo + rng.Float64()*float64(size)*10
		worst, best := &lo, &hi
		if side == orderbook.Asks {
			worst, best = &hi, &lo
		}
		f.queries = append(f.queries, [2]*float64{worst, best})
		f.fills = append(f.fills, [2]float64{rng.Float64() * float64(size*size), rng.Float64() * float64(size)})
	}
	return f
}

func (f fixture) book() (*orderbook.SideOrderBook, error) {
	return orderbook.New(f.side, f.ladder, nil)
}

// timed runs op iterations times; setup runs before each op outside the timed region.
func timed(iterations int, setup func() (*orderbook.SideOrderBook, error), op func(*orderbook.SideOrderBook) error) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < iterations; i++ {
		var book *orderbook.SideOrderBook
		if setup != nil {
			var err error
			if book, err = setup(); err != nil {
				return 0, err
			}
		}
		start := time.Now()
		if err := op(book); err != nil {
			return 0, err
		}
		total += time.Since(start)
	}
	return total, nil
}

func (f fixture) run(name string, iterations int) (time.Duration, error) {
	// read-only cases share one book
	shared, err := f.book()
	if err != nil {
		return 0, err
	}
	reuse := func() (*orderbook.SideOrderBook, error) { return shared, nil }

	switch name {
	case CaseInit:
		return timed(iterations, nil, func(*orderbook.SideOrderBook) error {
			_, err := orderbook.New(f.side, f.ladder, nil)
			return err
		})
	case CaseSet:
		return timed(iterations, f.book, func(b *orderbook.SideOrderBook) error {
			for price, qty := range f.orders {
				if err := b.Set(price, qty); err != nil {
					return err
				}
			}
			return nil
		})
	case CaseUpdate:
		return timed(iterations, f.book, func(b *orderbook.SideOrderBook) error {
			return b.Update(f.orders)
		})
	case CaseDelete:
		return timed(iterations, f.book, func(b *orderbook.SideOrderBook) error {
			for _, price := range f.deletions {
				if err := b.Delete(price); err != nil {
					return err
				}
			}
			return nil
		})
	case CaseClear:
		return timed(iterations, f.book, func(b *orderbook.SideOrderBook) error {
			b.Clear()
			return nil
		})
	case CasePriceStats:
		return timed(iterations, reuse, func(b *orderbook.SideOrderBook) error {
			for _, args := range f.fills {
				if _, err := b.GetPriceStats(args[0], args[1]); err != nil {
					return err
				}
			}
			return nil
		})
	case CaseQuantity:
		return timed(iterations, reuse, func(b *orderbook.SideOrderBook) error {
			for _, args := range f.queries {
				_ = b.GetQuantity(args[0], args[1])
			}
			return nil
		})
	}
	return 0, fmt.Errorf("unknown bench case %q", name)
}

// Run times every case for each side, book size and order count.
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	cases := cfg.Cases
	if len(cases) == 0 {
		cases = AllCases
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var results []Result
	for _, side := range cfg.Sides {
		for _, size := range cfg.Sizes {
			for _, norders := range cfg.Orders {
				f := newFixture(cfg, side, size, norders)
				for _, name := range cases {
					if err := ctx.Err(); err != nil {
						return results, err
					}
					total, err := f.run(name, cfg.Iterations)
					if err != nil {
						return results, fmt.Errorf("bench %s/%s/size=%d/orders=%d: %w", name, side, size, norders, err)
					}
					r := Result{
						Case:       name,
						Side:       side,
						Size:       size,
						Orders:     norders,
						Iterations: cfg.Iterations,
						Total:      total,
						PerOp:      total / time.Duration(cfg.Iterations),
					}
					logger.Debug("Bench | case done",
						zap.String("case", name),
						zap.Stringer("side", side),
						zap.Int("size", size),
						zap.Int("orders", norders),
						zap.Duration("per_op", r.PerOp),
					)
					results = append(results, r)
				}
			}
		}
	}
	return results, nil
}

// Write prints results as an aligned table.
func Write(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tSIDE\tSIZE\tORDERS\tITERATIONS\tPER OP")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Case, r.Side, r.Size, r.Orders, r.Iterations, r.PerOp)
	}
	return tw.Flush()
}
