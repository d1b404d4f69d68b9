package orderbook

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"testing"
)

var benchSizes = []int{10, 50, 100}

func randomOrders(rng *rand.Rand, size int, lo, hi float64) map[float64]float64 {
	out := make(map[float64]float64, size)
	for i := 0; i < size; i++ {
		out[lo+(hi-lo)*rng.Float64()] = 5 + 5*rng.Float64()
	}
	return out
}

func BenchmarkNew(b *testing.B) {
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			data := ladder(size)
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := New(side, data, nil); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkSet(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			orders := randomOrders(rng, size, 100, 100+float64(size)*10)
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				book, err := New(side, ladder(size), nil)
				if err != nil {
					b.Fatal(err)
				}
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					for price, qty := range orders {
						_ = book.Set(price, qty)
					}
				}
			})
		}
	}
}

func BenchmarkUpdate(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			orders := randomOrders(rng, size, 100, 100+float64(size)*10)
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				book, err := New(side, ladder(size), nil)
				if err != nil {
					b.Fatal(err)
				}
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_ = book.Update(orders)
				}
			})
		}
	}
}

func BenchmarkDelete(b *testing.B) {
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			data := ladder(size)
			prices := slices.Collect(maps.Keys(data))
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					b.StopTimer()
					book, _ := New(side, data, nil)
					b.StartTimer()
					for _, price := range prices {
						_ = book.Delete(price)
					}
				}
			})
		}
	}
}

func BenchmarkGetPriceStats(b *testing.B) {
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			book, _ := New(side, ladder(size), nil)
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					for _, q := range []float64{1, 10, 100} {
						_, _ = book.GetPriceStats(q, 0)
						_, _ = book.GetPriceStats(q, 5)
					}
				}
			})
		}
	}
}

func BenchmarkGetQuantity(b *testing.B) {
	for _, side := range []Side{Bids, Asks} {
		for _, size := range benchSizes {
			book, _ := New(side, ladder(size), nil)
			worst, best := 100+float64(size)*2, 100+float64(size)*8
			if side == Asks {
				worst, best = best, worst
			}
			b.Run(fmt.Sprintf("%s/size=%d", side, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					_ = book.GetQuantity(nil, nil)
					_ = book.GetQuantity(&worst, nil)
					_ = book.GetQuantity(&worst, &best)
				}
			})
		}
	}
}
