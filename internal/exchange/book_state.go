package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/depthbook/internal/orderbook"
	"go.uber.org/zap"
)

// BookState holds the latest side book per symbol@depthType.
type BookState struct {
	mu     sync.RWMutex
	books  map[string]*orderbook.SideOrderBook
	logger *zap.Logger
}

func NewBookState(logger *zap.Logger) *BookState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookState{
		books:  make(map[string]*orderbook.SideOrderBook),
		logger: logger,
	}
}

// Replace swaps in a fresh book built from levels. The previous book stays
// in place if levels are invalid.
func (s *BookState) Replace(symbol string, side orderbook.Side, levels map[float64]float64) error {
	meta := map[string]any{
		"symbol":    symbol,
		"source":    "wallex",
		"timestamp": time.Now().UTC(),
	}
	book, err := orderbook.New(side, levels, meta, orderbook.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("replace %s: %w", DepthKey(symbol, side), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[DepthKey(symbol, side)] = book
	return nil
}

// View runs fn against the current book under a read lock. fn must not keep
// the book or mutate it.
func (s *BookState) View(symbol string, side orderbook.Side, fn func(*orderbook.SideOrderBook) error) error {
	key := DepthKey(symbol, side)
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[key]
	if !ok {
		return fmt.Errorf("%w: no book for %s", orderbook.ErrNotFound, key)
	}
	return fn(book)
}

func (s *BookState) Has(symbol string, side orderbook.Side) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.books[DepthKey(symbol, side)]
	return ok
}
