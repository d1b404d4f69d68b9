// Package levels holds price levels in price order.
package levels

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/tidwall/btree"
)

const degree = 32

var (
	ErrNotFound        = errors.New("price level not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Levels is an ordered price -> quantity map with unique prices.
// It is not safe for concurrent use.
type Levels struct {
	tree *btree.Map[float64, float64]
}

// New returns Levels holding a copy of initial.
func New(initial map[float64]float64) (*Levels, error) {
	l := &Levels{tree: btree.NewMap[float64, float64](degree)}
	if err := l.Update(initial); err != nil {
		return nil, err
	}
	return l, nil
}

// Bound returns v as an explicit range bound. A nil bound means unbounded.
func Bound(v float64) *float64 {
	return &v
}

func validate(price, quantity float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price %v", ErrInvalidArgument, price)
	}
	if math.IsNaN(quantity) || quantity < 0 {
		return fmt.Errorf("%w: quantity %v at price %v", ErrInvalidArgument, quantity, price)
	}
	return nil
}

func (l *Levels) Get(price float64) (float64, bool) {
	return l.tree.Get(price)
}

// Set inserts or overwrites the quantity at price.
func (l *Levels) Set(price, quantity float64) error {
	if err := validate(price, quantity); err != nil {
		return err
	}
	l.tree.Set(price, quantity)
	return nil
}

func (l *Levels) Delete(price float64) error {
	if _, ok := l.tree.Delete(price); !ok {
		return fmt.Errorf("%w: price %v", ErrNotFound, price)
	}
	return nil
}

// Update upserts every entry of batch. Nothing is applied if any entry is invalid.
func (l *Levels) Update(batch map[float64]float64) error {
	for price, quantity := range batch {
		if err := validate(price, quantity); err != nil {
			return err
		}
	}
	for price, quantity := range batch {
		l.tree.Set(price, quantity)
	}
	return nil
}

func (l *Levels) Clear() {
	l.tree = btree.NewMap[float64, float64](degree)
}

func (l *Levels) Len() int {
	return l.tree.Len()
}

func (l *Levels) Min() (float64, float64, bool) {
	return l.tree.Min()
}

func (l *Levels) Max() (float64, float64, bool) {
	return l.tree.Max()
}

// All yields (price, quantity) pairs in ascending or descending price order.
// The sequence is restartable; the levels must not be mutated while it runs.
func (l *Levels) All(ascending bool) iter.Seq2[float64, float64] {
	return func(yield func(float64, float64) bool) {
		if ascending {
			l.tree.Scan(yield)
			return
		}
		l.tree.Reverse(yield)
	}
}

// Prices yields prices in ascending or descending order.
func (l *Levels) Prices(ascending bool) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for price := range l.All(ascending) {
			if !yield(price) {
				return
			}
		}
	}
}

// Range yields, in ascending order, the prices p with low <= p <= high.
// A nil bound leaves that side open. A NaN bound matches no price, so the
// range is empty.
func (l *Levels) Range(low, high *float64) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for price := range l.RangeLevels(low, high) {
			if !yield(price) {
				return
			}
		}
	}
}

// RangeLevels is Range yielding quantities alongside prices.
func (l *Levels) RangeLevels(low, high *float64) iter.Seq2[float64, float64] {
	return func(yield func(float64, float64) bool) {
		if (low != nil && math.IsNaN(*low)) || (high != nil && math.IsNaN(*high)) {
			return
		}
		if low != nil && high != nil && *low > *high {
			return
		}
		visit := func(price, quantity float64) bool {
			if high != nil && price > *high {
				return false
			}
			return yield(price, quantity)
		}
		if low == nil {
			l.tree.Scan(visit)
			return
		}
		l.tree.Ascend(*low, visit)
	}
}
