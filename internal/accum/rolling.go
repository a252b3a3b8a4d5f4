// Package accum provides fixed-size rolling accumulators: a ring of the most
// recent samples plus a running sum, updated in O(1) without allocation.
//
// Accumulators are not safe for concurrent use. The writer is the scheduler
// tick; readers must exclude it (see package irq).
package accum

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Rolling keeps the last N samples and their exact sum.
// N is a power of two so the cursor wraps with a mask.
type Rolling[T constraints.Unsigned] struct {
	slots  []T
	mask   int
	cursor int
	sum    T
}

// New creates a zeroed accumulator of capacity n.
func New[T constraints.Unsigned](n int) (*Rolling[T], error) {
	if !IsPowerOfTwo(n) {
		return nil, fmt.Errorf("accum: capacity %d is not a power of two", n)
	}
	return &Rolling[T]{
		slots: make([]T, n),
		mask:  n - 1,
	}, nil
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Update replaces the oldest sample with v and advances the cursor.
func (r *Rolling[T]) Update(v T) {
	r.sum = r.sum - r.slots[r.cursor] + v
	r.slots[r.cursor] = v
	r.cursor = (r.cursor + 1) & r.mask
}

// Set replaces slot i with v without moving the cursor.
func (r *Rolling[T]) Set(i int, v T) {
	i &= r.mask
	r.sum = r.sum - r.slots[i] + v
	r.slots[i] = v
}

// Fill sets every slot to v and rewinds the cursor.
func (r *Rolling[T]) Fill(v T) {
	var sum T
	for i := range r.slots {
		r.slots[i] = v
		sum += v
	}
	r.sum = sum
	r.cursor = 0
}

// Reset zeroes the accumulator.
func (r *Rolling[T]) Reset() {
	r.Fill(0)
}

// Sum returns the sum of all slots.
func (r *Rolling[T]) Sum() T {
	return r.sum
}

// Cursor returns the index of the next slot to be overwritten.
func (r *Rolling[T]) Cursor() int {
	return r.cursor
}

// Len returns the capacity.
func (r *Rolling[T]) Len() int {
	return len(r.slots)
}

// Slots returns a copy of the ring in storage order.
func (r *Rolling[T]) Slots() []T {
	out := make([]T, len(r.slots))
	copy(out, r.slots)
	return out
}
