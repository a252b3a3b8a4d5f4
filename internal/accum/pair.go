package accum

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Pair is two accumulators of equal capacity sharing one write cursor.
// The cursor belongs to the active ring; offset samples land in the slot
// the cursor currently points at.
type Pair[T constraints.Unsigned] struct {
	active *Rolling[T]
	offset *Rolling[T]
}

// NewPair creates a zeroed pair of capacity n.
func NewPair[T constraints.Unsigned](n int) (*Pair[T], error) {
	a, err := New[T](n)
	if err != nil {
		return nil, fmt.Errorf("active: %w", err)
	}
	o, err := New[T](n)
	if err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}
	return &Pair[T]{active: a, offset: o}, nil
}

// PushActive records an active sample and advances the shared cursor.
func (p *Pair[T]) PushActive(v T) {
	p.active.Update(v)
}

// PushOffset records an offset sample at the shared cursor.
func (p *Pair[T]) PushOffset(v T) {
	p.offset.Set(p.active.Cursor(), v)
}

// Fill pre-loads both rings and rewinds the cursor.
func (p *Pair[T]) Fill(active, offset T) {
	p.active.Fill(active)
	p.offset.Fill(offset)
}

// Sums returns the active and offset sums.
func (p *Pair[T]) Sums() (active, offset T) {
	return p.active.Sum(), p.offset.Sum()
}

// Cursor returns the shared cursor.
func (p *Pair[T]) Cursor() int {
	return p.active.Cursor()
}

// Active exposes the active ring for inspection.
func (p *Pair[T]) Active() *Rolling[T] { return p.active }

// Offset exposes the offset ring for inspection.
func (p *Pair[T]) Offset() *Rolling[T] { return p.offset }
