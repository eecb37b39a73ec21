package aggregator

// Slot is one writer's private buffer inside an Aggregator.
type Slot[T any] struct {
	agg   *Aggregator[T]
	value *T
}

// Value returns the slot's buffer. Only the owning writer may mutate it.
func (s *Slot[T]) Value() *T {
	return s.value
}

// Release folds the slot into the retired total and forgets it. The owner
// must not write to Value afterwards. Releasing twice is a no-op.
func (s *Slot[T]) Release() {
	s.agg.release(s)
}
