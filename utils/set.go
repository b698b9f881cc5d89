package utils

// Set is a deduplicating collection that remembers insertion order.
// The zero value is not usable; create one with NewSet.
type Set[T comparable] struct {
	seen   map[T]struct{}
	values []T
}

// NewSet creates a Set seeded with the given values.
func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{seen: make(map[T]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a value, reporting whether it was newly added.
func (s *Set[T]) Add(value T) bool {
	if _, ok := s.seen[value]; ok {
		return false
	}
	s.seen[value] = struct{}{}
	s.values = append(s.values, value)
	return true
}

// Contains reports whether the value is present.
func (s *Set[T]) Contains(value T) bool {
	_, ok := s.seen[value]
	return ok
}

// Len returns the number of distinct values.
func (s *Set[T]) Len() int {
	return len(s.values)
}

// Values returns the distinct values in insertion order. The returned slice
// is a copy.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.values))
	copy(out, s.values)
	return out
}
