package utils

// BiMap is an immutable bidirectional map: lookups work by key or by value.
// Both type parameters must be comparable. If the input map contains
// duplicate values, the reverse mapping keeps the last key seen.
type BiMap[K comparable, V comparable] struct {
	forward map[K]V
	reverse map[V]K
}

// NewBiMap creates a BiMap from the provided mapping, copying it defensively.
func NewBiMap[K comparable, V comparable](input map[K]V) *BiMap[K, V] {
	forward := make(map[K]V, len(input))
	reverse := make(map[V]K, len(input))
	for k, v := range input {
		forward[k] = v
		reverse[v] = k
	}
	return &BiMap[K, V]{forward: forward, reverse: reverse}
}

// Lookup finds a value by its key.
func (m *BiMap[K, V]) Lookup(key K) (V, bool) {
	value, ok := m.forward[key]
	return value, ok
}

// RLookup finds a key by its value.
func (m *BiMap[K, V]) RLookup(value V) (K, bool) {
	key, ok := m.reverse[value]
	return key, ok
}
