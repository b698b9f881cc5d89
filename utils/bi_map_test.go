package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBiMap(t *testing.T) {
	input := map[string]int{
		"one": 1,
		"two": 2,
	}
	biMap := NewBiMap(input)

	t.Run("Lookup", func(t *testing.T) {
		val, ok := biMap.Lookup("one")
		assert.True(t, ok)
		assert.Equal(t, 1, val)

		val, ok = biMap.Lookup("three")
		assert.False(t, ok)
		assert.Equal(t, 0, val)
	})

	t.Run("RLookup", func(t *testing.T) {
		key, ok := biMap.RLookup(1)
		assert.True(t, ok)
		assert.Equal(t, "one", key)

		key, ok = biMap.RLookup(3)
		assert.False(t, ok)
		assert.Equal(t, "", key)
	})

	t.Run("DuplicateValues", func(t *testing.T) {
		input := map[string]int{
			"one": 1,
			"uno": 1,
		}
		biMap := NewBiMap(input)

		val, ok := biMap.Lookup("one")
		assert.True(t, ok)
		assert.Equal(t, 1, val)

		val, ok = biMap.Lookup("uno")
		assert.True(t, ok)
		assert.Equal(t, 1, val)

		// Reverse lookup resolves to one of the keys.
		key, ok := biMap.RLookup(1)
		assert.True(t, ok)
		assert.Contains(t, []string{"one", "uno"}, key)
	})

	t.Run("Immutability", func(t *testing.T) {
		input := map[string]int{"one": 1}
		biMap := NewBiMap(input)
		input["one"] = 100

		val, ok := biMap.Lookup("one")
		assert.True(t, ok)
		assert.Equal(t, 1, val)
	})
}
