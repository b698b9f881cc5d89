package datamine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeASCII(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"plain", []byte("hello"), "hello"},
		{"empty", []byte(""), ""},
		{"high bytes dropped", []byte("caf\xc3\xa9s"), "cafs"},
		{"mixed", []byte("a\xffb\xfec"), "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeASCII(tt.raw))
		})
	}
}

func TestDecodeFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b ,c ", []string{"a", "b", "c"}},
		{"null sentinel", `a,\N,c`, []string{"a", "", "c"}},
		{"escaped colon", `key\: value,b`, []string{"key: value", "b"}},
		{"escaped comma", `red\, round,b`, []string{"red, round", "b"}},
		{"multiple escaped commas", `a\,b\,c,d`, []string{"a,b,c", "d"}},
		{"only nulls", `\N,\N`, []string{"", ""}},
		{"single field", "solo", []string{"solo"}},
		{"empty line", "", []string{""}},
		{"non-ascii dropped before split", "a\xe2\x82\xacb,c", []string{"ab", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeFields([]byte(tt.raw)))
		})
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"uppercased", "item,inv", []string{"ITEM", "INV"}},
		{"trimmed", " item , inv ", []string{"ITEM", "INV"}},
		{"already upper", "ITEM,INV", []string{"ITEM", "INV"}},
		{"single column", "count", []string{"COUNT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHeader([]byte(tt.raw)))
		})
	}
}
