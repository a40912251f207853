package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"zero", 0, "$0,00"},
		{"small", 5.5, "$5,50"},
		{"hundreds", 123.45, "$123,45"},
		{"thousands separator", 1234.56, "$1.234,56"},
		{"millions", 1234567.89, "$1.234.567,89"},
		{"exact thousand", 1000, "$1.000,00"},
		{"rounding", 19.999, "$20,00"},
		{"negative", -1234.5, "-$1.234,50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.input))
		})
	}
}
