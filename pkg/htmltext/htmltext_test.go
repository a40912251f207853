package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "just plain text",
			expected: "just plain text",
		},
		{
			name:     "tags removed",
			input:    "<p>Hello <strong>world</strong></p>",
			expected: "Hello world",
		},
		{
			name:     "script content dropped",
			input:    "<p>visible</p><script>alert('x')</script>",
			expected: "visible",
		},
		{
			name:     "style content dropped",
			input:    "<style>.a{color:red}</style><div>text</div>",
			expected: "text",
		},
		{
			name:     "whitespace collapsed",
			input:    "<p>a\n\n   b</p>\t<p>c</p>",
			expected: "a b c",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "entities decoded",
			input:    "<p>caf&eacute; &amp; t&eacute;</p>",
			expected: "café & té",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Strip(tt.input))
		})
	}
}

func TestStripIdempotent(t *testing.T) {
	input := "<div><p>Una <em>descripción</em> de producto</p></div>"
	once := Strip(input)
	twice := Strip(once)
	assert.Equal(t, once, twice)
}
