package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello\nworld", Sanitize("  hello\nworld\x00\x1b "))
	assert.Equal(t, "tab\tkept", Sanitize("tab\tkept"))
	assert.Equal(t, "", Sanitize("\x00\x01"))
}

func TestHead(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", Head("abcdef", 3))
	assert.Equal(t, "abc", Head("abc", 10))
	assert.Equal(t, "", Head("abc", -1))
}

func TestFirstSentence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "One.", FirstSentence("One. Two."))
	assert.Equal(t, "no terminator", FirstSentence("no terminator"))
}
