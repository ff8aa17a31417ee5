package hset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// firstLetter hashes strings by their first letter only, so that
// collisions are told apart by Equal
type firstLetter struct{}

func (firstLetter) Hash(s string) uint32 {
	if s == "" {
		return 0
	}
	return uint32(s[0])
}

func (firstLetter) Equal(a, b string) bool { return a == b }

func TestHSet(t *testing.T) {
	s := New[string](firstLetter{}, "apple", "avocado", "banana")
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("avocado"))
	assert.False(t, s.Contains("apricot"))

	assert.False(t, s.Add("apple"))
	assert.True(t, s.Add("apricot", "banana"))
	assert.Equal(t, []string{"apple", "avocado", "banana", "apricot"}, s.Slice())

	slice := s.Slice()
	slice[0] = strings.ToUpper(slice[0])
	assert.True(t, s.Contains("apple"))
}

func TestEmpty(t *testing.T) {
	s := Empty[string](firstLetter{})
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Slice())
	assert.True(t, s.Add(""))
	assert.True(t, s.Contains(""))
}
