package util

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcatIter(t *testing.T) {
	concat := ConcatIter(slices.Values([]int{1, 2}), slices.Values([]int{}), slices.Values([]int{3}))
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(concat))

	var firstTwo []int
	for v := range concat {
		if len(firstTwo) == 2 {
			break
		}
		firstTwo = append(firstTwo, v)
	}
	assert.Equal(t, []int{1, 2}, firstTwo)
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []string{"c", "b", "a"}, slices.Collect(Reverse([]string{"a", "b", "c"})))
	assert.Empty(t, slices.Collect(Reverse([]string(nil))))
}

func TestStack(t *testing.T) {
	var s Stack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Len())
	top, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, top)
	assert.Equal(t, 1, s.Len())
}
