// Package hset implements a set of hashable elements, JVM style
package hset

import (
	"github.com/benbjohnson/immutable"
)

// HSet is a set keyed by an immutable.Hasher. Elements keep their
// insertion order, and elements whose hashes collide are told apart
// with Hasher.Equal.
// use immutable.Set if you are not going to be modifying this
// as it is more copy efficient
type HSet[A any] struct {
	hasher  immutable.Hasher[A]
	buckets map[uint32][]int
	items   []A
}

func Empty[A any](hasher immutable.Hasher[A]) *HSet[A] {
	return &HSet[A]{
		hasher:  hasher,
		buckets: make(map[uint32][]int),
	}
}

func New[A any](hasher immutable.Hasher[A], elems ...A) *HSet[A] {
	n := Empty(hasher)
	n.Add(elems...)
	return n
}

func (s *HSet[A]) indexOf(elem A) (uint32, int) {
	hash := s.hasher.Hash(elem)
	for _, i := range s.buckets[hash] {
		if s.hasher.Equal(s.items[i], elem) {
			return hash, i
		}
	}
	return hash, -1
}

// Add inserts the elements not already present, and reports whether any was
func (s *HSet[A]) Add(elems ...A) bool {
	added := false
	for _, elem := range elems {
		hash, i := s.indexOf(elem)
		if i >= 0 {
			continue
		}
		s.buckets[hash] = append(s.buckets[hash], len(s.items))
		s.items = append(s.items, elem)
		added = true
	}
	return added
}

func (s *HSet[A]) Contains(elem A) bool {
	_, i := s.indexOf(elem)
	return i >= 0
}

func (s *HSet[A]) Len() int {
	return len(s.items)
}

// Slice returns the elements in insertion order
func (s *HSet[A]) Slice() []A {
	slice := make([]A, len(s.items))
	copy(slice, s.items)
	return slice
}
