package util

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcatIter(t *testing.T) {
	a := slices.Values([]int{1, 2})
	b := slices.Values([]int{3})
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(ConcatIter(a, b)))
}

func TestMapIter(t *testing.T) {
	doubled := MapIter(slices.Values([]int{1, 2, 3}), func(v int) int { return v * 2 })
	assert.Equal(t, []int{2, 4, 6}, slices.Collect(doubled))
}

func TestSetFromSeq(t *testing.T) {
	s := SetFromSeq(slices.Values([]string{"a", "b", "a"}), 3)
	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Contains("a"))
}

func TestStack(t *testing.T) {
	var s Stack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	v, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	s.Push(3)
	assert.Equal(t, 2, s.Len())
	v, ok = s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = s.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPair(t *testing.T) {
	p := NewPair("k", 1)
	assert.Equal(t, "k", p.Fst)
	assert.Equal(t, 1, p.Snd)
}
