package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_PushEvictsOldest(t *testing.T) {
	t.Parallel()

	r := New[int](3)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Push(i), "push %d should not evict", i)
	}
	assert.True(t, r.IsFull())
	assert.Equal(t, []int{1, 2, 3}, r.Snapshot())

	assert.True(t, r.Push(4))
	assert.True(t, r.Push(5))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Snapshot())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestRing_LenNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	r := New[float64](5)
	for i := 0; i < 100; i++ {
		r.Push(float64(i))
		assert.LessOrEqual(t, r.Len(), r.Cap())
	}
	assert.Equal(t, []float64{95, 96, 97, 98, 99}, r.Snapshot())
}

func TestRing_Clear(t *testing.T) {
	t.Parallel()

	t.Run("clears buffered elements", func(t *testing.T) {
		r := New[string](4)
		r.Push("a")
		r.Push("b")
		r.Clear()

		assert.Equal(t, 0, r.Len())
		assert.Empty(t, r.Snapshot())
		_, ok := r.Last()
		assert.False(t, ok)

		r.Push("c")
		assert.Equal(t, []string{"c"}, r.Snapshot())
	})

	t.Run("clear on empty is a no-op", func(t *testing.T) {
		r := New[string](4)
		assert.NotPanics(t, func() {
			r.Clear()
			r.Clear()
		})
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, 4, r.Cap())
	})
}

func TestRing_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	r := New[int](2)
	r.Push(1)
	snap := r.Snapshot()
	snap[0] = 42

	assert.Equal(t, []int{1}, r.Snapshot())
}

func TestNew_MinimumCapacity(t *testing.T) {
	t.Parallel()

	r := New[int](0)
	assert.Equal(t, 1, r.Cap())
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Snapshot())
}
