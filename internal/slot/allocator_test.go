package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorSmallestFree(t *testing.T) {
	a := NewAllocator(999)

	s1, err := a.Acquire("alice")
	require.NoError(t, err)
	s2, err := a.Acquire("bob")
	require.NoError(t, err)
	s3, err := a.Acquire("carol")
	require.NoError(t, err)

	assert.Equal(t, 1, s1)
	assert.Equal(t, 2, s2)
	assert.Equal(t, 3, s3)

	// Freed slots are reused before extending the range
	a.Release(s2)
	s4, err := a.Acquire("dave")
	require.NoError(t, err)
	assert.Equal(t, 2, s4)

	s5, err := a.Acquire("erin")
	require.NoError(t, err)
	assert.Equal(t, 4, s5)
}

func TestAllocatorExhaustion(t *testing.T) {
	a := NewAllocator(3)

	for i := 0; i < 3; i++ {
		_, err := a.Acquire("p")
		require.NoError(t, err)
	}

	_, err := a.Acquire("late")
	assert.ErrorIs(t, err, ErrExhausted)

	a.Release(2)
	s, err := a.Acquire("late")
	require.NoError(t, err)
	assert.Equal(t, 2, s)
}

func TestAllocatorReleaseIdempotent(t *testing.T) {
	a := NewAllocator(10)

	s, err := a.Acquire("alice")
	require.NoError(t, err)

	a.Release(s)
	a.Release(s)
	a.Release(42) // out of range, no-op

	assert.Equal(t, 0, a.InUse())
}

func TestAllocatorOwner(t *testing.T) {
	a := NewAllocator(10)

	s, err := a.Acquire("alice")
	require.NoError(t, err)

	owner, ok := a.Owner(s)
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)

	a.Release(s)
	_, ok = a.Owner(s)
	assert.False(t, ok)
}
