package borrowck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowTracker_Shared(t *testing.T) {
	t.Parallel()
	bt := NewBorrowTracker()

	b1, err := bt.RequestShared(1, 0, 0)
	require.NoError(t, err)
	b2, err := bt.RequestShared(1, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, AliasState{Shared: 2}, bt.State(1))
	assert.Len(t, bt.Active(1), 2)

	_, err = bt.RequestExclusive(1, 0, 0)
	assert.ErrorIs(t, err, ErrExclusiveWhileBorrowed)

	bt.Release(b1.ID)
	assert.Equal(t, "shared(1)", bt.State(1).String())
	bt.Release(b2.ID)
	assert.True(t, bt.State(1).IsNone())

	// releasing twice is a no-op
	bt.Release(b2.ID)
	assert.True(t, bt.State(1).IsNone())
}

func TestBorrowTracker_Exclusive(t *testing.T) {
	t.Parallel()
	bt := NewBorrowTracker()

	b, err := bt.RequestExclusive(1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "exclusive", bt.State(1).String())

	_, err = bt.RequestShared(1, 0, 0)
	assert.ErrorIs(t, err, ErrSharedWhileExclusive)
	_, err = bt.RequestExclusive(1, 0, 0)
	assert.ErrorIs(t, err, ErrExclusiveWhileBorrowed)

	// other resources are unaffected
	_, err = bt.RequestExclusive(2, 0, 0)
	assert.NoError(t, err)

	bt.Release(b.ID)
	_, err = bt.RequestExclusive(1, 0, 0)
	assert.NoError(t, err)
}

func TestBorrowTracker_Dangling(t *testing.T) {
	t.Parallel()
	bt := NewBorrowTracker()

	_, err := bt.RequestShared(1, 0, 1)
	assert.ErrorIs(t, err, ErrDanglingBorrow)
	_, err = bt.RequestExclusive(1, 1, 2)
	assert.ErrorIs(t, err, ErrDanglingBorrow)
	assert.True(t, bt.State(1).IsNone())

	_, err = bt.RequestShared(1, 2, 1)
	assert.NoError(t, err)
}

func TestBorrowTracker_EndFrom(t *testing.T) {
	t.Parallel()
	bt := NewBorrowTracker()

	outer, _ := bt.RequestShared(1, 0, 0)
	inner, _ := bt.RequestShared(1, 1, 0)
	deeper, _ := bt.RequestShared(2, 2, 0)

	ended := bt.EndFrom(1)
	assert.Equal(t, []BorrowID{inner.ID, deeper.ID}, ended)
	assert.True(t, outer.IsActive())
	assert.False(t, inner.IsActive())
	assert.Equal(t, AliasState{Shared: 1}, bt.State(1))
	assert.True(t, bt.State(2).IsNone())
}

func TestBorrowTracker_Reborrow(t *testing.T) {
	t.Parallel()

	t.Run("shared through exclusive", func(t *testing.T) {
		bt := NewBorrowTracker()
		parent, _ := bt.RequestExclusive(1, 0, 0)

		child, err := bt.Reborrow(parent, SharedBorrow, 0)
		require.NoError(t, err)
		assert.Equal(t, parent.ID, child.Parent)
		assert.Equal(t, AliasState{Exclusive: true}, bt.State(1))

		bt.Release(child.ID)
		assert.Equal(t, AliasState{Exclusive: true}, bt.State(1))
		assert.True(t, bt.Live(parent))
	})

	t.Run("exclusive through shared", func(t *testing.T) {
		bt := NewBorrowTracker()
		parent, _ := bt.RequestShared(1, 0, 0)

		_, err := bt.Reborrow(parent, ExclusiveBorrow, 0)
		assert.ErrorIs(t, err, ErrReborrowMutability)
	})

	t.Run("outlives parent", func(t *testing.T) {
		bt := NewBorrowTracker()
		parent, _ := bt.RequestShared(1, 1, 0)

		_, err := bt.Reborrow(parent, SharedBorrow, 0)
		assert.ErrorIs(t, err, ErrDanglingBorrow)
	})

	t.Run("parent ended", func(t *testing.T) {
		bt := NewBorrowTracker()
		parent, _ := bt.RequestExclusive(1, 0, 0)
		child, _ := bt.Reborrow(parent, ExclusiveBorrow, 0)

		bt.Release(parent.ID)
		assert.True(t, child.IsActive())
		assert.False(t, bt.Live(child))
	})
}

func TestBorrowTracker_Rejected(t *testing.T) {
	t.Parallel()
	bt := NewBorrowTracker()

	b := bt.Rejected(ExclusiveBorrow, 1, 0)
	assert.False(t, b.IsActive())
	assert.True(t, bt.State(1).IsNone())
	assert.Empty(t, bt.Active(1))

	got, ok := bt.Get(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = bt.Get(99)
	assert.False(t, ok)
}

func TestBorrowKind_AndConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "&", SharedBorrow.String())
	assert.Equal(t, "&mut", ExclusiveBorrow.String())
	assert.Equal(t, OpBorrowShared, BorrowShared("a", "r").Kind)
	assert.Equal(t, OpBorrowExclusive, BorrowExclusive("a", "m").Kind)
}
