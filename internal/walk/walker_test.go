package walk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/gisttest"
	"github.com/alexhholmes/gevel/internal/storage"
	"github.com/alexhholmes/gevel/internal/walk"
)

type visit struct {
	Level int
	Block base.BlockNumber
}

func collect(t *testing.T, src base.PageSource, opts ...walk.Option) ([]visit, error) {
	t.Helper()
	w := walk.New(src, base.GistRootBlock, opts...)
	var out []visit
	for w.Next() {
		n := w.Node()
		require.Equal(t, len(out)+1, n.Position)
		require.NotNil(t, n.Page)
		out = append(out, visit{n.Level, n.Block})
	}
	assert.False(t, w.Next(), "finished walker must stay finished")
	return out, w.Err()
}

func TestSingleLeaf(t *testing.T) {
	t.Parallel()

	src := gisttest.SingleLeaf().Memory(t)
	w := walk.New(src, base.GistRootBlock)

	require.True(t, w.Next())
	n := w.Node()
	assert.Equal(t, 1, n.Position)
	assert.Equal(t, 0, n.Level)
	assert.Equal(t, base.GistRootBlock, n.Block)
	assert.Equal(t, 6, n.Page.NumItems())
	assert.Equal(t, 7260, n.Page.FreeSpace())
	assert.False(t, n.RightLinked)

	assert.False(t, w.Next())
	assert.NoError(t, w.Err())
	assert.Equal(t, uint64(1), w.Visited())
}

func TestTwoLeaves(t *testing.T) {
	t.Parallel()

	want := []visit{{0, 0}, {1, 1}, {1, 2}}
	for _, mode := range []walk.Mode{walk.ModeTree, walk.ModeDownlinks, walk.ModeLevelChains} {
		t.Run(mode.String(), func(t *testing.T) {
			got, err := collect(t, gisttest.TwoLeaves().Memory(t), walk.WithMode(mode))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestThreeLevelsDepthFirst(t *testing.T) {
	t.Parallel()

	want := []visit{
		{0, 0},
		{1, 1}, {2, 3}, {2, 4},
		{1, 2}, {2, 5}, {2, 6},
	}
	for _, mode := range []walk.Mode{walk.ModeTree, walk.ModeDownlinks} {
		t.Run(mode.String(), func(t *testing.T) {
			got, err := collect(t, gisttest.ThreeLevels().Memory(t), walk.WithMode(mode))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestTreeRightLinked(t *testing.T) {
	t.Parallel()

	w := walk.New(gisttest.ThreeLevels().Memory(t), base.GistRootBlock)
	var linked []bool
	for w.Next() {
		linked = append(linked, w.Node().RightLinked)
	}
	require.NoError(t, w.Err())
	// 0, 1, 3, 4, 2, 5, 6
	assert.Equal(t, []bool{false, false, false, true, true, false, true}, linked)
}

func TestPageOnlyReachableByRightLink(t *testing.T) {
	t.Parallel()

	got, err := collect(t, gisttest.SplitLeaf().Memory(t))
	require.NoError(t, err)
	assert.Equal(t, []visit{{0, 0}, {1, 1}, {1, 2}}, got)
}

func TestTreeSkipsDeletedAndEmptySiblings(t *testing.T) {
	t.Parallel()

	// Level 1 is 1 -> 2 -> 3. Block 2 is deleted, so block 1 owns the leaf
	// chain up to block 3's first child.
	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 1, 2, 3)
	r.Internal(1, 4).RightLink(2)
	r.Internal(2, 5).Flags(base.FDeleted).RightLink(3)
	r.Internal(3, 6)
	r.Leaf(4, 32).RightLink(5)
	r.Leaf(5, 32).RightLink(6)
	r.Leaf(6, 32)

	got, err := collect(t, r.Memory(t))
	require.NoError(t, err)
	assert.Equal(t, []visit{
		{0, 0},
		{1, 1}, {2, 4}, {2, 5},
		{1, 2},
		{1, 3}, {2, 6},
	}, got)
}

func TestThreeLevelsChains(t *testing.T) {
	t.Parallel()

	src := gisttest.ThreeLevels().Memory(t)
	w := walk.New(src, base.GistRootBlock, walk.WithMode(walk.ModeLevelChains))

	var got []visit
	var linked []bool
	for w.Next() {
		got = append(got, visit{w.Node().Level, w.Node().Block})
		linked = append(linked, w.Node().RightLinked)
	}
	require.NoError(t, w.Err())
	assert.Equal(t, []visit{
		{0, 0},
		{1, 1}, {1, 2},
		{2, 3}, {2, 4}, {2, 5}, {2, 6},
	}, got)
	assert.Equal(t, []bool{false, false, true, false, true, true, true}, linked)
}

func TestLevelsNeverDecrease(t *testing.T) {
	t.Parallel()

	got, err := collect(t, gisttest.ThreeLevels().Memory(t), walk.WithMode(walk.ModeLevelChains))
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Level, got[i-1].Level)
	}
}

func TestMaxLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode walk.Mode
		max  int
		want []visit
	}{
		{"tree root only", walk.ModeTree, 0, []visit{{0, 0}}},
		{"tree two levels", walk.ModeTree, 1, []visit{{0, 0}, {1, 1}, {1, 2}}},
		{"downlinks root only", walk.ModeDownlinks, 0, []visit{{0, 0}}},
		{"downlinks two levels", walk.ModeDownlinks, 1, []visit{{0, 0}, {1, 1}, {1, 2}}},
		{"chains root only", walk.ModeLevelChains, 0, []visit{{0, 0}}},
		{"chains two levels", walk.ModeLevelChains, 1, []visit{{0, 0}, {1, 1}, {1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, gisttest.ThreeLevels().Memory(t),
				walk.WithMode(tt.mode), walk.WithMaxLevel(tt.max))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeletedPageNotDescended(t *testing.T) {
	t.Parallel()

	r := gisttest.ThreeLevels()
	r.Page(2).Flags(base.FDeleted)

	t.Run("tree", func(t *testing.T) {
		// 5 and 6 are still on the leaf chain.
		got, err := collect(t, r.Memory(t))
		require.NoError(t, err)
		assert.Equal(t, []visit{{0, 0}, {1, 1}, {2, 3}, {2, 4}, {2, 5}, {2, 6}, {1, 2}}, got)
	})

	t.Run("downlinks", func(t *testing.T) {
		got, err := collect(t, r.Memory(t), walk.WithMode(walk.ModeDownlinks))
		require.NoError(t, err)
		assert.Equal(t, []visit{{0, 0}, {1, 1}, {2, 3}, {2, 4}, {1, 2}}, got)
	})
}

func TestDownlinksFollowRight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		build  func(r *gisttest.Relation)
		blocks []base.BlockNumber
	}{
		{
			name: "follow right flag",
			build: func(r *gisttest.Relation) {
				r.Leaf(1, 32).Flags(base.FFollowRight).RightLink(2)
			},
			blocks: []base.BlockNumber{0, 1, 2},
		},
		{
			name: "nsn newer than parent",
			build: func(r *gisttest.Relation) {
				r.Leaf(1, 32).NSN(20).RightLink(2)
			},
			blocks: []base.BlockNumber{0, 1, 2},
		},
		{
			name: "nsn older than parent",
			build: func(r *gisttest.Relation) {
				r.Leaf(1, 32).NSN(5).RightLink(2)
			},
			blocks: []base.BlockNumber{0, 1},
		},
		{
			name: "settled sibling",
			build: func(r *gisttest.Relation) {
				r.Leaf(1, 32).RightLink(2)
			},
			blocks: []base.BlockNumber{0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gisttest.New(base.DefaultPageSize)
			r.Internal(0, 1).LSN(10)
			tt.build(r)
			r.Leaf(2, 32)

			w := walk.New(r.Memory(t), base.GistRootBlock, walk.WithMode(walk.ModeDownlinks))
			var blocks []base.BlockNumber
			for w.Next() {
				n := w.Node()
				blocks = append(blocks, n.Block)
				if n.Block == 2 {
					assert.True(t, n.RightLinked)
					assert.Equal(t, 1, n.Level)
				}
			}
			require.NoError(t, w.Err())
			assert.Equal(t, tt.blocks, blocks)
		})
	}
}

func TestSplitSiblingVisitedBeforeNextDownlink(t *testing.T) {
	t.Parallel()

	// Block 1 split into 1 and 3 after root was written; root also
	// references block 2, which follows 3 on the chain.
	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 1, 2).LSN(10)
	r.Internal(1, 4).Flags(base.FFollowRight).RightLink(3).LSN(30)
	r.Internal(2, 6).LSN(10)
	r.Internal(3, 5).RightLink(2).LSN(30)
	r.Leaf(4, 32).RightLink(5)
	r.Leaf(5, 32).RightLink(6)
	r.Leaf(6, 32)

	want := []visit{
		{0, 0},
		{1, 1}, {2, 4},
		{1, 3}, {2, 5},
		{1, 2}, {2, 6},
	}
	for _, mode := range []walk.Mode{walk.ModeTree, walk.ModeDownlinks} {
		t.Run(mode.String(), func(t *testing.T) {
			got, err := collect(t, r.Memory(t), walk.WithMode(mode))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestRightLinkCycle(t *testing.T) {
	t.Parallel()

	t.Run("default", func(t *testing.T) {
		got, err := collect(t, gisttest.Cycle().Memory(t))
		assert.ErrorIs(t, err, base.ErrRunaway)
		assert.Equal(t, []visit{{0, 0}, {1, 1}, {1, 2}}, got)
	})

	t.Run("level chains", func(t *testing.T) {
		got, err := collect(t, gisttest.Cycle().Memory(t), walk.WithMode(walk.ModeLevelChains))
		assert.ErrorIs(t, err, base.ErrRunaway)
		assert.Len(t, got, 3)
	})

	t.Run("downlinks follow right", func(t *testing.T) {
		got, err := collect(t, gisttest.FollowRightCycle().Memory(t), walk.WithMode(walk.ModeDownlinks))
		assert.ErrorIs(t, err, base.ErrRunaway)
		assert.Len(t, got, 3)
	})
}

func TestInternalRightLinkCycle(t *testing.T) {
	t.Parallel()

	// Level 1 is 1 -> 2 -> 3 -> 2 and neither 2 nor 3 has children, so the
	// loop is met while looking for where block 1's share of level 2 ends.
	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 1)
	r.Internal(1, 4).RightLink(2)
	r.Internal(2).RightLink(3)
	r.Internal(3).RightLink(2)
	r.Leaf(4, 32)

	got, err := collect(t, r.Memory(t))
	assert.ErrorIs(t, err, base.ErrRunaway)
	assert.Equal(t, []visit{{0, 0}}, got)
}

func TestDownlinkCycle(t *testing.T) {
	t.Parallel()

	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 1)
	r.Internal(1, 0)

	for _, mode := range []walk.Mode{walk.ModeTree, walk.ModeDownlinks} {
		_, err := collect(t, r.Memory(t), walk.WithMode(mode))
		assert.ErrorIs(t, err, base.ErrRunaway, mode.String())
	}
}

func TestBudgetGrowsWithRelation(t *testing.T) {
	t.Parallel()

	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 1).LSN(10)
	r.Leaf(1, 32).Flags(base.FFollowRight).RightLink(2)
	src := r.Memory(t)

	w := walk.New(src, base.GistRootBlock)
	require.True(t, w.Next())
	require.True(t, w.Next())

	// The split's right half lands while the walk is running.
	src.Append(base.NewPageBuilder(base.DefaultPageSize).Leaf().Tuple(1000, 32).MustBuild())

	require.True(t, w.Next())
	assert.Equal(t, base.BlockNumber(2), w.Node().Block)
	assert.False(t, w.Next())
	assert.NoError(t, w.Err())
}

func TestStorageFailure(t *testing.T) {
	t.Parallel()

	r := gisttest.New(base.DefaultPageSize)
	r.Internal(0, 7)
	r.Leaf(1, 32)
	r.Leaf(2, 32)

	got, err := collect(t, r.Memory(t))
	assert.ErrorIs(t, err, base.ErrCorrupt)
	assert.ErrorIs(t, err, storage.ErrBlockOutOfRange)
	assert.Len(t, got, 1)
}

func TestCorruptChild(t *testing.T) {
	t.Parallel()

	src := gisttest.TwoLeaves().Memory(t)
	src.Set(2, make([]byte, base.DefaultPageSize))

	got, err := collect(t, src)
	assert.ErrorIs(t, err, base.ErrCorrupt)
	assert.Equal(t, []visit{{0, 0}, {1, 1}}, got)
}

func TestClosedSource(t *testing.T) {
	t.Parallel()

	src := gisttest.SingleLeaf().Memory(t)
	require.NoError(t, src.Close())

	_, err := collect(t, src)
	assert.ErrorIs(t, err, base.ErrCorrupt)
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	src := gisttest.ThreeLevels().Memory(t)
	first, err := collect(t, src)
	require.NoError(t, err)
	second, err := collect(t, src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
