package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/gevel/internal/base"
	"github.com/alexhholmes/gevel/internal/gisttest"
	"github.com/alexhholmes/gevel/internal/stats"
	"github.com/alexhholmes/gevel/internal/walk"
)

func collect(t *testing.T, src base.PageSource, opts ...walk.Option) (stats.Stats, error) {
	t.Helper()
	return stats.Aggregate(walk.New(src, base.GistRootBlock, opts...))
}

func checkInvariants(t *testing.T, s stats.Stats) {
	t.Helper()
	assert.LessOrEqual(t, s.LeafTuples, s.Tuples)
	assert.LessOrEqual(t, s.InvalidTuples, s.Tuples)
	assert.LessOrEqual(t, s.LeafPages, s.Pages)
	assert.LessOrEqual(t, s.LeafTupleBytes, s.TupleBytes)
	assert.Len(t, s.PagesPerLevel, s.Levels)

	var sum uint64
	for _, n := range s.PagesPerLevel {
		assert.NotZero(t, n, "every level below the root holds a page")
		sum += n
	}
	assert.Equal(t, s.Pages, sum)
}

func TestSingleLeaf(t *testing.T) {
	t.Parallel()

	s, err := collect(t, gisttest.SingleLeaf().Memory(t))
	require.NoError(t, err)
	checkInvariants(t, s)

	assert.Equal(t, 1, s.Levels)
	assert.Equal(t, uint64(1), s.Pages)
	assert.Equal(t, uint64(1), s.LeafPages)
	assert.Equal(t, uint64(6), s.Tuples)
	assert.Equal(t, uint64(6), s.LeafTuples)
	assert.Zero(t, s.InvalidTuples)
	assert.Equal(t, uint64(868), s.TupleBytes)
	assert.Equal(t, uint64(868), s.LeafTupleBytes)
	assert.Equal(t, uint64(8192), s.IndexBytes)
}

func TestThreeLevels(t *testing.T) {
	t.Parallel()

	for _, mode := range []walk.Mode{walk.ModeTree, walk.ModeDownlinks, walk.ModeLevelChains} {
		t.Run(mode.String(), func(t *testing.T) {
			s, err := collect(t, gisttest.ThreeLevels().Memory(t), walk.WithMode(mode))
			require.NoError(t, err)
			checkInvariants(t, s)

			assert.Equal(t, stats.Stats{
				Levels:         3,
				Pages:          7,
				LeafPages:      4,
				Tuples:         14,
				InvalidTuples:  1,
				LeafTuples:     8,
				TupleBytes:     6*24 + 2*32 + 2*32 + 3*48 + 64,
				LeafTupleBytes: 2*32 + 2*32 + 3*48 + 64,
				IndexBytes:     7 * 8192,
				PagesPerLevel:  []uint64{1, 2, 4},
			}, s)
		})
	}
}

func TestMaxLevel(t *testing.T) {
	t.Parallel()

	s, err := collect(t, gisttest.ThreeLevels().Memory(t), walk.WithMaxLevel(1))
	require.NoError(t, err)
	checkInvariants(t, s)

	assert.Equal(t, 2, s.Levels)
	assert.Equal(t, uint64(3), s.Pages)
	assert.Zero(t, s.LeafPages)
	assert.Zero(t, s.LeafTuples)
}

func TestDeadTuplesAreInvalid(t *testing.T) {
	t.Parallel()

	r := gisttest.New(base.DefaultPageSize)
	r.Leaf(0, 32).DeadTuple(1000, 40).InvalidTuple(1000, 16)

	s, err := collect(t, r.Memory(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s.Tuples)
	assert.Equal(t, uint64(2), s.InvalidTuples)
	assert.Equal(t, uint64(88), s.TupleBytes)
}

func TestCountsRightLinkedPages(t *testing.T) {
	t.Parallel()

	s, err := collect(t, gisttest.SplitLeaf().Memory(t))
	require.NoError(t, err)
	checkInvariants(t, s)
	assert.Equal(t, uint64(3), s.Pages)
	assert.Equal(t, uint64(2), s.LeafPages)
	assert.Equal(t, uint64(3), s.LeafTuples)
	assert.Equal(t, []uint64{1, 2}, s.PagesPerLevel)
}

func TestIdempotent(t *testing.T) {
	t.Parallel()

	src := gisttest.ThreeLevels().Memory(t)
	first, err := collect(t, src)
	require.NoError(t, err)
	second, err := collect(t, src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNoPartialStats(t *testing.T) {
	t.Parallel()

	s, err := collect(t, gisttest.FollowRightCycle().Memory(t))
	assert.ErrorIs(t, err, base.ErrRunaway)
	assert.Equal(t, stats.Stats{}, s)
}

func TestAggregatorFinishIsSnapshot(t *testing.T) {
	t.Parallel()

	w := walk.New(gisttest.TwoLeaves().Memory(t), base.GistRootBlock)
	var a stats.Aggregator
	require.True(t, w.Next())
	require.NoError(t, a.Add(w.Node()))
	snap := a.Finish()

	for w.Next() {
		require.NoError(t, a.Add(w.Node()))
	}
	require.NoError(t, w.Err())

	assert.Equal(t, []uint64{1}, snap.PagesPerLevel)
	assert.Equal(t, []uint64{1, 2}, a.Finish().PagesPerLevel)
}

func TestRowsAndString(t *testing.T) {
	t.Parallel()

	s, err := collect(t, gisttest.SingleLeaf().Memory(t))
	require.NoError(t, err)

	rows := s.Rows()
	require.Len(t, rows, 9)
	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
	}
	assert.Equal(t, []string{
		"Number of levels",
		"Number of pages",
		"Number of leaf pages",
		"Number of tuples",
		"Number of invalid tuples",
		"Number of leaf tuples",
		"Total size of tuples (bytes)",
		"Total size of leaf tuples (bytes)",
		"Total size of index (bytes)",
	}, labels)
	assert.Equal(t, stats.Row{Label: "Number of tuples", Value: 6}, rows[3])

	assert.Equal(t, ""+
		"Number of levels:          1\n"+
		"Number of pages:           1\n"+
		"Number of leaf pages:      1\n"+
		"Number of tuples:          6\n"+
		"Number of invalid tuples:  0\n"+
		"Number of leaf tuples:     6\n"+
		"Total size of tuples:      868 bytes\n"+
		"Total size of leaf tuples: 868 bytes\n"+
		"Total size of index:       8192 bytes\n", s.String())
}
