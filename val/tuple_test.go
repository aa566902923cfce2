package val

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleRoundTrip(t *testing.T) {
	tuples := []Tuple{
		{},
		{"hello"},
		{int64(42)},
		{int64(-42)},
		{3.14},
		{-3.14},
		{true, false},
		{[]byte{0x00, 0x01, 0xff}},
		{nil},
		{"a", int64(1), 2.5, false, []byte("x"), nil},
		{Tuple{"nested", int64(7)}, "after"},
	}
	for _, tup := range tuples {
		packed, err := Pack(tup)
		require.NoError(t, err)
		got, err := Unpack(packed)
		require.NoError(t, err)
		assert.Equal(t, normalize(tup), normalize(got))
	}
}

// normalize collapses empty Tuple to nil-equivalent comparisons done by
// reflect.DeepEqual via testify; Unpack of an empty Tuple returns a nil
// Tuple rather than an empty non-nil slice, so both sides are normalized
// the same way before comparison.
func normalize(t Tuple) Tuple {
	if len(t) == 0 {
		return nil
	}
	return t
}

func TestTupleOrderMatchesByteOrder(t *testing.T) {
	cases := []struct {
		lesser, greater Tuple
	}{
		{Tuple{int64(-5)}, Tuple{int64(5)}},
		{Tuple{int64(-1)}, Tuple{int64(0)}},
		{Tuple{-1.5}, Tuple{1.5}},
		{Tuple{0.0}, Tuple{1.0}},
		{Tuple{"abc"}, Tuple{"abd"}},
		{Tuple{"abc"}, Tuple{"abcd"}},
		{Tuple{false}, Tuple{true}},
		{Tuple{"a", int64(1)}, Tuple{"a", int64(2)}},
		{Tuple{"a"}, Tuple{"b"}},
	}
	for _, c := range cases {
		lp, err := Pack(c.lesser)
		require.NoError(t, err)
		gp, err := Pack(c.greater)
		require.NoError(t, err)
		assert.True(t, bytes.Compare(lp, gp) < 0, "%v should sort before %v", c.lesser, c.greater)
	}
}

func TestNegativeZeroOrdering(t *testing.T) {
	negZero, err := Pack(Tuple{math.Copysign(0, -1)})
	require.NoError(t, err)
	posZero, err := Pack(Tuple{0.0})
	require.NoError(t, err)
	assert.True(t, bytes.Compare(negZero, posZero) < 0, "-0.0 must sort strictly before 0.0")
}

func TestSortedPackMatchesSortedTuples(t *testing.T) {
	ints := []int64{5, -3, 0, 100, -100, 1}
	packed := make([][]byte, len(ints))
	for i, n := range ints {
		p, err := Pack(Tuple{n})
		require.NoError(t, err)
		packed[i] = p
	}
	sort.Slice(packed, func(i, j int) bool { return bytes.Compare(packed[i], packed[j]) < 0 })

	sortedInts := append([]int64(nil), ints...)
	sort.Slice(sortedInts, func(i, j int) bool { return sortedInts[i] < sortedInts[j] })

	for i, p := range packed {
		got, err := Unpack(p)
		require.NoError(t, err)
		assert.Equal(t, sortedInts[i], got[0])
	}
}

func TestUnsupportedElementFails(t *testing.T) {
	_, err := Pack(Tuple{complex(1, 2)})
	require.Error(t, err)
}

func TestStringNeverEqualsIntEncoding(t *testing.T) {
	sp, err := Pack(Tuple{"42"})
	require.NoError(t, err)
	ip, err := Pack(Tuple{int64(42)})
	require.NoError(t, err)
	assert.NotEqual(t, sp, ip)
}

func TestRangeCoversPrefixedKeys(t *testing.T) {
	prefix, err := Pack(Tuple{"users", int64(1)})
	require.NoError(t, err)
	child, err := Pack(Tuple{"users", int64(1), "posts"})
	require.NoError(t, err)
	sibling, err := Pack(Tuple{"users", int64(2)})
	require.NoError(t, err)

	begin, end := Range(prefix)
	assert.True(t, bytes.Compare(begin, child) <= 0)
	assert.True(t, end == nil || bytes.Compare(child, end) < 0)
	assert.True(t, end == nil || bytes.Compare(end, sibling) <= 0)
}

func TestRangeAllFFPrefixHasNoUpperBound(t *testing.T) {
	_, end := Range([]byte{0xff, 0xff})
	assert.Nil(t, end)
}
