package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func populatedRegistry(t *testing.T) *Registry {
	t.Helper()

	r := New()
	regions := []Region{
		NorthAmerica, Europe, Asia, Oceania, SouthAmerica, Africa,
	}

	for i := 0; i < 24; i++ {
		id := testNodeID(byte(i + 1))
		require.NoError(t, r.Add(MixNodeInfo{
			ID:               id,
			StakeWeight:      uint64(1 + i%5),
			GeographicRegion: regions[i%len(regions)],
			LastSeen:         time.Now(),
		}))
	}

	return r
}

// TestSelectPathDeterministic checks that the same (streamID, epoch) over
// an unchanged registry snapshot always yields the same path.
func TestSelectPathDeterministic(t *testing.T) {
	t.Parallel()

	r := populatedRegistry(t)
	kp := NewVRFKeyPair([]byte("selector-test-entropy"))
	sel := NewSelector(r, kp)

	path1, err := sel.SelectPath([]byte("stream-1"), 42, 5)
	require.NoError(t, err)

	path2, err := sel.SelectPath([]byte("stream-1"), 42, 5)
	require.NoError(t, err)

	require.Equal(t, path1, path2)
	require.Len(t, path1, 5)
}

// TestSelectPathVariesByStream checks that distinct stream ids produce
// distinct paths (with overwhelming probability over a reasonably sized
// registry).
func TestSelectPathVariesByStream(t *testing.T) {
	t.Parallel()

	r := populatedRegistry(t)
	kp := NewVRFKeyPair([]byte("selector-test-entropy-2"))
	sel := NewSelector(r, kp)

	pathA, err := sel.SelectPath([]byte("stream-a"), 1, 5)
	require.NoError(t, err)

	pathB, err := sel.SelectPath([]byte("stream-b"), 1, 5)
	require.NoError(t, err)

	require.NotEqual(t, pathA, pathB)
}

// TestSelectPathNoDuplicates checks that a path never repeats a node, which
// the duplicate-exclusion retry logic is responsible for.
func TestSelectPathNoDuplicates(t *testing.T) {
	t.Parallel()

	r := populatedRegistry(t)
	kp := NewVRFKeyPair([]byte("selector-test-entropy-3"))
	sel := NewSelector(r, kp)

	path, err := sel.SelectPath([]byte("stream-dup-check"), 7, 6)
	require.NoError(t, err)

	seen := make(map[NodeID]struct{})
	for _, id := range path {
		_, dup := seen[id]
		require.False(t, dup, "path contained a duplicate node")
		seen[id] = struct{}{}
	}
}

// TestSelectPathEmptyRegistry checks that selection over an empty registry
// reports ErrEmptyRegistry rather than panicking.
func TestSelectPathEmptyRegistry(t *testing.T) {
	t.Parallel()

	r := New()
	kp := NewVRFKeyPair([]byte("selector-test-entropy-4"))
	sel := NewSelector(r, kp)

	_, err := sel.SelectPath([]byte("stream"), 1, 3)
	require.ErrorIs(t, err, ErrEmptyRegistry)
}

// TestSelectPathZeroLength checks that requesting a zero-length path
// returns an empty, error-free result.
func TestSelectPathZeroLength(t *testing.T) {
	t.Parallel()

	r := populatedRegistry(t)
	kp := NewVRFKeyPair([]byte("selector-test-entropy-5"))
	sel := NewSelector(r, kp)

	path, err := sel.SelectPath([]byte("stream"), 1, 0)
	require.NoError(t, err)
	require.Empty(t, path)
}
