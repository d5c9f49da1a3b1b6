package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testNodeID(b byte) NodeID {
	var id NodeID
	id[0] = b
	return id
}

func mustAdd(t *testing.T, r *Registry, info MixNodeInfo) {
	t.Helper()
	require.NoError(t, r.Add(info))
}

// TestRegistryAddDuplicate verifies that Add rejects a second descriptor
// sharing an existing id, while Update happily overwrites it.
func TestRegistryAddDuplicate(t *testing.T) {
	t.Parallel()

	r := New()
	info := MixNodeInfo{
		ID:               testNodeID(1),
		StakeWeight:      10,
		GeographicRegion: Europe,
		LastSeen:         time.Now(),
	}

	mustAdd(t, r, info)
	require.ErrorIs(t, r.Add(info), ErrDuplicateID)

	info.StakeWeight = 20
	r.Update(info)

	got, ok := r.Get(info.ID)
	require.True(t, ok)
	require.Equal(t, uint64(20), got.StakeWeight)
}

// TestRegistryStaleness checks that a node older than StaleAfter drops out
// of Snapshot (and therefore path selection) while Get still finds it.
func TestRegistryStaleness(t *testing.T) {
	t.Parallel()

	r := New()
	r.StaleAfter = time.Hour

	now := time.Now()
	r.now = func() time.Time { return now }

	fresh := MixNodeInfo{
		ID:               testNodeID(1),
		StakeWeight:      5,
		GeographicRegion: Asia,
		LastSeen:         now,
	}
	stale := MixNodeInfo{
		ID:               testNodeID(2),
		StakeWeight:      5,
		GeographicRegion: Asia,
		LastSeen:         now.Add(-2 * time.Hour),
	}

	mustAdd(t, r, fresh)
	mustAdd(t, r, stale)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, fresh.ID, snap[0].ID)

	_, ok := r.Get(stale.ID)
	require.True(t, ok, "stale node should still be retrievable by id")

	require.Equal(t, 2, r.Len())
}

// TestRegistryRemoveAndTombstone verifies both removal paths drop a node
// from the eligible set entirely.
func TestRegistryRemoveAndTombstone(t *testing.T) {
	t.Parallel()

	r := New()
	a := MixNodeInfo{ID: testNodeID(1), StakeWeight: 1, LastSeen: time.Now()}
	b := MixNodeInfo{ID: testNodeID(2), StakeWeight: 1, LastSeen: time.Now()}

	mustAdd(t, r, a)
	mustAdd(t, r, b)
	require.Equal(t, 2, r.Len())

	r.Remove(a.ID)
	require.Equal(t, 1, r.Len())

	r.ApplyTombstone(Tombstone{ID: b.ID})
	require.Equal(t, 0, r.Len())
}

// TestRegionString exercises the String method for one declared region
// and the unknown fallback.
func TestRegionString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "europe", Europe.String())
	require.Equal(t, "unknown", Region(255).String())
}

// TestNodeIDString checks that String produces a non-empty, deterministic
// rendering (zbase32 of the id bytes).
func TestNodeIDString(t *testing.T) {
	t.Parallel()

	id := testNodeID(7)
	require.NotEmpty(t, id.String())
	require.Equal(t, id.String(), id.String())
}
