// Package registry holds mix-node descriptors and the indices that make
// verifiable, stake-weighted, region-diverse path selection fast: one
// ordered list per region and a cumulative-weight table, both rebuilt
// under a writer lock whenever the descriptor map changes (spec §3, §4.3).
package registry

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/tv42/zbase32"
)

const (
	// NodeIDSize is the size, in bytes, of an opaque mix node identifier.
	NodeIDSize = 32

	// PublicKeySize is the size of an encoded Ristretto VRF/DH public key.
	PublicKeySize = 32

	// RegionCount is the number of distinct geographic regions a node
	// may declare.
	RegionCount = 6

	// DefaultStaleAfter is how long a descriptor may go un-refreshed
	// before it is hidden from selection while still being retained (so
	// that its id stays stable if it reappears).
	DefaultStaleAfter = 2 * time.Hour
)

// NodeID is an opaque 32-byte identifier for a mix node. Nodes reference
// each other only by this value, never by a live handle (spec §9).
type NodeID [NodeIDSize]byte

// String renders a NodeID using zbase32, the human-friendly encoding the
// teacher reaches for whenever an identifier needs to appear in logs or
// CLI output.
func (id NodeID) String() string {
	return zbase32.EncodeToString(id[:])
}

// Region is one of the six geographic regions spec.md §3 enumerates.
type Region uint8

const (
	NorthAmerica Region = iota
	Europe
	Asia
	Oceania
	SouthAmerica
	Africa
)

// String implements fmt.Stringer for Region.
func (r Region) String() string {
	switch r {
	case NorthAmerica:
		return "north-america"
	case Europe:
		return "europe"
	case Asia:
		return "asia"
	case Oceania:
		return "oceania"
	case SouthAmerica:
		return "south-america"
	case Africa:
		return "africa"
	default:
		return "unknown"
	}
}

// MixNodeInfo is a single registry descriptor.
type MixNodeInfo struct {
	ID               NodeID
	PublicKey        [PublicKeySize]byte
	Address          string
	StakeWeight      uint64
	ReliabilityScore float64
	GeographicRegion Region
	LastSeen         time.Time
}

// Tombstone marks an id as withdrawn. The registry feeder collaborator
// (spec §6) pushes these alongside fresh descriptors.
type Tombstone struct {
	ID NodeID
}

var (
	// ErrDuplicateID is returned by Add when the id is already present.
	ErrDuplicateID = errors.New("registry: duplicate node id")

	// ErrNotFound is returned when an operation references an unknown
	// node id.
	ErrNotFound = errors.New("registry: node not found")

	// ErrEmptyRegistry is returned by path selection when there are no
	// eligible (non-stale) nodes to choose from.
	ErrEmptyRegistry = errors.New("registry: no eligible nodes")
)

// Registry is a mapping from id to MixNodeInfo plus the derived indices
// used by the VRF path selector: one ordered list per region, and a
// cumulative-weight table over the full eligible set.
//
// Invariants (spec §3): no two entries share an id; a node whose LastSeen
// is older than StaleAfter is hidden from selection but retained; the
// cumulative-weight table and region index are rebuilt to stay consistent
// with the id map after every mutation.
type Registry struct {
	mu sync.RWMutex

	nodes map[NodeID]*MixNodeInfo

	// StaleAfter overrides DefaultStaleAfter when non-zero.
	StaleAfter time.Duration

	// now is overridable for deterministic tests.
	now func() time.Time

	snapshot *snapshot
}

// snapshot is the read-optimized, immutable view selectors operate over.
// A fresh one is built on every mutation; readers never block writers and
// vice versa once a snapshot is in hand (spec §4.3, §5).
type snapshot struct {
	// eligible holds every non-stale node, in a stable (insertion-ish,
	// but really just map-iteration-order-at-build-time) order used as
	// the canonical index space for the cumulative-weight table.
	eligible []*MixNodeInfo

	// cumulativeWeight[i] is the sum of StakeWeight over eligible[:i+1].
	// Binary search over this table implements weighted sampling.
	cumulativeWeight []uint64
	totalWeight      uint64

	// byRegion indexes eligible node positions by region, for
	// diversity-aware re-sampling.
	byRegion map[Region][]int
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{
		nodes: make(map[NodeID]*MixNodeInfo),
		now:   time.Now,
	}
	r.rebuild()
	return r
}

// Add inserts a new descriptor. It returns ErrDuplicateID if the id is
// already present; callers that intend an update should use Update.
func (r *Registry) Add(info MixNodeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[info.ID]; ok {
		return ErrDuplicateID
	}

	cp := info
	r.nodes[info.ID] = &cp
	r.rebuild()

	return nil
}

// Update overwrites an existing descriptor, or inserts it if absent. This
// is the method the registry feeder collaborator calls on every gossip
// push (spec §6).
func (r *Registry) Update(info MixNodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := info
	r.nodes[info.ID] = &cp
	r.rebuild()
}

// Remove deletes a descriptor outright. Most churn should instead let
// staleness hide a node (preserving its id), but an explicit tombstone
// from the feeder removes it immediately.
func (r *Registry) Remove(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, id)
	r.rebuild()
}

// ApplyTombstone removes the node named by t, matching Remove. It exists
// as a distinct entry point so feeder wire-handling code reads naturally
// against the Tombstone wire type.
func (r *Registry) ApplyTombstone(t Tombstone) {
	r.Remove(t.ID)
}

// Get returns a copy of the descriptor for id, if present (regardless of
// staleness).
func (r *Registry) Get(id NodeID) (MixNodeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return MixNodeInfo{}, false
	}
	return *n, true
}

// Len returns the total number of retained descriptors, including stale
// ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// staleAfter returns the effective staleness threshold.
func (r *Registry) staleAfter() time.Duration {
	if r.StaleAfter > 0 {
		return r.StaleAfter
	}
	return DefaultStaleAfter
}

// rebuild recomputes the read snapshot from the current node map. Callers
// must hold r.mu for writing.
func (r *Registry) rebuild() {
	cutoff := r.now().Add(-r.staleAfter())

	eligible := make([]*MixNodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.LastSeen.Before(cutoff) {
			continue
		}
		eligible = append(eligible, n)
	}

	cumulative := make([]uint64, len(eligible))
	byRegion := make(map[Region][]int, RegionCount)

	var total uint64
	for i, n := range eligible {
		total += n.StakeWeight
		cumulative[i] = total
		byRegion[n.GeographicRegion] = append(
			byRegion[n.GeographicRegion], i,
		)
	}

	r.snapshot = &snapshot{
		eligible:         eligible,
		cumulativeWeight: cumulative,
		totalWeight:      total,
		byRegion:         byRegion,
	}

	log.Debugf("Registry rebuilt: %d eligible of %d total nodes, "+
		"total weight %d", len(eligible), len(r.nodes), total)
}

// Snapshot returns the current read-only view of eligible nodes, for
// operator tooling (e.g. `mixnodectl registry list`).
func (r *Registry) Snapshot() []MixNodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MixNodeInfo, len(r.snapshot.eligible))
	for i, n := range r.snapshot.eligible {
		out[i] = *n
	}
	return out
}

// currentSnapshot takes a consistent read-only snapshot reference under
// the read lock without copying the underlying descriptors, for use by
// the selector's hot path.
func (r *Registry) currentSnapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// encodeEpoch renders an epoch as big-endian bytes, the form spec.md §4.3
// feeds into the VRF hash.
func encodeEpoch(epoch uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], epoch)
	return b[:]
}
