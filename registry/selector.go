package registry

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// MaxRegionRetries is the number of re-sample attempts the selector makes
// when a candidate would repeat the previous hop's region or duplicate an
// already-selected node (spec §4.3, R = 3).
const MaxRegionRetries = 3

// Selector produces deterministic, verifiable, stake-weighted,
// region-diverse paths over a Registry snapshot (spec §4.3).
type Selector struct {
	registry *Registry
	vrf      *VRFKeyPair
}

// NewSelector binds a Selector to a registry and this node's VRF key pair.
func NewSelector(reg *Registry, vrf *VRFKeyPair) *Selector {
	return &Selector{registry: reg, vrf: vrf}
}

// SelectPath implements spec.md §4.3's algorithm in full: a VRF-derived
// seed is expanded into one sub-seed per hop position, each sub-seed
// samples a node by weighted reservoir over the cumulative-weight table,
// and region/duplicate collisions are resolved by bounded re-sampling.
//
// SelectPath is deterministic in (streamID, epoch) and the registry
// snapshot taken at call time (spec's "determinism of selection" testable
// property).
func (s *Selector) SelectPath(streamID []byte, epoch uint64, length int) (
	[]NodeID, error) {

	if length <= 0 {
		return nil, nil
	}

	snap := s.registry.currentSnapshot()
	if len(snap.eligible) == 0 {
		return nil, ErrEmptyRegistry
	}

	input := append(append([]byte{}, streamID...), encodeEpoch(epoch)...)
	seed, _ := s.vrf.Hash(input)

	path := make([]NodeID, 0, length)
	used := make(map[NodeID]struct{}, length)

	var prevRegion Region
	havePrev := false

	for i := 0; i < length; i++ {
		subSeed := subSeedFor(seed, uint32(i))

		idx, err := s.sampleWithRetries(snap, subSeed, prevRegion, havePrev, used)
		if err != nil {
			return nil, err
		}

		node := snap.eligible[idx]
		path = append(path, node.ID)
		used[node.ID] = struct{}{}
		prevRegion = node.GeographicRegion
		havePrev = true
	}

	return path, nil
}

// sampleWithRetries samples one hop, retrying up to MaxRegionRetries times
// if the pick repeats the previous hop's region (when an alternative
// region is actually populated) or duplicates an already-used node. If all
// retries are exhausted, the original pick is accepted (spec §4.3 step 2).
func (s *Selector) sampleWithRetries(snap *snapshot, subSeed [32]byte,
	prevRegion Region, havePrev bool, used map[NodeID]struct{}) (int, error) {

	idx, err := weightedSample(snap, subSeed)
	if err != nil {
		return 0, err
	}
	original := idx

	for attempt := 0; ; attempt++ {
		node := snap.eligible[idx]
		_, dup := used[node.ID]

		sameRegion := havePrev && node.GeographicRegion == prevRegion &&
			regionAlternativeExists(snap, prevRegion)

		if !dup && !sameRegion {
			return idx, nil
		}

		if attempt == MaxRegionRetries {
			break
		}

		subSeed = retrySeed(subSeed)
		idx, err = weightedSample(snap, subSeed)
		if err != nil {
			return 0, err
		}
	}

	log.Debugf("Path selection exhausted %d retries at hop index, "+
		"accepting original sample", MaxRegionRetries)

	return original, nil
}

// regionAlternativeExists reports whether any eligible node outside
// region r exists, i.e. whether avoiding a same-region repeat is even
// feasible (spec §4.3: "if the sampled node's region equals the previous
// hop's region and an alternative exists").
func regionAlternativeExists(snap *snapshot, r Region) bool {
	for region, idxs := range snap.byRegion {
		if region != r && len(idxs) > 0 {
			return true
		}
	}
	return false
}

// weightedSample treats subSeed as an unsigned 256-bit integer and samples
// a node via binary search over the cumulative-weight table by
// subSeed mod totalWeight (spec §4.3 step 2).
func weightedSample(snap *snapshot, subSeed [32]byte) (int, error) {
	if snap.totalWeight == 0 {
		return 0, ErrEmptyRegistry
	}

	n := new(big.Int).SetBytes(subSeed[:])
	mod := new(big.Int).SetUint64(snap.totalWeight)
	target := new(big.Int).Mod(n, mod).Uint64()

	// target is in [0, totalWeight); find the first cumulative entry
	// strictly greater than target.
	lo, hi := 0, len(snap.cumulativeWeight)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if snap.cumulativeWeight[mid] > target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	return lo, nil
}

// subSeedFor derives the hop-position sub-seed: H(seed || i_be).
func subSeedFor(seed [32]byte, i uint32) [32]byte {
	var iBE [4]byte
	binary.BigEndian.PutUint32(iBE[:], i)

	h := sha256.New()
	h.Write(seed[:])  //nolint:errcheck
	h.Write(iBE[:])   //nolint:errcheck

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// retrySeed derives H(subSeed || "retry"), spec.md §4.3's re-sample rule.
func retrySeed(subSeed [32]byte) [32]byte {
	h := sha256.New()
	h.Write(subSeed[:])      //nolint:errcheck
	h.Write([]byte("retry")) //nolint:errcheck

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
