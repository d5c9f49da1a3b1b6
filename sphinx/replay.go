package sphinx

import (
	"sync"

	"github.com/btcsuite/btcd/bloom"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"
)

// numShards partitions the replay cache by the first byte of a tag, so
// that workers sharded by the same byte never contend on the same lock
// (spec §4.1: "a sharded-by-tag-prefix design is recommended").
const numShards = 256

// replayTagKey adapts a fixed-size ReplayTag to dcrd/lru's Cacheable
// interface.
type replayTagKey [ReplayTagSize]byte

// Key implements lru.Cacheable.
func (k replayTagKey) Key() interface{} { return k }

type replayShard struct {
	mu     sync.Mutex
	filter *bloom.Filter
	recent *lru.Cache
}

func newReplayShard(expected uint32, lruLimit uint) *replayShard {
	return &replayShard{
		filter: bloom.NewFilter(expected, 0, falsePositiveRate, wire.BloomUpdateNone),
		recent: lru.NewCache(lruLimit),
	}
}

// falsePositiveRate is the bloom filter's target false-positive rate,
// 2⁻²⁰ per spec §4.1.
const falsePositiveRate = 1.0 / (1 << 20)

// ReplayCache rejects previously-seen header replay tags within an
// epoch. Each shard pairs a (non-counting) bloom filter, which absorbs the
// common "not seen" case, with a bounded LRU set that resolves bloom
// positives (spec §4.1, §4.5).
type ReplayCache struct {
	mu sync.RWMutex

	expectedPerShard uint32
	lruLimitPerShard uint
	shards           [numShards]*replayShard
}

// NewReplayCache constructs a cache sized for expectedPerEpoch total
// insertions, spread evenly across shards, with each shard's LRU bounded
// to lruLimitPerShard entries.
func NewReplayCache(expectedPerEpoch uint32, lruLimitPerShard uint) *ReplayCache {
	perShard := expectedPerEpoch/numShards + 1

	c := &ReplayCache{
		expectedPerShard: perShard,
		lruLimitPerShard: lruLimitPerShard,
	}
	for i := range c.shards {
		c.shards[i] = newReplayShard(perShard, lruLimitPerShard)
	}

	return c
}

// InsertIfAbsent reports whether tag was newly inserted. A false return
// means tag has already been accepted within the current epoch (spec §3:
// "within one epoch, a ReplayTag may be accepted at most once").
func (c *ReplayCache) InsertIfAbsent(tag [ReplayTagSize]byte) bool {
	c.mu.RLock()
	shard := c.shards[tag[0]]
	c.mu.RUnlock()

	key := replayTagKey(tag)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.filter.Matches(tag[:]) && shard.recent.Contains(key) {
		return false
	}

	shard.filter.Add(tag[:])
	shard.recent.Add(key)

	return true
}

// Rotate clears every shard, called at epoch boundaries (spec §4.1: "On
// epoch rotation both are cleared").
func (c *ReplayCache) Rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.shards {
		c.shards[i] = newReplayShard(c.expectedPerShard, c.lruLimitPerShard)
	}

	log.Debugf("Replay cache rotated: %d shards reset", numShards)
}
