// Package ratelimit implements per-source and global admission control
// with a reputation-driven transient ban list (spec §4.2, C3 in §2).
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// Verdict is the closed outcome of an admission decision.
type Verdict uint8

const (
	Allowed Verdict = iota
	RateLimited
	Banned
)

// Decision is the full result of Admit: a Verdict plus context needed by
// callers and metrics (spec §4.2's "admit(src_ip, now) → Allowed |
// RateLimited(reason) | Banned(until)").
type Decision struct {
	Verdict Verdict

	// Reason is set when Verdict == RateLimited: "global" or "per_ip".
	Reason string

	// Until is set when Verdict == Banned.
	Until time.Time
}

// Config holds the limiter's tunables (spec §6).
type Config struct {
	PacketsPerSecondPerIP float64
	GlobalPacketsPerSec   float64
	BurstSize             float64
	SuspiciousThreshold   int
	BanDuration           time.Duration

	// Shards is the number of per-IP state shards, normally equal to
	// worker_threads so each worker owns one shard exclusively.
	Shards int

	// MaxIPsPerShard bounds each shard's LRU of per-IP state.
	MaxIPsPerShard int

	Clock clock.Clock
}

type perIPState struct {
	bucket      tokenBucket
	windowStart time.Time
	windowCount int
	reputation  int
}

type shard struct {
	mu     sync.Mutex
	states *perIPLRU
}

// Limiter admits or rejects packets by source IP, per spec §4.2.
type Limiter struct {
	cfg Config

	globalMu     sync.Mutex
	globalBucket tokenBucket

	shards []*shard

	banMu sync.RWMutex
	bans  map[string]time.Time
}

// New constructs a Limiter from cfg. Shards and MaxIPsPerShard default to
// 1 and 0 (unbounded) respectively if unset.
func New(cfg Config) *Limiter {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	now := cfg.Clock.Now()

	l := &Limiter{
		cfg:          cfg,
		globalBucket: newTokenBucket(cfg.GlobalPacketsPerSec, cfg.GlobalPacketsPerSec, now),
		shards:       make([]*shard, cfg.Shards),
		bans:         make(map[string]time.Time),
	}

	for i := range l.shards {
		l.shards[i] = &shard{states: newPerIPLRU(cfg.MaxIPsPerShard)}
	}

	return l
}

// Admit decides whether a packet from srcIP is admitted, implementing
// spec §4.2's algorithm in order: ban check, global bucket, per-IP bucket,
// suspicious-rate ban trigger.
func (l *Limiter) Admit(srcIP string) Decision {
	now := l.cfg.Clock.Now()

	if until, banned := l.checkBan(srcIP, now); banned {
		return Decision{Verdict: Banned, Until: until}
	}

	l.globalMu.Lock()
	globalOK := l.globalBucket.take(now)
	l.globalMu.Unlock()

	if !globalOK {
		return Decision{Verdict: RateLimited, Reason: "global"}
	}

	sh := l.shardFor(srcIP)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	state := sh.states.getOrCreate(srcIP, func() *perIPState {
		return &perIPState{
			bucket:      newTokenBucket(l.cfg.BurstSize, l.cfg.PacketsPerSecondPerIP, now),
			windowStart: now,
		}
	})

	if now.Sub(state.windowStart) >= time.Second {
		state.windowStart = now
		state.windowCount = 0
	}

	if !state.bucket.take(now) {
		state.reputation++
		return Decision{Verdict: RateLimited, Reason: "per_ip"}
	}

	state.windowCount++
	if state.windowCount > l.cfg.SuspiciousThreshold {
		until := now.Add(l.cfg.BanDuration)
		l.ban(srcIP, until)
		return Decision{Verdict: Banned, Until: until}
	}

	return Decision{Verdict: Allowed}
}

func (l *Limiter) checkBan(srcIP string, now time.Time) (time.Time, bool) {
	l.banMu.RLock()
	until, ok := l.bans[srcIP]
	l.banMu.RUnlock()

	if ok && now.Before(until) {
		return until, true
	}

	return time.Time{}, false
}

func (l *Limiter) ban(srcIP string, until time.Time) {
	l.banMu.Lock()
	l.bans[srcIP] = until
	l.banMu.Unlock()

	log.Warnf("Banning %s until %s after exceeding suspicious threshold",
		srcIP, until.Format(time.RFC3339))
}

// shardFor steers srcIP to exactly one shard by hash, so its state is
// always owned by the same worker (spec §5: "A given source IP is
// steered (by hash) to exactly one worker").
func (l *Limiter) shardFor(srcIP string) *shard {
	h := fnv.New32a()
	h.Write([]byte(srcIP)) //nolint:errcheck
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}
