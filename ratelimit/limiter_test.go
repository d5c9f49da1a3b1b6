package ratelimit

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config, now time.Time) (*Limiter, *clock.TestClock) {
	t.Helper()

	tc := clock.NewTestClock(now)
	cfg.Clock = tc

	return New(cfg), tc
}

// TestBurstScenario exercises spec.md's rate-limit burst scenario: with
// packets_per_second_per_ip=10 and burst_size=5, sending 20 packets from
// one IP nearly instantaneously admits at least 5 and rate-limits the
// remainder, with zero bans.
func TestBurstScenario(t *testing.T) {
	t.Parallel()

	now := time.Now()
	l, _ := newTestLimiter(t, Config{
		PacketsPerSecondPerIP: 10,
		GlobalPacketsPerSec:   1000,
		BurstSize:             5,
		SuspiciousThreshold:   1000,
		BanDuration:           time.Second,
		Shards:                1,
	}, now)

	var allowed, limited, banned int
	for i := 0; i < 20; i++ {
		switch l.Admit("127.0.0.1").Verdict {
		case Allowed:
			allowed++
		case RateLimited:
			limited++
		case Banned:
			banned++
		}
	}

	require.GreaterOrEqual(t, allowed, 5)
	require.Greater(t, limited, 0)
	require.Equal(t, 0, banned)
}

// TestBanTrigger exercises spec.md's ban-trigger scenario: with
// suspicious_threshold=50, sending packets fast enough to cross the
// one-second window's threshold transitions the IP to Banned, and it
// remains Banned until the ban duration elapses.
func TestBanTrigger(t *testing.T) {
	t.Parallel()

	now := time.Now()
	l, tc := newTestLimiter(t, Config{
		PacketsPerSecondPerIP: 1000,
		GlobalPacketsPerSec:   10000,
		BurstSize:             1000,
		SuspiciousThreshold:   50,
		BanDuration:           5 * time.Second,
		Shards:                1,
	}, now)

	var bannedAt int
	for i := 0; i < 200; i++ {
		d := l.Admit("10.0.0.1")
		if d.Verdict == Banned {
			bannedAt = i
			break
		}
	}

	require.NotZero(t, bannedAt)
	require.LessOrEqual(t, bannedAt, 100)

	// Every subsequent call before the ban expires must also be Banned.
	for i := 0; i < 10; i++ {
		require.Equal(t, Banned, l.Admit("10.0.0.1").Verdict)
	}

	// After the ban duration elapses, a fresh packet is admitted.
	tc.SetTime(now.Add(6 * time.Second))
	require.Equal(t, Allowed, l.Admit("10.0.0.1").Verdict)
}

// TestAdmissionMonotonicity checks that once Banned(until=t) is returned,
// every subsequent call at now < t also returns Banned.
func TestAdmissionMonotonicity(t *testing.T) {
	t.Parallel()

	now := time.Now()
	l, tc := newTestLimiter(t, Config{
		PacketsPerSecondPerIP: 1,
		GlobalPacketsPerSec:   1000,
		BurstSize:             2,
		SuspiciousThreshold:   1,
		BanDuration:           10 * time.Second,
		Shards:                1,
	}, now)

	first := l.Admit("203.0.113.1")
	require.Equal(t, Allowed, first.Verdict)

	second := l.Admit("203.0.113.1")
	require.Equal(t, Banned, second.Verdict)

	tc.SetTime(now.Add(5 * time.Second))
	require.Equal(t, Banned, l.Admit("203.0.113.1").Verdict)
}

// TestIndependentIPs checks that distinct source IPs don't share
// rate-limit state.
func TestIndependentIPs(t *testing.T) {
	t.Parallel()

	now := time.Now()
	l, _ := newTestLimiter(t, Config{
		PacketsPerSecondPerIP: 10,
		GlobalPacketsPerSec:   1000,
		BurstSize:             1,
		SuspiciousThreshold:   1000,
		BanDuration:           time.Second,
		Shards:                4,
	}, now)

	require.Equal(t, Allowed, l.Admit("1.1.1.1").Verdict)
	require.Equal(t, Allowed, l.Admit("2.2.2.2").Verdict)
}
