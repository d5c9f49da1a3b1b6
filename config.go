package mixnode

import (
	"time"

	"github.com/sphinxmix/mixnode/dispatch"
	"github.com/sphinxmix/mixnode/keymaterial"
	"github.com/sphinxmix/mixnode/registry"
)

// Config is the node-level configuration surface (spec §6). It is
// populated by a cmd/ binary from flags/a config file; this package only
// consumes the already-parsed values.
type Config struct {
	// ListenAddress is the UDP address the dispatcher binds.
	ListenAddress string

	// WorkerThreads sizes both the dispatcher's fan-out and the rate
	// limiter's shard count.
	WorkerThreads int

	// KeyLoader supplies this node's long-term Diffie-Hellman scalar.
	KeyLoader keymaterial.Loader

	// SelfID is this node's own registry identifier.
	SelfID registry.NodeID

	// Registry is pre-populated by the caller (typically from a
	// bootstrap snapshot plus the registry feed listener).
	Registry *registry.Registry

	// Selector drives cover-traffic path selection.
	Selector *registry.Selector

	RateLimit              ratelimitConfig
	Cover                  dispatch.CoverConfig
	ReplayExpectedPerEpoch uint32
	ReplayLRULimitPerShard uint

	// HealthCheckInterval governs how often the node's own liveness
	// observations run.
	HealthCheckInterval time.Duration

	// MetricsAddress, if non-empty, is the address the Prometheus
	// /metrics HTTP handler listens on.
	MetricsAddress string
}

// ratelimitConfig mirrors ratelimit.Config's tunables so cmd/ binaries
// depend only on this package's Config, not ratelimit's directly.
type ratelimitConfig struct {
	PacketsPerSecondPerIP float64
	GlobalPacketsPerSec   float64
	BurstSize             float64
	SuspiciousThreshold   int
	BanDuration           time.Duration
	MaxIPsPerShard        int
}
