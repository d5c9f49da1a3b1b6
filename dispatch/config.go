package dispatch

import (
	"time"

	"github.com/sphinxmix/mixnode/delivery"
	"github.com/sphinxmix/mixnode/metrics"
	"github.com/sphinxmix/mixnode/ratelimit"
	"github.com/sphinxmix/mixnode/registry"
	"github.com/sphinxmix/mixnode/sphinx"
)

// CoverConfig tunes the cover-traffic generator (spec §6: "Cover traffic:
// min_interval_ms, max_interval_ms, cover_packet_ratio, burst_protection").
type CoverConfig struct {
	// MinInterval and MaxInterval bound the jittered delay between
	// cover packet emissions.
	MinInterval time.Duration
	MaxInterval time.Duration

	// PacketRatio is the cover/real traffic ratio in [0,1]. The cover
	// scheduler does not read it: emission cadence comes only from
	// MinInterval and MaxInterval, not from observed traffic.
	PacketRatio float64

	// BurstProtection is a cap on queued cover packets. The cover
	// scheduler does not read it: there is no cover queue, and each
	// cover packet is written to the socket directly by the scheduler
	// goroutine.
	BurstProtection int

	// PathLength is the number of hops a generated cover packet takes,
	// including this node.
	PathLength int
}

// Config wires every collaborator the dispatcher needs plus the
// externally-visible tunables of spec §6.
type Config struct {
	// ListenAddress is the UDP bind address; ":0" means OS-chosen.
	ListenAddress string

	// WorkerThreads is both the ingress fan-out width and the shard
	// count the rate limiter was sized for. The replay cache always has
	// its own fixed 256 shards.
	WorkerThreads int

	Registry  *registry.Registry
	Selector  *registry.Selector
	Processor *sphinx.Processor
	Limiter   *ratelimit.Limiter
	Sink      delivery.Sink
	Metrics   *metrics.Registry

	Cover CoverConfig

	// SelfID is this node's own identifier. The dispatcher stores it
	// but does not read it; cover path selection does not exclude this
	// node.
	SelfID registry.NodeID
}
