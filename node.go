package mixnode

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sphinxmix/mixnode/delivery"
	"github.com/sphinxmix/mixnode/dispatch"
	"github.com/sphinxmix/mixnode/healthcheck"
	"github.com/sphinxmix/mixnode/metrics"
	"github.com/sphinxmix/mixnode/ratelimit"
	"github.com/sphinxmix/mixnode/sphinx"
)

const (
	// replayExpectedPerEpochDefault and replayLRULimitPerShardDefault
	// size the replay cache when Config leaves them unset.
	replayExpectedPerEpochDefault = 1 << 16
	replayLRULimitPerShardDefault = 4096

	defaultHealthCheckInterval = 30 * time.Second
	healthCheckTimeout         = 5 * time.Second
	healthCheckBackoff         = time.Second
	healthCheckAttempts        = 3
)

// Node composes every subsystem (spec §1, §2) into a single runnable
// unit: Start opens the wire, Stop tears everything down in reverse.
type Node struct {
	cfg Config

	conn net.PacketConn

	dispatcherCfg dispatch.Config

	keys *sphinx.KeyPair

	dispatcher      *dispatch.Dispatcher
	limiter         *ratelimit.Limiter
	replay          *sphinx.ReplayCache
	probeReplay     *sphinx.ReplayCache
	metrics         *metrics.Registry
	metricsGatherer prometheus.Gatherer
	monitor         *healthcheck.Monitor

	running int32
}

// New assembles a Node from cfg. It does not open any sockets; call
// Start to do that.
func New(cfg Config, sink delivery.Sink) (*Node, error) {
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 1
	}
	if cfg.ReplayExpectedPerEpoch == 0 {
		cfg.ReplayExpectedPerEpoch = replayExpectedPerEpochDefault
	}
	if cfg.ReplayLRULimitPerShard == 0 {
		cfg.ReplayLRULimitPerShard = replayLRULimitPerShardDefault
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}

	if cfg.KeyLoader == nil {
		return nil, fmt.Errorf("mixnode: config requires a KeyLoader")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("mixnode: config requires a Registry")
	}

	scalar, err := cfg.KeyLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("mixnode: loading key material: %w", err)
	}

	keys, err := sphinx.NewKeyPair(scalar)
	if err != nil {
		return nil, fmt.Errorf("mixnode: deriving key pair: %w", err)
	}

	replay := sphinx.NewReplayCache(cfg.ReplayExpectedPerEpoch, cfg.ReplayLRULimitPerShard)

	// probeReplay is a small, dedicated cache the health check exercises
	// against, kept entirely separate from the live replay cache so the
	// probe tag it inserts never lingers there (it's rotated clean after
	// every check) and never risks colliding with real traffic's tags.
	probeReplay := sphinx.NewReplayCache(1, 1)

	var metricsGatherer prometheus.Gatherer
	var metricsReg *metrics.Registry
	if cfg.MetricsAddress != "" {
		reg := prometheus.NewRegistry()
		metricsReg = metrics.New(reg)
		metricsGatherer = reg
	}

	limiter := ratelimit.New(ratelimit.Config{
		PacketsPerSecondPerIP: cfg.RateLimit.PacketsPerSecondPerIP,
		GlobalPacketsPerSec:   cfg.RateLimit.GlobalPacketsPerSec,
		BurstSize:             cfg.RateLimit.BurstSize,
		SuspiciousThreshold:   cfg.RateLimit.SuspiciousThreshold,
		BanDuration:           cfg.RateLimit.BanDuration,
		Shards:                cfg.WorkerThreads,
		MaxIPsPerShard:        cfg.RateLimit.MaxIPsPerShard,
		Clock:                 clock.NewDefaultClock(),
	})

	n := &Node{
		cfg:             cfg,
		keys:            keys,
		limiter:         limiter,
		replay:          replay,
		probeReplay:     probeReplay,
		metrics:         metricsReg,
		metricsGatherer: metricsGatherer,
	}

	dispatchCfg := dispatch.Config{
		ListenAddress: cfg.ListenAddress,
		WorkerThreads: cfg.WorkerThreads,
		Registry:      cfg.Registry,
		Selector:      cfg.Selector,
		Processor:     sphinx.NewProcessor(keys, replay),
		Limiter:       limiter,
		Sink:          sink,
		Metrics:       metricsReg,
		Cover:         cfg.Cover,
		SelfID:        cfg.SelfID,
	}

	n.monitor = healthcheck.NewMonitor(&healthcheck.Config{
		Checks:   n.observations(),
		Shutdown: n.shutdownRequested,
	})

	n.dispatcherCfg = dispatchCfg

	return n, nil
}

// Start binds the listen socket and launches the dispatcher, the cover
// scheduler (if configured), and the health monitor.
func (n *Node) Start() error {
	if !atomic.CompareAndSwapInt32(&n.running, 0, 1) {
		return fmt.Errorf("mixnode: node already started")
	}

	conn, err := net.ListenPacket("udp", n.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("mixnode: binding %s: %w", n.cfg.ListenAddress, err)
	}
	n.conn = conn

	n.dispatcherCfg.ListenAddress = conn.LocalAddr().String()
	n.dispatcher = dispatch.New(n.dispatcherCfg, conn)

	if err := n.dispatcher.Start(); err != nil {
		conn.Close() //nolint:errcheck
		return err
	}

	if err := n.monitor.Start(); err != nil {
		n.dispatcher.Stop() //nolint:errcheck
		return err
	}

	if n.cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.ListenAndServe(n.cfg.MetricsAddress, n.metricsGatherer); err != nil {
				log.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	log.Infof("Node listening on %s", conn.LocalAddr())

	return nil
}

// Stop tears down the monitor and dispatcher. The metrics server, if
// any, is left running for the remainder of process lifetime (matching
// the teacher's own treatment of its Prometheus exporter as a
// fire-and-forget background server, not a lifecycle-managed component).
func (n *Node) Stop() error {
	if !atomic.CompareAndSwapInt32(&n.running, 1, 0) {
		return fmt.Errorf("mixnode: node not running")
	}

	if err := n.monitor.Stop(); err != nil {
		log.Warnf("Stopping health monitor: %v", err)
	}

	return n.dispatcher.Stop()
}

// shutdownRequested is the healthcheck.Monitor's shutdown callback. It
// logs and stops the node; the teacher's own healthcheck-driven
// processes treat a failed liveliness check as fatal rather than
// retryable forever.
func (n *Node) shutdownRequested(format string, params ...interface{}) {
	log.Errorf("Shutdown requested: "+format, params...)

	go func() {
		if err := n.Stop(); err != nil {
			log.Errorf("Error during requested shutdown: %v", err)
		}
	}()
}

// observations builds the liveness checks the health monitor runs
// (SPEC_FULL.md C7): registry populated (at least one retained
// descriptor, stale ones included) and replay-cache responsiveness.
func (n *Node) observations() []*healthcheck.Observation {
	checks := []*healthcheck.Observation{
		healthcheck.NewObservation(
			"registry-populated",
			n.checkRegistryPopulated,
			n.cfg.HealthCheckInterval,
			healthCheckTimeout,
			healthCheckBackoff,
			healthCheckAttempts,
		),
		healthcheck.NewObservation(
			"replay-cache-responsive",
			n.checkReplayCacheResponsive,
			n.cfg.HealthCheckInterval,
			healthCheckTimeout,
			healthCheckBackoff,
			healthCheckAttempts,
		),
	}

	return checks
}

func (n *Node) checkRegistryPopulated() error {
	if n.cfg.Registry.Len() == 0 {
		return fmt.Errorf("registry has no retained descriptors")
	}
	return nil
}

// checkReplayCacheResponsive confirms a replay cache still accepts and
// rejects a synthetic tag as expected, catching a wedged shard lock
// before it silently stops admitting any traffic. It probes a dedicated
// cache (exercising the same sharded bloom+LRU code path the live cache
// uses) rather than the live one, and rotates it clean after every run
// so the check is repeatable on every health-check cycle instead of
// only the first.
func (n *Node) checkReplayCacheResponsive() error {
	defer n.probeReplay.Rotate()

	var probe [sphinx.ReplayTagSize]byte
	probe[0] = 0xFF

	if !n.probeReplay.InsertIfAbsent(probe) {
		return fmt.Errorf("replay cache probe tag already present")
	}
	if n.probeReplay.InsertIfAbsent(probe) {
		return fmt.Errorf("replay cache did not reject its own probe tag")
	}

	return nil
}
