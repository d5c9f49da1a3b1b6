package dispatch

import (
	"crypto/rand"
	"math/big"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sphinxmix/mixnode/metrics"
	"github.com/sphinxmix/mixnode/sphinx"
)

// defaultCoverPathLength is used when CoverConfig.PathLength is unset.
const defaultCoverPathLength = 3

// coverScheduler emits indistinguishable-from-real packets at a jittered
// interval, built through the same BuildPacket machinery a real sender
// would use, so nothing about the emit path marks them as cover (spec
// §9: "Cover as real.").
type coverScheduler struct {
	d *Dispatcher
}

func newCoverScheduler(d *Dispatcher) *coverScheduler {
	return &coverScheduler{d: d}
}

// run self-reschedules on a jittered timer between MinInterval and
// MaxInterval until quit closes, mirroring the teacher pack's decoy
// traffic worker loop.
func (c *coverScheduler) run(quit <-chan struct{}) {
	timer := time.NewTimer(c.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-quit:
			return

		case <-timer.C:
			if err := c.emit(); err != nil {
				log.Debugf("Cover packet emission skipped: %v", err)
			}
			timer.Reset(c.nextInterval())
		}
	}
}

func (c *coverScheduler) nextInterval() time.Duration {
	cfg := c.d.cfg.Cover

	span := cfg.MaxInterval - cfg.MinInterval
	if span <= 0 {
		return cfg.MinInterval
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return cfg.MinInterval
	}

	return cfg.MinInterval + time.Duration(n.Int64())
}

// emit selects a fresh random path through the registry and sends a
// freshly built packet with random payload to the first hop.
func (c *coverScheduler) emit() error {
	cfg := c.d.cfg

	length := cfg.Cover.PathLength
	if length <= 0 {
		length = defaultCoverPathLength
	}

	streamID := make([]byte, 16)
	if _, err := rand.Read(streamID); err != nil {
		return err
	}

	path, err := cfg.Selector.SelectPath(streamID, coverEpoch(), length)
	if err != nil {
		return err
	}

	hops := make([]sphinx.Hop, 0, len(path))
	for _, id := range path {
		info, ok := cfg.Registry.Get(id)
		if !ok {
			continue
		}
		hops = append(hops, sphinx.Hop{ID: id, PublicKey: info.PublicKey})
	}
	if len(hops) == 0 {
		return ErrRegistryMissNode
	}

	payload := make([]byte, sphinx.PayloadSize)
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	pkt, err := sphinx.BuildPacket(hops, payload)
	if err != nil {
		return err
	}

	first, ok := cfg.Registry.Get(hops[0].ID)
	if !ok {
		return ErrRegistryMissNode
	}

	addr, err := net.ResolveUDPAddr("udp", first.Address)
	if err != nil {
		return err
	}

	if _, err := c.d.conn.WriteTo(pkt.Encode(), addr); err != nil {
		return ErrSendFailure
	}

	c.d.inc(func(m *metrics.Registry) prometheus.Counter { return m.CoverEmitted })

	return nil
}

// coverEpoch derives a coarse epoch value for path selection from wall
// time: the number of whole hours since the Unix epoch.
func coverEpoch() uint64 {
	return uint64(time.Now().Unix() / int64(time.Hour/time.Second))
}
