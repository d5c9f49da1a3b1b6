// Package dispatch implements the node's wire-facing pipeline: UDP
// ingress (one datagram per read), worker fan-out, admission control,
// Sphinx unwrapping, next-hop egress or terminal delivery, and
// cover-traffic emission (spec §4, §5, C5 in §2).
package dispatch

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sphinxmix/mixnode/metrics"
	"github.com/sphinxmix/mixnode/ratelimit"
	"github.com/sphinxmix/mixnode/registry"
	"github.com/sphinxmix/mixnode/sphinx"
)

// jobQueueDepth bounds how many received-but-not-yet-processed packets a
// single worker's channel may hold before new packets for that shard are
// dropped under load.
const jobQueueDepth = 1024

type ingressJob struct {
	data []byte
	addr net.Addr
}

// Dispatcher owns the node's UDP socket and worker pool. Its lifecycle
// mirrors the teacher's Start/Stop-with-quit-channel idiom.
type Dispatcher struct {
	cfg  Config
	conn net.PacketConn

	jobs []chan ingressJob

	cover *coverScheduler

	started int32
	stopped int32

	quit chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Dispatcher bound to conn. conn is not opened here;
// callers typically pass the result of net.ListenPacket("udp",
// cfg.ListenAddress).
func New(cfg Config, conn net.PacketConn) *Dispatcher {
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 1
	}

	d := &Dispatcher{
		cfg:  cfg,
		conn: conn,
		jobs: make([]chan ingressJob, cfg.WorkerThreads),
		quit: make(chan struct{}),
	}

	for i := range d.jobs {
		d.jobs[i] = make(chan ingressJob, jobQueueDepth)
	}

	d.cover = newCoverScheduler(d)

	return d
}

// Start launches the ingress loop, one goroutine per worker, and the
// cover-traffic scheduler.
func (d *Dispatcher) Start() error {
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return errAlreadyStarted
	}

	for i := 0; i < d.cfg.WorkerThreads; i++ {
		i := i
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.worker(i)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.ingressLoop()
	}()

	if d.cfg.Cover.MinInterval > 0 && d.cfg.Cover.MaxInterval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.cover.run(d.quit)
		}()
	}

	return nil
}

// Stop closes the socket, signals every goroutine to exit, and waits for
// them to finish.
func (d *Dispatcher) Stop() error {
	if !atomic.CompareAndSwapInt32(&d.stopped, 0, 1) {
		return errAlreadyStopped
	}

	close(d.quit)
	d.conn.Close() //nolint:errcheck

	for _, ch := range d.jobs {
		close(ch)
	}

	d.wg.Wait()

	return nil
}

func (d *Dispatcher) ingressLoop() {
	buf := make([]byte, sphinx.PacketSize+1)

	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-d.quit:
				return
			default:
				log.Debugf("Ingress read error: %v", err)
				return
			}
		}

		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.Received })

		data := make([]byte, n)
		copy(data, buf[:n])

		idx := shardIndex(hostOf(addr), d.cfg.WorkerThreads)

		select {
		case d.jobs[idx] <- ingressJob{data: data, addr: addr}:
		default:
			log.Warnf("Worker %d queue full, dropping packet from %s", idx, addr)
		}
	}
}

func (d *Dispatcher) worker(idx int) {
	for job := range d.jobs[idx] {
		d.handlePacket(job.data, job.addr)
	}
}

func (d *Dispatcher) handlePacket(data []byte, addr net.Addr) {
	srcIP := hostOf(addr)

	if d.cfg.Limiter != nil {
		decision := d.cfg.Limiter.Admit(srcIP)
		switch decision.Verdict {
		case ratelimit.RateLimited:
			d.inc(func(m *metrics.Registry) prometheus.Counter { return m.RateLimited })
			return
		case ratelimit.Banned:
			d.inc(func(m *metrics.Registry) prometheus.Counter { return m.Banned })
			return
		}
	}

	pkt, err := sphinx.DecodeSphinxPacket(data)
	if err != nil {
		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.DroppedStructural })
		return
	}

	d.process(pkt)
}

// process runs pkt through the Sphinx processor and acts on the
// outcome.
func (d *Dispatcher) process(pkt *sphinx.SphinxPacket) {
	result, err := d.cfg.Processor.Process(pkt)
	if err != nil {
		d.countProcessError(err)
		return
	}

	switch result.Action {
	case sphinx.ActionForward:
		d.forward(result.NextHop, result.NextPacket)
	case sphinx.ActionFinal:
		if d.cfg.Sink != nil {
			d.cfg.Sink.Deliver(result.Payload)
		}
		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.Delivered })
	}
}

func (d *Dispatcher) countProcessError(err error) {
	switch err {
	case sphinx.ErrMacMismatch:
		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.MacFailed })
	case sphinx.ErrReplay:
		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.Replayed })
	default:
		d.inc(func(m *metrics.Registry) prometheus.Counter { return m.DroppedStructural })
	}
}

// forward resolves nextHop's transport address from the registry and
// writes the rebuilt packet to it.
func (d *Dispatcher) forward(nextHop registry.NodeID, pkt *sphinx.SphinxPacket) {
	if d.cfg.Registry == nil {
		return
	}

	info, ok := d.cfg.Registry.Get(nextHop)
	if !ok {
		log.Debugf("Forward target %s not in registry", nextHop)
		return
	}

	addr, err := net.ResolveUDPAddr("udp", info.Address)
	if err != nil {
		log.Warnf("Resolving next hop %s address %q: %v", nextHop, info.Address, err)
		return
	}

	if _, err := d.conn.WriteTo(pkt.Encode(), addr); err != nil {
		log.Warnf("Sending to next hop %s: %v", nextHop, err)
		return
	}

	d.inc(func(m *metrics.Registry) prometheus.Counter { return m.Forwarded })
}

func (d *Dispatcher) inc(field func(*metrics.Registry) prometheus.Counter) {
	if d.cfg.Metrics == nil {
		return
	}
	if c := field(d.cfg.Metrics); c != nil {
		c.Inc()
	}
}

// hostOf extracts the bare IP from a net.Addr for rate-limit and shard
// keying, since srcIP admission decisions must not be sensitive to
// ephemeral source ports.
func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSuffix(addr.String(), ":0")
	}
	return host
}
