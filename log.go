// Package mixnode wires the Sphinx mixer, ingress dispatcher, rate
// limiter, and registry subsystems into a single runnable node (spec §1,
// §2). The subpackages do the work; this package only composes them.
package mixnode

import (
	"github.com/btcsuite/btclog"

	"github.com/sphinxmix/mixnode/delivery"
	"github.com/sphinxmix/mixnode/dispatch"
	"github.com/sphinxmix/mixnode/healthcheck"
	"github.com/sphinxmix/mixnode/ratelimit"
	"github.com/sphinxmix/mixnode/registry"
	"github.com/sphinxmix/mixnode/sphinx"
)

// log is the package-level logger for the root node orchestrator.
var log btclog.Logger

func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger installs logger for the mixnode package and fans the same
// backend out to every subsystem a Node composes, mirroring the
// teacher's top-level log.go, which spares callers from wiring each
// subsystem's UseLogger individually.
func UseLogger(logger btclog.Logger) {
	log = logger

	registry.UseLogger(logger)
	sphinx.UseLogger(logger)
	ratelimit.UseLogger(logger)
	dispatch.UseLogger(logger)
	delivery.UseLogger(logger)
	healthcheck.UseLogger(logger)
}
