package dispatch

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout dispatch. It is
// disabled by default and wired up by UseLogger during application
// startup.
var log btclog.Logger

func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger installs a logger for the dispatch package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
