package sphinx

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout sphinx. It is disabled
// by default and wired up by UseLogger during application startup.
var log btclog.Logger

func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger installs a logger for the sphinx package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
