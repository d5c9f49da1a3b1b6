package registry

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout registry. It is disabled
// by default and wired up by UseLogger during application startup.
var log btclog.Logger

func init() {
	UseLogger(btclog.Disabled)
}

// UseLogger installs a logger for the registry package. The root node
// should call this once, before the registry is put into service.
func UseLogger(logger btclog.Logger) {
	log = logger
}
