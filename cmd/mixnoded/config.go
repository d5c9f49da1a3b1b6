package main

import (
	"time"

	flags "github.com/jessevdk/go-flags"
)

// cliConfig is the flag surface for the daemon binary. It is deliberately
// thin: it only carries what's needed to assemble a mixnode.Config, the
// way the teacher's own daemon entry points keep flag parsing separate
// from subsystem construction.
type cliConfig struct {
	ListenAddress string `long:"listen" description:"UDP address to bind" default:"0.0.0.0:9735"`

	KeyPath string `long:"keyfile" description:"path to the hex-encoded 32-byte clamped scalar"`

	WorkerThreads int `long:"workers" description:"ingress worker thread count" default:"4"`

	MetricsAddress string `long:"metrics" description:"address for the Prometheus /metrics handler (empty disables it)"`

	PacketsPerSecondPerIP float64       `long:"ratelimit.per-ip" default:"50"`
	GlobalPacketsPerSec   float64       `long:"ratelimit.global" default:"5000"`
	BurstSize             float64       `long:"ratelimit.burst" default:"20"`
	SuspiciousThreshold   int           `long:"ratelimit.suspicious-threshold" default:"500"`
	BanDuration           time.Duration `long:"ratelimit.ban-duration" default:"10m"`

	CoverMinInterval time.Duration `long:"cover.min-interval" default:"0s"`
	CoverMaxInterval time.Duration `long:"cover.max-interval" default:"0s"`
	CoverPathLength  int           `long:"cover.path-length" default:"3"`

	LogLevel string `long:"loglevel" default:"info"`
	LogDir   string `long:"logdir" default:"."`
}

// loadCLIConfig parses os.Args into a cliConfig, returning the parsed
// struct or the go-flags error (which already carries exit-worthy usage
// text for --help).
func loadCLIConfig() (*cliConfig, error) {
	cfg := &cliConfig{}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	return cfg, nil
}
