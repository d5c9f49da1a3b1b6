// Command mixnoded runs a single Sphinx mix node. It is deliberately
// thin: argument parsing, key loading, and a demo bootstrap registry
// live here; every real subsystem lives in the mixnode package and its
// children.
package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/daemon"

	"github.com/sphinxmix/mixnode"
	"github.com/sphinxmix/mixnode/delivery"
	"github.com/sphinxmix/mixnode/dispatch"
	"github.com/sphinxmix/mixnode/keymaterial"
	"github.com/sphinxmix/mixnode/registry"
	"github.com/sphinxmix/mixnode/sphinx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cli, err := loadCLIConfig()
	if err != nil {
		return err
	}

	if err := initLogging(cli.LogDir, cli.LogLevel); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logRotator.Close() //nolint:errcheck

	var keyLoader keymaterial.Loader
	if cli.KeyPath != "" {
		keyLoader = keymaterial.NewFileLoader(cli.KeyPath)
	} else {
		return fmt.Errorf("mixnoded: --keyfile is required")
	}

	scalar, err := keyLoader.Load()
	if err != nil {
		return fmt.Errorf("loading key material: %w", err)
	}
	keys, err := sphinx.NewKeyPair(scalar)
	if err != nil {
		return fmt.Errorf("deriving key pair: %w", err)
	}

	selfID := deriveSelfID(keys.PublicKey())

	reg := registry.New()
	reg.Update(registry.MixNodeInfo{
		ID:        selfID,
		PublicKey: keys.PublicKey(),
		Address:   cli.ListenAddress,
		LastSeen:  time.Now(),
	})

	cfg := mixnode.Config{
		ListenAddress: cli.ListenAddress,
		WorkerThreads: cli.WorkerThreads,
		KeyLoader:     keyLoader,
		SelfID:        selfID,
		Registry:      reg,
		Cover: dispatch.CoverConfig{
			MinInterval: cli.CoverMinInterval,
			MaxInterval: cli.CoverMaxInterval,
			PathLength:  cli.CoverPathLength,
		},
		MetricsAddress: cli.MetricsAddress,
	}
	cfg.RateLimit.PacketsPerSecondPerIP = cli.PacketsPerSecondPerIP
	cfg.RateLimit.GlobalPacketsPerSec = cli.GlobalPacketsPerSec
	cfg.RateLimit.BurstSize = cli.BurstSize
	cfg.RateLimit.SuspiciousThreshold = cli.SuspiciousThreshold
	cfg.RateLimit.BanDuration = cli.BanDuration

	sink := delivery.NewWriterSink(os.Stdout)

	node, err := mixnode.New(cfg, sink)
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	if err := node.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer node.Stop() //nolint:errcheck

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		fmt.Fprintf(os.Stderr, "systemd notify failed: %v\n", err)
	} else if sent {
		fmt.Fprintln(os.Stderr, "systemd notified: ready")
	}

	select {}
}

// deriveSelfID derives this node's registry identifier from its public
// key by hashing it, so operators never have to mint or persist an id
// separately from their key material.
func deriveSelfID(pub [sphinx.EphemeralKeySize]byte) registry.NodeID {
	return registry.NodeID(sha256.Sum256(pub[:]))
}
