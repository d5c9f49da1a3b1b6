package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/sphinxmix/mixnode"
)

const (
	logFilename  = "mixnoded.log"
	maxLogRolls  = 3
	maxLogSizeKB = 10 * 1024
)

var logRotator *rotator.Rotator

// initLogging wires a rotating file backend plus stdout through btclog,
// then fans the resulting logger out to every subsystem via
// mixnode.UseLogger, matching the teacher's daemon-entrypoint logging
// setup (a single rotator feeding one btclog.Backend for the whole
// process).
func initLogging(logDir, levelName string) error {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}

	r, err := rotator.New(
		filepath.Join(logDir, logFilename), maxLogSizeKB, false, maxLogRolls,
	)
	if err != nil {
		return err
	}
	logRotator = r

	backend := btclog.NewBackend(logWriter{})

	level, ok := btclog.LevelFromString(levelName)
	if !ok {
		level = btclog.LevelInfo
	}

	logger := backend.Logger("MXND")
	logger.SetLevel(level)

	mixnode.UseLogger(logger)

	return nil
}

// logWriter fans every write to both stdout and the rotator, the same
// dual-sink behavior btcd/lnd-family daemons give operators: logs show
// up in the foreground and on disk.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p) //nolint:errcheck
	return logRotator.Write(p)
}
