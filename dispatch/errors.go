package dispatch

import "errors"

var (
	// ErrSendFailure is returned when writing a packet to a next hop's
	// transport address fails.
	ErrSendFailure = errors.New("dispatch: send failure")

	// ErrAdmissionDenied is returned when the rate limiter rejects a
	// packet before it reaches the Sphinx processor.
	ErrAdmissionDenied = errors.New("dispatch: admission denied")

	// ErrRegistryMissNode is returned when a packet's next hop is not
	// present (or is stale) in the registry.
	ErrRegistryMissNode = errors.New("dispatch: next hop not in registry")

	errAlreadyStarted = errors.New("dispatch: already started")
	errAlreadyStopped = errors.New("dispatch: already stopped")
)
