package sphinx

import (
	"github.com/gtank/ristretto255"
	"github.com/sphinxmix/mixnode/registry"
)

// Processor unwraps one Sphinx layer per call to Process, using this
// node's private Diffie-Hellman scalar and a shared replay cache (spec
// §4.1, C2 in §2).
//
// A Processor owns its replay cache exclusively; it is safe to share one
// Processor across worker goroutines because the replay cache is
// internally sharded (spec §3: "Ownership. The mixer exclusively owns its
// private scalar and the replay cache").
type Processor struct {
	keys   *KeyPair
	replay *ReplayCache
}

// NewProcessor builds a Processor from this node's long-term key pair and
// a replay cache. The Processor never rotates the cache; tags stay in it
// until the holder of the cache calls Rotate.
func NewProcessor(keys *KeyPair, replay *ReplayCache) *Processor {
	return &Processor{keys: keys, replay: replay}
}

// Process unwraps one layer of pkt, implementing spec §4.1's algorithm in
// full, including its constant-time policy: every processing path —
// success, invalid point, MAC mismatch, replay — performs the same
// dominant work (shared-secret derivation, replay check, decryption,
// payload transform) before any error is returned, so that no early exit
// leaks information about packet content over timing.
func (p *Processor) Process(pkt *SphinxPacket) (*ProcessedPacket, error) {
	var resultErr error

	ephemeral := ristretto255.NewElement()
	if err := ephemeral.Decode(pkt.Header.EphemeralKey[:]); err != nil {
		resultErr = ErrInvalidPoint
		ephemeral = dummyElement()
	}

	shared := ristretto255.NewElement().ScalarMult(p.keys.Secret, ephemeral)
	keys := deriveKeys(shared.Encode(nil))

	// Replay insertion happens regardless of the MAC outcome below, so
	// that an attacker cannot use MAC failure to probe the replay cache
	// for free (spec §4.1 step 3-4).
	if inserted := p.replay.InsertIfAbsent(keys.ReplayTag); !inserted {
		if resultErr == nil {
			resultErr = ErrReplay
		}
	}

	macOK := verifyMAC(
		keys.HeaderMACKey[:],
		pkt.Header.RoutingInfo.Ciphertext[:],
		pkt.Header.RoutingInfo.MAC[:],
	)
	if !macOK && resultErr == nil {
		resultErr = ErrMacMismatch
	}

	full := keystream(keys.HeaderStreamKey[:], CiphertextSize+fillerSize)
	plaintext := xorBytes(full[:CiphertextSize], pkt.Header.RoutingInfo.Ciphertext[:])
	filler := full[CiphertextSize:]

	payloadStream := keystream(keys.PayloadStreamKey[:], PayloadSize)
	newPayload := xorBytes(payloadStream, pkt.Payload[:])

	tag := plaintext[0]
	var nextHop registry.NodeID
	copy(nextHop[:], plaintext[1:RecordSize])

	nextMac := plaintext[RecordSize : RecordSize+MacSize]

	// The shifted tail is only ever meant to be decrypted by the next
	// hop under its own key, not by this hop's HeaderStreamKey — the
	// builder leaves ct_i[shiftSize:] == ct_{i+1}[:PartialSize] exactly
	// (see builder.go), so the forwarded prefix comes from the raw
	// received ciphertext, not from this layer's decrypted plaintext.
	partial := pkt.Header.RoutingInfo.Ciphertext[shiftSize:]

	if resultErr != nil {
		return nil, resultErr
	}

	switch tag {
	case TagForward:
		newEphemeral := ristretto255.NewElement().ScalarMult(keys.BlindingScalar, ephemeral)

		var header SphinxHeader
		copy(header.EphemeralKey[:], newEphemeral.Encode(nil))
		copy(header.RoutingInfo.MAC[:], nextMac)
		copy(header.RoutingInfo.Ciphertext[:PartialSize], partial)
		copy(header.RoutingInfo.Ciphertext[PartialSize:], filler)

		next := &SphinxPacket{Header: header}
		copy(next.Payload[:], newPayload)

		return &ProcessedPacket{
			Action:     ActionForward,
			NextHop:    nextHop,
			NextPacket: next,
		}, nil

	case TagFinal:
		return &ProcessedPacket{
			Action:  ActionFinal,
			Payload: newPayload,
		}, nil

	default:
		return nil, ErrMalformedRouting
	}
}

// dummyElement substitutes for a header's ephemeral key when it fails to
// decode, so that an invalid point still drives the same downstream
// scalar multiplications and KDF work a valid one would (spec §9:
// "Timing-equalized failure paths").
func dummyElement() *ristretto255.Element {
	return ristretto255.NewElement().ScalarBaseMult(ristretto255.NewScalar())
}
