package sphinx

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/gtank/ristretto255"
	"github.com/sphinxmix/mixnode/registry"
)

// maxHops is the largest path length the fixed-size header can carry:
// each hop consumes shiftSize bytes of the routing ciphertext, so no more
// than CiphertextSize/shiftSize layers of routing record fit.
const maxHops = CiphertextSize / shiftSize

// Hop describes one node on a path being built: the node's identifier
// (embedded in the routing record the preceding hop sees) and its
// published Diffie-Hellman public key.
type Hop struct {
	ID        registry.NodeID
	PublicKey [EphemeralKeySize]byte
}

var (
	// ErrEmptyPath is returned by BuildPacket when given no hops.
	ErrEmptyPath = errors.New("sphinx: path must have at least one hop")

	// ErrPathTooLong is returned when a path exceeds maxHops.
	ErrPathTooLong = errors.New("sphinx: path exceeds maximum header capacity")

	// ErrBadPublicKey is returned when a hop's public key does not
	// decode to a valid Ristretto group element.
	ErrBadPublicKey = errors.New("sphinx: invalid hop public key")
)

// BuildPacket layer-encrypts payload for delivery through hops in order,
// producing the packet that hops[0] receives on the wire. It implements
// the same filler-growing construction as the mixer's own per-hop
// unwrapping (process.go), run in reverse by a party who knows only the
// public half of each hop's key (spec §9: "Cover as real. Cover packets
// are constructed via the same mixer-building machinery as client
// packets.").
func BuildPacket(hops []Hop, payload []byte) (*SphinxPacket, error) {
	n := len(hops)
	if n == 0 {
		return nil, ErrEmptyPath
	}
	if n > maxHops {
		return nil, ErrPathTooLong
	}
	if len(payload) != PayloadSize {
		return nil, fmt.Errorf("sphinx: payload must be %d bytes, got %d", PayloadSize, len(payload))
	}

	x, err := randomScalar()
	if err != nil {
		return nil, err
	}

	// wireAlpha is the ephemeral key hop 0 actually sees on the wire:
	// x0*G. x is then walked forward through each hop's blinding scalar
	// so later hops' shared secrets are derived correctly, but that
	// blinded chain is never itself put on the wire — each hop
	// recomputes its own blinded alpha from the previous hop's, starting
	// from this same x0*G (spec §4.1).
	wireAlpha := ristretto255.NewElement().ScalarBaseMult(x)

	fullKeystreams := make([][]byte, n)
	payloadStreams := make([][]byte, n)
	macKeys := make([][]byte, n)

	for i, hop := range hops {
		pub := ristretto255.NewElement()
		if err := pub.Decode(hop.PublicKey[:]); err != nil {
			return nil, ErrBadPublicKey
		}

		shared := ristretto255.NewElement().ScalarMult(x, pub)
		keys := deriveKeys(shared.Encode(nil))

		fullKeystreams[i] = keystream(keys.HeaderStreamKey[:], CiphertextSize+fillerSize)
		payloadStreams[i] = keystream(keys.PayloadStreamKey[:], PayloadSize)
		macKeys[i] = append([]byte(nil), keys.HeaderMACKey[:]...)

		if i < n-1 {
			x = ristretto255.NewScalar().Multiply(x, keys.BlindingScalar)
		}
	}

	// Grow the filler that accumulates as the header passes through
	// every hop but the last (spec §4.1's forwarding shift, run forward
	// here so the last hop's synthetic layer already carries the exact
	// tail bytes each preceding hop's honest forwarding would produce).
	filler := make([]byte, 0, (n-1)*shiftSize)
	for i := 0; i < n-1; i++ {
		filler = growFiller(filler, fullKeystreams[i])
	}

	plaintext := make([]byte, CiphertextSize)
	plaintext[0] = TagFinal
	if l := len(filler); l > 0 {
		tail := xorBytes(fullKeystreams[n-1][CiphertextSize-l:CiphertextSize], filler)
		copy(plaintext[CiphertextSize-l:], tail)
	}

	ciphertext := xorBytes(fullKeystreams[n-1][:CiphertextSize], plaintext)
	mac := computeMAC(macKeys[n-1], ciphertext)

	for i := n - 2; i >= 0; i-- {
		record := make([]byte, shiftSize)
		record[0] = TagForward
		copy(record[1:1+registry.NodeIDSize], hops[i+1].ID[:])
		copy(record[1+registry.NodeIDSize:], mac[:])

		tail := xorBytes(fullKeystreams[i][shiftSize:CiphertextSize], ciphertext[:PartialSize])

		plaintext := make([]byte, CiphertextSize)
		copy(plaintext, record)
		copy(plaintext[shiftSize:], tail)

		ciphertext = xorBytes(fullKeystreams[i][:CiphertextSize], plaintext)
		mac = computeMAC(macKeys[i], ciphertext)
	}

	combinedPayloadStream := make([]byte, PayloadSize)
	for _, ps := range payloadStreams {
		combinedPayloadStream = xorBytes(combinedPayloadStream, ps)
	}
	wirePayload := xorBytes(combinedPayloadStream, payload)

	var pkt SphinxPacket
	copy(pkt.Header.EphemeralKey[:], wireAlpha.Encode(nil))
	copy(pkt.Header.RoutingInfo.MAC[:], mac[:])
	copy(pkt.Header.RoutingInfo.Ciphertext[:], ciphertext)
	copy(pkt.Payload[:], wirePayload)

	return &pkt, nil
}

// growFiller extends prevFiller (the filler tail produced after some
// number of preceding hops) by one more layer of the given hop's header
// keystream. This is the construction-side mirror of the shift each hop
// performs when forwarding: the last shiftSize bytes of the grown filler
// are pure keystream, and the bytes before that XOR the keystream's
// corresponding window against the previous filler.
func growFiller(prevFiller, fullKeystream []byte) []byte {
	l := len(prevFiller)

	grown := make([]byte, l+shiftSize)
	copy(grown[:l], xorBytes(fullKeystream[CiphertextSize-l:CiphertextSize], prevFiller))
	copy(grown[l:], fullKeystream[CiphertextSize:CiphertextSize+fillerSize])

	return grown
}

// randomScalar draws a uniformly random Ristretto scalar.
func randomScalar() (*ristretto255.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	return ristretto255.NewScalar().FromUniformBytes(buf[:]), nil
}
