// Package sphinx implements the per-hop cryptographic core of the mix
// node: header unwrap, shared-secret derivation, replay detection, and the
// constant-time-equalized processing algorithm that turns one incoming
// SphinxPacket into either a rebuilt packet for the next hop or a
// terminal payload (spec §3, §4.1).
package sphinx

import (
	"github.com/sphinxmix/mixnode/registry"
)

const (
	// EphemeralKeySize is the size of the per-hop Diffie-Hellman half-key,
	// a Ristretto group element.
	EphemeralKeySize = 32

	// MacSize is the size of the keyed MAC authenticating a header's
	// ciphertext.
	MacSize = 32

	// CiphertextSize is the size of the encrypted routing-instruction
	// blob inside a header.
	CiphertextSize = 448

	// RoutingInfoSize is MAC plus ciphertext.
	RoutingInfoSize = MacSize + CiphertextSize // 480

	// HeaderSize is the full fixed-size Sphinx header.
	HeaderSize = EphemeralKeySize + RoutingInfoSize // 512

	// PayloadSize is the fixed-size onion-encrypted payload.
	PayloadSize = 512

	// PacketSize is the full wire size of a Sphinx packet. Every packet
	// on the wire has exactly this size; this is an anonymity invariant.
	PacketSize = HeaderSize + PayloadSize // 1024

	// RecordSize is the decrypted routing record consumed at each hop: a
	// one-byte tag followed by the next hop's NodeID.
	RecordSize = 1 + registry.NodeIDSize // 33

	// shiftSize is how much of the decrypted ciphertext a hop consumes
	// (record plus the next hop's mac) when rebuilding for forwarding.
	shiftSize = RecordSize + MacSize // 65

	// PartialSize is what remains of the decrypted ciphertext after the
	// shift, destined to become the front of the rebuilt ciphertext.
	PartialSize = CiphertextSize - shiftSize // 383

	// fillerSize equals shiftSize: forwarding appends exactly as much
	// deterministic filler as was consumed, keeping the packet fixed-size.
	fillerSize = shiftSize // 65

	// TagForward and TagFinal are the routing-record tag byte values.
	TagForward byte = 0x00
	TagFinal   byte = 0x01
)

// RoutingInfo is the encrypted layered routing instructions plus the
// keyed MAC that authenticates them (spec §3).
type RoutingInfo struct {
	MAC        [MacSize]byte
	Ciphertext [CiphertextSize]byte
}

// SphinxHeader is the first 512 bytes of a SphinxPacket.
type SphinxHeader struct {
	EphemeralKey [EphemeralKeySize]byte
	RoutingInfo  RoutingInfo
}

// SphinxPayload is the onion-encrypted payload half of a SphinxPacket.
type SphinxPayload [PayloadSize]byte

// SphinxPacket is the fixed-size unit of wire traffic: a SphinxHeader
// followed by a SphinxPayload (spec §3).
type SphinxPacket struct {
	Header  SphinxHeader
	Payload SphinxPayload
}

// Encode renders the packet as exactly PacketSize bytes.
func (p *SphinxPacket) Encode() []byte {
	buf := make([]byte, 0, PacketSize)
	buf = append(buf, p.Header.EphemeralKey[:]...)
	buf = append(buf, p.Header.RoutingInfo.MAC[:]...)
	buf = append(buf, p.Header.RoutingInfo.Ciphertext[:]...)
	buf = append(buf, p.Payload[:]...)
	return buf
}

// DecodeSphinxPacket parses a received datagram into a SphinxPacket.
// Any length other than PacketSize is a structural failure, the one
// class of error the node is permitted to short-circuit on without
// timing equalization (spec §4.1: "Structural failures ... may
// short-circuit").
func DecodeSphinxPacket(buf []byte) (*SphinxPacket, error) {
	if len(buf) != PacketSize {
		return nil, ErrStructural
	}

	var p SphinxPacket
	off := 0

	copy(p.Header.EphemeralKey[:], buf[off:off+EphemeralKeySize])
	off += EphemeralKeySize

	copy(p.Header.RoutingInfo.MAC[:], buf[off:off+MacSize])
	off += MacSize

	copy(p.Header.RoutingInfo.Ciphertext[:], buf[off:off+CiphertextSize])
	off += CiphertextSize

	copy(p.Payload[:], buf[off:off+PayloadSize])

	return &p, nil
}

// Action discriminates the two closed outcomes of processing one layer
// (spec §3, §9: "Polymorphic packet outcomes ... no open inheritance").
type Action uint8

const (
	ActionForward Action = iota
	ActionFinal
)

// ProcessedPacket is the outcome of unwrapping one layer: exactly one of
// the Forward or Final fields is meaningful, selected by Action.
type ProcessedPacket struct {
	Action Action

	// Populated when Action == ActionForward.
	NextHop    registry.NodeID
	NextPacket *SphinxPacket

	// Populated when Action == ActionFinal.
	Payload []byte
}
