package sphinx

import (
	"testing"

	"github.com/gtank/ristretto255"
	"github.com/sphinxmix/mixnode/registry"
	"github.com/stretchr/testify/require"
)

// testKeyPair derives a KeyPair from a label, bypassing NewKeyPair so
// tests don't need an external 32-byte scalar.
func testKeyPair(label string) *KeyPair {
	secret := ristretto255.NewScalar().FromUniformBytes(
		expand([]byte(label), "test-hop-secret", 64),
	)
	public := ristretto255.NewElement().ScalarBaseMult(secret)
	return &KeyPair{Secret: secret, Public: public}
}

func testNodeID(b byte) registry.NodeID {
	var id registry.NodeID
	id[0] = b
	return id
}

func newTestReplayCache() *ReplayCache {
	return NewReplayCache(1000, 1000)
}

// clientOnion is the expected-plaintext fixture produced by BuildPacket
// for tests: the real packet construction lives in builder.go and is
// shared with the cover-traffic generator (spec §9: "Cover as real.").
type clientOnion struct {
	hop0, hop1     *KeyPair
	hop1ID         registry.NodeID
	finalPlaintext []byte
}

func twoHopFixture(t *testing.T) (*SphinxPacket, clientOnion) {
	t.Helper()

	onion := clientOnion{
		hop0:           testKeyPair("hop-0"),
		hop1:           testKeyPair("hop-1"),
		hop1ID:         testNodeID(0x42),
		finalPlaintext: []byte("integration-final-payload"),
	}

	hops := []Hop{
		{ID: testNodeID(0x01), PublicKey: onion.hop0.PublicKey()},
		{ID: onion.hop1ID, PublicKey: onion.hop1.PublicKey()},
	}

	padded := make([]byte, PayloadSize)
	copy(padded, onion.finalPlaintext)

	pkt, err := BuildPacket(hops, padded)
	require.NoError(t, err)

	return pkt, onion
}

// TestForwardHop exercises spec.md's first end-to-end scenario: a
// two-hop packet processed at the first hop yields a Forward outcome
// addressed at the second hop, with the expected fixed size, and a
// second presentation of the same packet is rejected as a replay.
func TestForwardHop(t *testing.T) {
	t.Parallel()

	pkt, onion := twoHopFixture(t)

	proc0 := NewProcessor(onion.hop0, newTestReplayCache())

	result, err := proc0.Process(pkt)
	require.NoError(t, err)
	require.Equal(t, ActionForward, result.Action)
	require.Equal(t, onion.hop1ID, result.NextHop)
	require.Len(t, result.NextPacket.Encode(), PacketSize)

	// Idempotence of replay: presenting the same packet again must be
	// rejected, with no emission.
	_, err = proc0.Process(pkt)
	require.ErrorIs(t, err, ErrReplay)
}

// TestForwardThenFinal chains both hops of the fixture and checks that
// the terminus recovers the original plaintext payload.
func TestForwardThenFinal(t *testing.T) {
	t.Parallel()

	pkt, onion := twoHopFixture(t)

	proc0 := NewProcessor(onion.hop0, newTestReplayCache())
	proc1 := NewProcessor(onion.hop1, newTestReplayCache())

	fwd, err := proc0.Process(pkt)
	require.NoError(t, err)
	require.Equal(t, ActionForward, fwd.Action)

	final, err := proc1.Process(fwd.NextPacket)
	require.NoError(t, err)
	require.Equal(t, ActionFinal, final.Action)

	padded := make([]byte, PayloadSize)
	copy(padded, onion.finalPlaintext)
	require.Equal(t, padded, final.Payload)
}

// TestEpochReset checks that rotating the replay cache allows a
// previously replayed packet to be accepted exactly once more.
func TestEpochReset(t *testing.T) {
	t.Parallel()

	pkt, onion := twoHopFixture(t)
	replay := newTestReplayCache()
	proc0 := NewProcessor(onion.hop0, replay)

	_, err := proc0.Process(pkt)
	require.NoError(t, err)

	_, err = proc0.Process(pkt)
	require.ErrorIs(t, err, ErrReplay)

	replay.Rotate()

	_, err = proc0.Process(pkt)
	require.NoError(t, err)
}

// TestMacMismatch corrupts the header MAC and checks that processing
// fails closed with ErrMacMismatch rather than forwarding garbage.
func TestMacMismatch(t *testing.T) {
	t.Parallel()

	pkt, onion := twoHopFixture(t)
	pkt.Header.RoutingInfo.MAC[0] ^= 0xff

	proc0 := NewProcessor(onion.hop0, newTestReplayCache())

	_, err := proc0.Process(pkt)
	require.ErrorIs(t, err, ErrMacMismatch)
}

// TestInvalidPoint checks that a header whose ephemeral key does not
// decode to a valid group element fails closed with ErrInvalidPoint
// instead of panicking.
func TestInvalidPoint(t *testing.T) {
	t.Parallel()

	pkt, onion := twoHopFixture(t)
	for i := range pkt.Header.EphemeralKey {
		pkt.Header.EphemeralKey[i] = 0xff
	}

	proc0 := NewProcessor(onion.hop0, newTestReplayCache())

	_, err := proc0.Process(pkt)
	require.ErrorIs(t, err, ErrInvalidPoint)
}

// TestDecodeSphinxPacketStructural checks that a wrong-length datagram is
// rejected structurally without attempting cryptographic processing.
func TestDecodeSphinxPacketStructural(t *testing.T) {
	t.Parallel()

	_, err := DecodeSphinxPacket(make([]byte, PacketSize-1))
	require.ErrorIs(t, err, ErrStructural)

	pkt, _ := twoHopFixture(t)
	decoded, err := DecodeSphinxPacket(pkt.Encode())
	require.NoError(t, err)
	require.Equal(t, pkt, decoded)
}

// TestReplayCacheShardIsolation checks that tags with different leading
// bytes don't collide in the same shard's bounded state.
func TestReplayCacheShardIsolation(t *testing.T) {
	t.Parallel()

	cache := NewReplayCache(100, 100)

	var tagA, tagB [ReplayTagSize]byte
	tagA[0] = 0x01
	tagB[0] = 0x02

	require.True(t, cache.InsertIfAbsent(tagA))
	require.True(t, cache.InsertIfAbsent(tagB))
	require.False(t, cache.InsertIfAbsent(tagA))
	require.False(t, cache.InsertIfAbsent(tagB))
}
