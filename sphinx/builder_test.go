package sphinx

import (
	"testing"

	"github.com/sphinxmix/mixnode/registry"
	"github.com/stretchr/testify/require"
)

// TestBuildPacketSingleHop exercises spec.md's second end-to-end
// scenario: a one-hop packet destined at this node yields a Final
// outcome with the original payload intact.
func TestBuildPacketSingleHop(t *testing.T) {
	t.Parallel()

	hop := testKeyPair("single-hop")
	payload := make([]byte, PayloadSize)
	copy(payload, []byte("direct-delivery"))

	pkt, err := BuildPacket([]Hop{{ID: testNodeID(0x01), PublicKey: hop.PublicKey()}}, payload)
	require.NoError(t, err)

	proc := NewProcessor(hop, newTestReplayCache())
	result, err := proc.Process(pkt)
	require.NoError(t, err)
	require.Equal(t, ActionFinal, result.Action)
	require.Equal(t, payload, result.Payload)
}

// TestBuildPacketThreeHops chains a three-hop path end to end, checking
// that every intermediate Forward outcome addresses the right next hop
// and the terminus recovers the original payload.
func TestBuildPacketThreeHops(t *testing.T) {
	t.Parallel()

	keys := []*KeyPair{
		testKeyPair("three-hop-0"),
		testKeyPair("three-hop-1"),
		testKeyPair("three-hop-2"),
	}
	ids := []registry.NodeID{testNodeID(0x10), testNodeID(0x20), testNodeID(0x30)}

	hops := make([]Hop, len(keys))
	for i, k := range keys {
		hops[i] = Hop{ID: ids[i], PublicKey: k.PublicKey()}
	}

	payload := make([]byte, PayloadSize)
	copy(payload, []byte("three-hop-payload"))

	pkt, err := BuildPacket(hops, payload)
	require.NoError(t, err)

	for i := 0; i < len(keys)-1; i++ {
		proc := NewProcessor(keys[i], newTestReplayCache())
		result, err := proc.Process(pkt)
		require.NoErrorf(t, err, "hop %d", i)
		require.Equalf(t, ActionForward, result.Action, "hop %d", i)
		require.Equalf(t, ids[i+1], result.NextHop, "hop %d", i)

		pkt = result.NextPacket
	}

	proc := NewProcessor(keys[len(keys)-1], newTestReplayCache())
	result, err := proc.Process(pkt)
	require.NoError(t, err)
	require.Equal(t, ActionFinal, result.Action)
	require.Equal(t, payload, result.Payload)
}

// TestBuildPacketRejectsTooLong checks that a path longer than the
// header can carry is rejected rather than silently truncated.
func TestBuildPacketRejectsTooLong(t *testing.T) {
	t.Parallel()

	hops := make([]Hop, maxHops+1)
	for i := range hops {
		k := testKeyPair("overflow")
		hops[i] = Hop{ID: testNodeID(byte(i)), PublicKey: k.PublicKey()}
	}

	_, err := BuildPacket(hops, make([]byte, PayloadSize))
	require.ErrorIs(t, err, ErrPathTooLong)
}

// TestBuildPacketRejectsEmptyPath checks the zero-hop case is rejected.
func TestBuildPacketRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := BuildPacket(nil, make([]byte, PayloadSize))
	require.ErrorIs(t, err, ErrEmptyPath)
}
