package delivery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelSinkDeliversAndDrops(t *testing.T) {
	t.Parallel()

	sink := NewChannelSink(1)

	sink.Deliver([]byte("first"))
	sink.Deliver([]byte("second")) // buffer full, dropped

	require.Equal(t, []byte("first"), <-sink.Payloads())

	select {
	case p := <-sink.Payloads():
		t.Fatalf("unexpected payload delivered: %x", p)
	default:
	}
}
