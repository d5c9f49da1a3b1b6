package delivery

// ChannelSink buffers delivered payloads on a channel. It exists for
// tests and in-process callers that want to consume Final payloads
// directly rather than through an external collaborator.
type ChannelSink struct {
	payloads chan []byte
}

// NewChannelSink returns a ChannelSink with the given buffer depth.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{payloads: make(chan []byte, buffer)}
}

// Deliver enqueues payload, dropping it if the buffer is full rather than
// blocking the caller.
func (c *ChannelSink) Deliver(payload []byte) {
	select {
	case c.payloads <- payload:
	default:
		log.Warnf("Delivery channel full, dropping payload of %d bytes", len(payload))
	}
}

// Payloads exposes the channel for consumers to range over.
func (c *ChannelSink) Payloads() <-chan []byte {
	return c.payloads
}
