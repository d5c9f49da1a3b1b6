package delivery

import (
	"encoding/hex"
	"fmt"
	"io"
)

// WriterSink writes delivered payloads hex-encoded, one per line, to an
// underlying io.Writer. It backs the demo binary's default sink.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w as a Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver writes payload hex-encoded followed by a newline, logging (but
// not propagating) any write error since Sink.Deliver cannot fail.
func (w *WriterSink) Deliver(payload []byte) {
	if _, err := fmt.Fprintln(w.w, hex.EncodeToString(payload)); err != nil {
		log.Errorf("Writing delivered payload: %v", err)
	}
}
