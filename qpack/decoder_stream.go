package qpack

// A DecoderStreamSender serializes the instructions the decoder sends back
// to the peer's encoder on the decoder stream, see section 4.4 of RFC 9204.
// These acknowledgments are what allow the peer to evict dynamic table
// entries that in-flight header blocks might still reference.
//
// Each Send call invokes the write delegate exactly once, with the
// complete encoded instruction. Instructions are written in call order.
type DecoderStreamSender struct {
	write func(p []byte)
}

// NewDecoderStreamSender returns a sender that passes each encoded
// instruction to write.
func NewDecoderStreamSender(write func(p []byte)) *DecoderStreamSender {
	return &DecoderStreamSender{write: write}
}

// SendInsertCountIncrement acknowledges n processed insertions on the
// encoder stream. An increment of 0 is a connection error for the peer,
// see section 4.4.3 of RFC 9204, so n = 0 sends nothing.
func (s *DecoderStreamSender) SendInsertCountIncrement(n uint64) {
	if n == 0 {
		return
	}
	// 00xxxxxx
	s.write(appendVarInt(nil, 6, n))
}

// SendHeaderAcknowledgement acknowledges a fully decoded header block on
// the given stream.
func (s *DecoderStreamSender) SendHeaderAcknowledgement(streamID uint64) {
	// 1xxxxxxx
	data := appendVarInt(nil, 7, streamID)
	data[0] |= 0x80
	s.write(data)
}

// SendStreamCancellation tells the peer that the given stream was reset and
// that header blocks on it won't be decoded, so it can release any entries
// those blocks had pinned.
func (s *DecoderStreamSender) SendStreamCancellation(streamID uint64) {
	// 01xxxxxx
	data := appendVarInt(nil, 6, streamID)
	data[0] |= 0x40
	s.write(data)
}
