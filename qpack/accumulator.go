package qpack

// DecodedHeaders is the result of decoding one header block.
type DecodedHeaders struct {
	// Fields holds the decoded fields in the order they appeared.
	Fields []HeaderField
	// CompressedSize is the number of header block bytes fed to Decode.
	CompressedSize uint64
	// UncompressedSize is the sum of the name and value lengths of the
	// decoded fields.
	UncompressedSize uint64
}

// An AccumulatorVisitor is told the outcome of decoding a header block.
// Exactly one of the two methods is called, exactly once.
type AccumulatorVisitor interface {
	OnHeadersDecoded(headers DecodedHeaders)
	OnHeaderDecodingError(err error)
}

// A DecodedHeadersAccumulator owns the StreamDecoder for one header block
// and aggregates its output into a complete header list, together with the
// compressed and uncompressed byte counts.
type DecodedHeadersAccumulator struct {
	decoder *StreamDecoder
	visitor AccumulatorVisitor

	maxHeaderListSize uint64

	fields       []HeaderField
	compressed   uint64
	uncompressed uint64
	listSize     uint64

	err error
}

var _ HeadersHandler = &DecodedHeadersAccumulator{}

// NewDecodedHeadersAccumulator returns an accumulator for one header block.
// maxHeaderListSize caps the decoded list, counted like the table cost of
// the fields (name + value + 32 each); 0 means no limit.
func NewDecodedHeadersAccumulator(
	streamID uint64,
	table DynamicTableView,
	sender *DecoderStreamSender,
	visitor AccumulatorVisitor,
	maxHeaderListSize uint64,
) *DecodedHeadersAccumulator {
	a := &DecodedHeadersAccumulator{
		visitor:           visitor,
		maxHeaderListSize: maxHeaderListSize,
	}
	a.decoder = NewStreamDecoder(streamID, table, sender, a)
	return a
}

// SetMaxStringLength caps single literal lengths, see
// (*StreamDecoder).SetMaxStringLength.
func (a *DecodedHeadersAccumulator) SetMaxStringLength(n uint64) {
	a.decoder.SetMaxStringLength(n)
}

// Decode feeds the next fragment of the header block.
func (a *DecodedHeadersAccumulator) Decode(p []byte) error {
	if a.err != nil {
		return a.err
	}
	a.compressed += uint64(len(p))
	if err := a.decoder.Decode(p); err != nil {
		return err
	}
	// the header list limit may have tripped inside OnHeaderDecoded
	return a.err
}

// EndHeaderBlock signals the end of the block. On success the visitor
// receives the completed header list; if the decoder is blocked, that
// happens only once InsertCountIncreased has unblocked it.
func (a *DecodedHeadersAccumulator) EndHeaderBlock() error {
	if a.err != nil {
		return a.err
	}
	if err := a.decoder.EndHeaderBlock(); err != nil {
		return err
	}
	return a.err
}

// Blocked reports whether the underlying decoder is suspended.
func (a *DecodedHeadersAccumulator) Blocked() bool { return a.decoder.Blocked() }

// InsertCountIncreased re-drives a blocked block after table insertions.
func (a *DecodedHeadersAccumulator) InsertCountIncreased() error {
	if a.err != nil {
		return a.err
	}
	if err := a.decoder.InsertCountIncreased(); err != nil {
		return err
	}
	return a.err
}

// Cancel abandons the block, see (*StreamDecoder).Cancel.
func (a *DecodedHeadersAccumulator) Cancel() {
	a.decoder.Cancel()
	if a.err == nil {
		a.err = errStreamCancelled
	}
}

// OnHeaderDecoded implements HeadersHandler.
func (a *DecodedHeadersAccumulator) OnHeaderDecoded(hf HeaderField) {
	if a.err != nil {
		return
	}
	a.uncompressed += uint64(len(hf.Name)) + uint64(len(hf.Value))
	a.listSize += hf.size()
	if a.maxHeaderListSize > 0 && a.listSize > a.maxHeaderListSize {
		a.err = ErrHeaderListTooLarge
		a.fields = nil
		a.visitor.OnHeaderDecodingError(a.err)
		return
	}
	a.fields = append(a.fields, hf)
}

// OnDecodingCompleted implements HeadersHandler.
func (a *DecodedHeadersAccumulator) OnDecodingCompleted() {
	if a.err != nil {
		return
	}
	a.visitor.OnHeadersDecoded(DecodedHeaders{
		Fields:           a.fields,
		CompressedSize:   a.compressed,
		UncompressedSize: a.uncompressed,
	})
}

// OnDecodingErrorDetected implements HeadersHandler.
func (a *DecodedHeadersAccumulator) OnDecodingErrorDetected(err error) {
	if a.err != nil {
		return
	}
	a.err = err
	a.fields = nil
	a.visitor.OnHeaderDecodingError(err)
}
