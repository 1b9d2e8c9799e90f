package qpack

import (
	"errors"
	"math"

	"golang.org/x/net/http2/hpack"
)

// A HeadersHandler receives the output of a StreamDecoder.
type HeadersHandler interface {
	// OnHeaderDecoded is called for every decoded field, in order, as soon
	// as it has been decoded.
	OnHeaderDecoded(f HeaderField)
	// OnDecodingCompleted is called once, after the last field of the block.
	OnDecodingCompleted()
	// OnDecodingErrorDetected is called at most once. No handler method is
	// invoked after it.
	OnDecodingErrorDetected(err error)
}

type decodeState uint8

const (
	statePrefix decodeState = iota
	stateFieldLines
	stateCompleted
	stateErrored
)

var errAlreadyCompleted = errors.New("header block already ended")

// A StreamDecoder decodes a single header block, incrementally: input may
// arrive in arbitrary fragments, and decoded fields are passed to the
// handler as soon as they are complete.
//
// If the block's Required Insert Count exceeds the number of insertions the
// dynamic table has seen, the decoder suspends instead of failing: it
// buffers all input (and a pending EndHeaderBlock) and reports Blocked.
// The caller re-drives it with InsertCountIncreased once the encoder stream
// receiver has advanced the table.
//
// The first decoding error latches the decoder. The handler is notified
// exactly once, and every later call returns the latched error without
// invoking the handler again.
type StreamDecoder struct {
	streamID uint64
	table    DynamicTableView
	sender   *DecoderStreamSender
	handler  HeadersHandler

	maxStringLength uint64

	state   decodeState
	blocked bool
	endSeen bool
	buf     []byte

	requiredInsertCount      uint64
	requiredInsertCountSoFar uint64
	base                     uint64

	err error
}

// NewStreamDecoder returns a decoder for one header block on the given
// stream. table and sender may be nil: without a table every dynamic
// reference fails, and without a sender no acknowledgments are emitted.
func NewStreamDecoder(streamID uint64, table DynamicTableView, sender *DecoderStreamSender, handler HeadersHandler) *StreamDecoder {
	return &StreamDecoder{
		streamID: streamID,
		table:    table,
		sender:   sender,
		handler:  handler,
	}
}

// SetMaxStringLength caps the length of a single literal name or value.
// Longer literals fail with ErrStringTooLarge, before their bytes have
// arrived. 0 means no limit.
func (d *StreamDecoder) SetMaxStringLength(n uint64) {
	d.maxStringLength = n
}

// Decode feeds the next fragment of the header block to the decoder.
func (d *StreamDecoder) Decode(p []byte) error {
	if d.err != nil {
		return d.err
	}
	if d.state == stateCompleted {
		return errAlreadyCompleted
	}
	d.buf = append(d.buf, p...)
	if d.blocked {
		return nil
	}
	return d.drive()
}

// EndHeaderBlock signals that the last fragment has been delivered.
// If the decoder is blocked, completion is deferred until the table has
// advanced far enough; OnDecodingCompleted fires either way.
func (d *StreamDecoder) EndHeaderBlock() error {
	if d.err != nil {
		return d.err
	}
	if d.state == stateCompleted {
		return errAlreadyCompleted
	}
	d.endSeen = true
	if d.blocked {
		return nil
	}
	return d.drive()
}

// Blocked reports whether the decoder is suspended, waiting for the dynamic
// table to reach the block's Required Insert Count.
func (d *StreamDecoder) Blocked() bool { return d.blocked }

// RequiredInsertCount returns the target insert count from the block's
// prefix. It is 0 until the prefix has been decoded.
func (d *StreamDecoder) RequiredInsertCount() uint64 { return d.requiredInsertCount }

// InsertCountIncreased re-drives a blocked decoder after the dynamic table
// has advanced. It is a no-op if the decoder isn't blocked, or if the table
// still hasn't reached the Required Insert Count.
func (d *StreamDecoder) InsertCountIncreased() error {
	if d.err != nil {
		return d.err
	}
	if !d.blocked || d.insertCount() < d.requiredInsertCount {
		return nil
	}
	d.blocked = false
	return d.drive()
}

// Cancel abandons the header block, e.g. because the stream was reset.
// Unless the block already completed, a Stream Cancellation is sent so the
// peer can release entries pinned by this block. The handler is not
// notified; the caller initiated the cancellation. All later calls fail.
func (d *StreamDecoder) Cancel() {
	if d.state == stateCompleted || d.state == stateErrored {
		return
	}
	d.state = stateErrored
	d.err = errStreamCancelled
	d.buf = nil
	if d.sender != nil {
		d.sender.SendStreamCancellation(d.streamID)
	}
}

func (d *StreamDecoder) drive() error {
	if d.state == statePrefix {
		switch err := d.parsePrefix(); {
		case err == errNeedMore:
			if d.endSeen {
				return d.fail(decodingError{ErrTruncatedInstruction})
			}
			return nil
		case err != nil:
			return d.fail(err)
		}
		if d.blocked {
			return nil
		}
	}
	for len(d.buf) > 0 {
		switch err := d.parseFieldLine(); {
		case err == errNeedMore:
			if d.endSeen {
				return d.fail(decodingError{ErrTruncatedInstruction})
			}
			return nil
		case err != nil:
			return d.fail(err)
		}
	}
	if d.endSeen {
		return d.finish()
	}
	return nil
}

func (d *StreamDecoder) finish() error {
	if d.requiredInsertCountSoFar != d.requiredInsertCount {
		return d.fail(decodingError{ErrRequiredInsertCountMismatch})
	}
	d.state = stateCompleted
	// Blocks that never referenced the dynamic table don't need to be
	// acknowledged, see section 2.2.2.2 of RFC 9204.
	if d.requiredInsertCount > 0 && d.sender != nil {
		d.sender.SendHeaderAcknowledgement(d.streamID)
	}
	if d.handler != nil {
		d.handler.OnDecodingCompleted()
	}
	return nil
}

func (d *StreamDecoder) fail(err error) error {
	d.state = stateErrored
	d.err = err
	d.buf = nil
	if d.handler != nil {
		d.handler.OnDecodingErrorDetected(err)
	}
	return err
}

func (d *StreamDecoder) emit(hf HeaderField) {
	if d.handler != nil {
		d.handler.OnHeaderDecoded(hf)
	}
}

func (d *StreamDecoder) insertCount() uint64 {
	if d.table == nil {
		return 0
	}
	return d.table.InsertCount()
}

// parsePrefix decodes the Header Data Prefix: the Encoded Required Insert
// Count and the signed Delta Base, see section 4.5.1 of RFC 9204.
// It only consumes from d.buf once the whole prefix has been parsed.
func (d *StreamDecoder) parsePrefix() error {
	encodedInsertCount, rest, err := readVarInt(8, d.buf)
	if err != nil {
		return err
	}
	var maxEntries uint64
	if d.table != nil {
		maxEntries = d.table.MaxEntries()
	}
	requiredInsertCount, err := decodeRequiredInsertCount(encodedInsertCount, maxEntries, d.insertCount())
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errNeedMore
	}
	sign := rest[0]&0x80 > 0
	deltaBase, rest, err := readVarInt(7, rest)
	if err != nil {
		return err
	}
	var base uint64
	if sign {
		if deltaBase >= requiredInsertCount {
			return decodingError{ErrArithmeticOverflow}
		}
		base = requiredInsertCount - deltaBase - 1
	} else {
		if deltaBase > math.MaxUint64-requiredInsertCount {
			return decodingError{ErrArithmeticOverflow}
		}
		base = requiredInsertCount + deltaBase
	}
	d.requiredInsertCount = requiredInsertCount
	d.base = base
	d.buf = rest
	d.state = stateFieldLines
	if requiredInsertCount > d.insertCount() {
		d.blocked = true
	}
	return nil
}

// parseFieldLine decodes one field line representation. The five forms are
// distinguished by the high bits of the first byte; together they cover
// every possible byte, see sections 4.5.2 through 4.5.6 of RFC 9204.
func (d *StreamDecoder) parseFieldLine() error {
	switch b := d.buf[0]; {
	case b&0x80 > 0:
		return d.parseIndexedHeaderField()
	case b&0xc0 == 0x40:
		return d.parseLiteralHeaderFieldWithNameReference()
	case b&0xe0 == 0x20:
		return d.parseLiteralHeaderFieldWithoutNameReference()
	case b&0xf0 == 0x10:
		return d.parseIndexedHeaderFieldPostBase()
	default: // 0000xxxx
		return d.parseLiteralHeaderFieldPostBase()
	}
}

func (d *StreamDecoder) parseIndexedHeaderField() error {
	isStatic := d.buf[0]&0x40 > 0
	index, rest, err := readVarInt(6, d.buf)
	if err != nil {
		return err
	}
	var hf HeaderField
	if isStatic {
		if index >= uint64(len(staticTableEntries)) {
			return decodingError{invalidIndexError(index)}
		}
		hf = staticTableEntries[index]
	} else {
		hf, err = d.lookupRelative(index)
		if err != nil {
			return err
		}
	}
	d.buf = rest
	d.emit(hf)
	return nil
}

func (d *StreamDecoder) parseIndexedHeaderFieldPostBase() error {
	index, rest, err := readVarInt(4, d.buf)
	if err != nil {
		return err
	}
	absolute, err := postBaseToAbsolute(d.base, index)
	if err != nil {
		return err
	}
	hf, err := d.lookupAbsolute(absolute)
	if err != nil {
		return err
	}
	d.buf = rest
	d.emit(hf)
	return nil
}

func (d *StreamDecoder) parseLiteralHeaderFieldWithNameReference() error {
	// the N-bit (0x20) only concerns intermediaries re-encoding the field
	isStatic := d.buf[0]&0x10 > 0
	index, rest, err := readVarInt(4, d.buf)
	if err != nil {
		return err
	}
	var hf HeaderField
	if isStatic {
		if index >= uint64(len(staticTableEntries)) {
			return decodingError{invalidIndexError(index)}
		}
		hf.Name = staticTableEntries[index].Name
	} else {
		ref, err := d.lookupRelative(index)
		if err != nil {
			return err
		}
		hf.Name = ref.Name
	}
	hf.Value, rest, err = d.parseString(rest, 7)
	if err != nil {
		return err
	}
	d.buf = rest
	d.emit(hf)
	return nil
}

func (d *StreamDecoder) parseLiteralHeaderFieldPostBase() error {
	index, rest, err := readVarInt(3, d.buf)
	if err != nil {
		return err
	}
	absolute, err := postBaseToAbsolute(d.base, index)
	if err != nil {
		return err
	}
	ref, err := d.lookupAbsolute(absolute)
	if err != nil {
		return err
	}
	hf := HeaderField{Name: ref.Name}
	hf.Value, rest, err = d.parseString(rest, 7)
	if err != nil {
		return err
	}
	d.buf = rest
	d.emit(hf)
	return nil
}

func (d *StreamDecoder) parseLiteralHeaderFieldWithoutNameReference() error {
	var hf HeaderField
	name, rest, err := d.parseString(d.buf, 3)
	if err != nil {
		return err
	}
	hf.Name = name
	hf.Value, rest, err = d.parseString(rest, 7)
	if err != nil {
		return err
	}
	d.buf = rest
	d.emit(hf)
	return nil
}

// lookupRelative resolves a request stream relative index against the
// dynamic table.
func (d *StreamDecoder) lookupRelative(relativeIndex uint64) (HeaderField, error) {
	absolute, err := relativeToAbsolute(d.base, relativeIndex)
	if err != nil {
		return HeaderField{}, err
	}
	return d.lookupAbsolute(absolute)
}

func (d *StreamDecoder) lookupAbsolute(absolute uint64) (HeaderField, error) {
	// References beyond the Required Insert Count are invalid even once the
	// table has grown past them, see section 2.1.2 of RFC 9204.
	if absolute > d.requiredInsertCount {
		return HeaderField{}, decodingError{ErrIndexOutOfRange}
	}
	if d.table == nil {
		return HeaderField{}, decodingError{ErrIndexOutOfRange}
	}
	hf, ok := d.table.Lookup(absolute)
	if !ok {
		return HeaderField{}, decodingError{ErrIndexOutOfRange}
	}
	if absolute > d.requiredInsertCountSoFar {
		d.requiredInsertCountSoFar = absolute
	}
	return hf, nil
}

// parseString reads a length-prefixed, possibly Huffman-encoded string.
// n is the prefix length; the Huffman bit is the bit just above the prefix.
func (d *StreamDecoder) parseString(b []byte, n byte) (string, []byte, error) {
	if len(b) == 0 {
		return "", nil, errNeedMore
	}
	usesHuffman := b[0]&(1<<n) > 0
	l, rest, err := readVarInt(n, b)
	if err != nil {
		return "", nil, err
	}
	if d.maxStringLength > 0 && l > d.maxStringLength {
		return "", nil, decodingError{ErrStringTooLarge}
	}
	if uint64(len(rest)) < l {
		return "", nil, errNeedMore
	}
	var s string
	if usesHuffman {
		s, err = hpack.HuffmanDecodeToString(rest[:l])
		if err != nil {
			return "", nil, decodingError{err}
		}
	} else {
		s = string(rest[:l])
	}
	return s, rest[l:], nil
}
