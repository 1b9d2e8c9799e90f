// Package hpack implements the decoding side of HPACK, the header
// compression format of HTTP/2, see RFC 7541.
//
// Unlike the API of golang.org/x/net/http2/hpack, decoding follows the
// explicit block lifecycle the frame layer sees: StartBlock when a HEADERS
// frame opens a block, DecodeFragment for every header block fragment
// (HEADERS and CONTINUATION payloads), EndBlock when the END_HEADERS flag
// arrives.
package hpack

// A Listener receives the output of a Decoder.
type Listener interface {
	// OnHeaderDecoded is called for every decoded field, in order, as soon
	// as it has been decoded.
	OnHeaderDecoded(f HeaderField)
	// OnDecodingCompleted is called once per block, from EndBlock.
	OnDecodingCompleted()
	// OnDecodingError is called at most once per decoder. No listener
	// method is invoked after it.
	OnDecodingError(err error)
}

// A Decoder decodes the header blocks of one HPACK stream (i.e. one HTTP/2
// connection direction). It owns the dynamic table: literal fields with
// incremental indexing insert into it, dynamic table size updates shrink
// it, and both kinds of state persist across blocks.
//
// The first decoding error latches the decoder permanently. A corrupted
// block deterministically corrupts the shared table state, so the
// connection must be torn down; all further calls fail without invoking
// the listener again.
type Decoder struct {
	listener Listener
	table    dynamicTable

	// maxTableCapacity is the limit from the SETTINGS_HEADER_TABLE_SIZE
	// setting; in-block size updates must not exceed it.
	maxTableCapacity uint64
	maxStringLength  uint64
	maxBlockLength   uint64

	inBlock bool
	// sawField is set once the current block emitted a field; a dynamic
	// table size update after that point is an error, see section 4.2 of
	// RFC 7541.
	sawField bool
	// sizeUpdates counts the dynamic table size updates in the current
	// block. A single settings change requires at most two (an intermediate
	// minimum and the final value), so a third is an error.
	sizeUpdates int
	// blockLength is the total number of bytes received for the current
	// block, across all fragments.
	blockLength uint64
	// pending holds the bytes of a partially received entry. The decoder
	// is positioned between entries exactly when it is empty.
	pending []byte

	err error
}

// NewDecoder returns a decoder whose dynamic table starts with the given
// capacity (the SETTINGS_HEADER_TABLE_SIZE value, 4096 by default).
func NewDecoder(maxDynamicTableSize uint64, listener Listener) *Decoder {
	d := &Decoder{
		listener:         listener,
		maxTableCapacity: maxDynamicTableSize,
	}
	d.table.capacity = maxDynamicTableSize
	return d
}

// ApplyHeaderTableSizeSetting applies a new SETTINGS_HEADER_TABLE_SIZE
// value. It bounds future dynamic table size updates and shrinks the table
// immediately if it exceeds the new limit.
func (d *Decoder) ApplyHeaderTableSizeSetting(maxSize uint64) {
	d.maxTableCapacity = maxSize
	if d.table.capacity > maxSize {
		d.table.setCapacity(maxSize)
	}
}

// SetMaxStringLength caps the length of a single literal name or value.
// Longer literals fail with ErrStringTooLarge, before their bytes have
// arrived. 0 means no limit.
func (d *Decoder) SetMaxStringLength(n uint64) {
	d.maxStringLength = n
}

// SetMaxBlockLength caps the total compressed size of a single header block,
// summed across its fragments. Larger blocks fail with ErrBlockTooLarge.
// 0 means no limit.
func (d *Decoder) SetMaxBlockLength(n uint64) {
	d.maxBlockLength = n
}

// StartBlock begins a new header block.
func (d *Decoder) StartBlock() error {
	if d.err != nil {
		return d.err
	}
	if d.inBlock {
		return errBlockAlreadyStarted
	}
	d.inBlock = true
	d.sawField = false
	d.sizeUpdates = 0
	d.blockLength = 0
	return nil
}

// DecodeFragment feeds the next fragment of the current header block.
// Every entry completed by this fragment is applied; a trailing partial
// entry stays buffered until the next fragment.
func (d *Decoder) DecodeFragment(p []byte) error {
	if d.err != nil {
		return d.err
	}
	if !d.inBlock {
		return errNoBlockStarted
	}
	d.blockLength += uint64(len(p))
	if d.maxBlockLength > 0 && d.blockLength > d.maxBlockLength {
		return d.fail(ErrBlockTooLarge)
	}
	d.pending = append(d.pending, p...)
	for len(d.pending) > 0 {
		err := d.parseEntry()
		if err == errNeedMore {
			return nil
		}
		if err != nil {
			return d.fail(err)
		}
	}
	return nil
}

// EndBlock ends the current header block. It fails if the input stopped in
// the middle of an entry. The dynamic table persists for the next block.
func (d *Decoder) EndBlock() error {
	if d.err != nil {
		return d.err
	}
	if !d.inBlock {
		return errNoBlockStarted
	}
	if len(d.pending) > 0 {
		return d.fail(ErrTruncatedEntry)
	}
	d.inBlock = false
	d.listener.OnDecodingCompleted()
	return nil
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.pending = nil
	d.listener.OnDecodingError(err)
	return err
}

// lookup resolves an index from the single index space of section 2.3.3 of
// RFC 7541: 1 through 61 address the static table, higher indices address
// the dynamic table, newest entry first.
func (d *Decoder) lookup(index uint64) (HeaderField, bool) {
	if index == 0 {
		return HeaderField{}, false
	}
	if index <= staticTableSize {
		return staticTableEntries[index-1], true
	}
	return d.table.get(index - staticTableSize)
}
