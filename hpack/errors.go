package hpack

import "errors"

// errNeedMore is returned by the parsing functions when the input ends in
// the middle of an integer, a string or an entry. DecodeFragment keeps the
// partial entry buffered and waits for the next fragment; EndBlock turns it
// into ErrTruncatedEntry.
var errNeedMore = errors.New("need more data")

// Decoding errors. Any of these latches the decoder: the listener is
// notified once, and all further calls on the session fail. Compressed
// header state is ordered, so after an error the connection must be torn
// down rather than the stream resumed.
var (
	// ErrTruncatedEntry is returned by EndBlock when the block ends in the
	// middle of an entry.
	ErrTruncatedEntry = errors.New("truncated entry")
	// ErrIndexOutOfRange is returned when an indexed representation
	// references index 0, an index beyond the tables, or an evicted entry.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrStringTooLarge is returned when a literal name or value exceeds
	// the configured maximum string length.
	ErrStringTooLarge = errors.New("string exceeds maximum length")
	// ErrBlockTooLarge is returned when a header block exceeds the
	// configured maximum compressed size.
	ErrBlockTooLarge = errors.New("header block exceeds maximum length")

	errMisplacedSizeUpdate = errors.New("dynamic table size update not at beginning of block")
	errSizeUpdateTooLarge  = errors.New("dynamic table size update exceeds setting")
	errTooManySizeUpdates  = errors.New("too many dynamic table size updates")
	errBlockAlreadyStarted = errors.New("header block already started")
	errNoBlockStarted      = errors.New("no header block started")
)
