package qpack

import (
	"errors"
	"fmt"
)

// errNeedMore is returned by the parsing functions when the input ends in
// the middle of an integer, a string or a field line. It is never surfaced
// to the caller: Decode holds on to the partial input and waits for the
// next fragment, and EndHeaderBlock turns it into ErrTruncatedInstruction.
var errNeedMore = errors.New("need more data")

// Decoding errors. Any of these latches the decoder: the handler is
// notified once, and all further calls on the session fail.
var (
	// ErrTruncatedInstruction is returned when the header block ends in the
	// middle of a field line.
	ErrTruncatedInstruction = errors.New("truncated field line")
	// ErrIndexOutOfRange is returned when a table reference resolves to an
	// absolute index of 0, beyond the current insert count, or to an entry
	// that has already been evicted.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrArithmeticOverflow is returned when reconstructing the Required
	// Insert Count or computing the Base over- or underflows. The result is
	// never wrapped or saturated.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrStringTooLarge is returned when a literal name or value exceeds the
	// configured maximum string length.
	ErrStringTooLarge = errors.New("string exceeds maximum length")
	// ErrHeaderListTooLarge is returned by the accumulator when the decoded
	// header list exceeds the configured maximum size.
	ErrHeaderListTooLarge = errors.New("header list too large")
	// ErrRequiredInsertCountMismatch is returned when the largest reference
	// in the block doesn't match the Required Insert Count from the prefix.
	ErrRequiredInsertCountMismatch = errors.New("required insert count mismatch")

	errStreamCancelled = errors.New("stream cancelled")
)

// A decodingError is something RFC 9204 defines as a decoding error.
type decodingError struct {
	err error
}

func (de decodingError) Error() string {
	return fmt.Sprintf("decoding error: %v", de.err)
}

func (de decodingError) Unwrap() error { return de.err }

// An invalidIndexError is returned when an encoder references a static
// table entry that doesn't exist.
type invalidIndexError int

func (e invalidIndexError) Error() string {
	return fmt.Sprintf("invalid indexed representation index %d", int(e))
}
