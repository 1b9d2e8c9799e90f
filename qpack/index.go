package qpack

import "math"

// Index arithmetic for the three index spaces of RFC 9204.
//
// Absolute indices are 1-based throughout this package: the first entry
// ever inserted into the dynamic table has absolute index 1, and an index
// of 0 is always invalid. The conversion formulas below are the 0-based
// ones from sections 3.2.4 through 3.2.6 of the RFC, shifted by one.

// decodeRequiredInsertCount reconstructs the Required Insert Count from its
// wrapped encoding in the Header Data Prefix, see section 4.5.1.1 of
// RFC 9204. It is a pure function: for every valid input it returns the one
// correct value, and for every invalid input it returns an error, never a
// silently wrong or wrapped result.
func decodeRequiredInsertCount(encoded, maxEntries, totalInserts uint64) (uint64, error) {
	if encoded == 0 {
		return 0, nil
	}
	if maxEntries == 0 {
		// no dynamic table, so any reference to it is invalid
		return 0, decodingError{ErrIndexOutOfRange}
	}
	fullRange := 2 * maxEntries
	if encoded > fullRange {
		return 0, decodingError{ErrIndexOutOfRange}
	}
	if totalInserts > math.MaxUint64-maxEntries {
		return 0, decodingError{ErrArithmeticOverflow}
	}
	maxValue := totalInserts + maxEntries
	maxWrapped := (maxValue / fullRange) * fullRange
	if maxWrapped > math.MaxUint64-encoded {
		return 0, decodingError{ErrArithmeticOverflow}
	}
	requiredInsertCount := maxWrapped + encoded - 1
	if requiredInsertCount > maxValue {
		if requiredInsertCount <= fullRange {
			return 0, decodingError{ErrArithmeticOverflow}
		}
		requiredInsertCount -= fullRange
	}
	if requiredInsertCount == 0 {
		// value of 0 must be encoded as 0, see section 4.5.1.1 of RFC 9204
		return 0, decodingError{ErrRequiredInsertCountMismatch}
	}
	return requiredInsertCount, nil
}

// relativeToAbsolute converts a request stream relative index into an
// absolute index. Relative index 0 refers to the newest entry before the
// Base. Note that relative indexing on the encoder stream counts from the
// insert count instead of the Base; the two must not be conflated.
func relativeToAbsolute(base, relativeIndex uint64) (uint64, error) {
	if relativeIndex >= base {
		return 0, decodingError{ErrIndexOutOfRange}
	}
	return base - relativeIndex, nil
}

// postBaseToAbsolute converts a post-base index into an absolute index.
// Post-base index 0 refers to the first entry inserted after the Base.
func postBaseToAbsolute(base, postBaseIndex uint64) (uint64, error) {
	if postBaseIndex >= math.MaxUint64-base {
		return 0, decodingError{ErrArithmeticOverflow}
	}
	return base + postBaseIndex + 1, nil
}
