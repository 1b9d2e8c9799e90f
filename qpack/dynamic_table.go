package qpack

import "errors"

// A DynamicTableView provides read access to the dynamic table.
//
// Entries are identified by their absolute index: a 1-based counter
// assigned at insertion time and never reused. The table is written by the
// encoder stream receiver, which is external to this package; the decoders
// here only ever read it.
type DynamicTableView interface {
	// Lookup returns the entry with the given absolute index. It returns
	// false if the entry has been evicted, or hasn't been inserted yet.
	Lookup(absoluteIndex uint64) (HeaderField, bool)
	// InsertCount returns the total number of entries inserted so far.
	InsertCount() uint64
	// MaxEntries returns the maximum number of entries the table can hold
	// (the maximum table capacity divided by 32). It bounds the wraparound
	// period of the Encoded Required Insert Count.
	MaxEntries() uint64
}

var errEntryTooLarge = errors.New("entry larger than dynamic table capacity")

// A DynamicTable is the connection-scoped table of previously seen header
// fields. Insertions and capacity changes are driven by the peer's encoder
// stream; header block decoding only reads it.
//
// It is not safe for concurrent use. The connection must sequence encoder
// stream processing and header block decoding, see section 2.2 of RFC 9204.
type DynamicTable struct {
	maxCapacity uint64
	capacity    uint64

	entries []HeaderField // live entries, oldest first
	dropped uint64        // number of evicted entries
	size    uint64
}

var _ DynamicTableView = &DynamicTable{}

// NewDynamicTable returns an empty dynamic table.
// maxCapacity is the value of the SETTINGS_QPACK_MAX_TABLE_CAPACITY setting.
// The capacity starts at zero until the encoder sets it.
func NewDynamicTable(maxCapacity uint64) *DynamicTable {
	return &DynamicTable{maxCapacity: maxCapacity}
}

// SetCapacity changes the table capacity, evicting entries if it shrinks.
// It returns an error if the new capacity exceeds the maximum announced in
// the settings.
func (t *DynamicTable) SetCapacity(capacity uint64) error {
	if capacity > t.maxCapacity {
		return errors.New("dynamic table capacity exceeds maximum")
	}
	t.capacity = capacity
	t.evict()
	return nil
}

// Insert adds an entry, evicting from the oldest end until it fits.
// An entry larger than the table capacity is an encoder stream error.
func (t *DynamicTable) Insert(f HeaderField) error {
	if f.size() > t.capacity {
		return errEntryTooLarge
	}
	t.size += f.size()
	t.entries = append(t.entries, f)
	t.evict()
	return nil
}

func (t *DynamicTable) evict() {
	for t.size > t.capacity {
		evicted := t.entries[0]
		t.entries = t.entries[1:]
		t.dropped++
		t.size -= evicted.size()
	}
}

// Lookup returns the entry with the given absolute (1-based) index.
func (t *DynamicTable) Lookup(absoluteIndex uint64) (HeaderField, bool) {
	if absoluteIndex <= t.dropped || absoluteIndex > t.InsertCount() {
		return HeaderField{}, false
	}
	return t.entries[absoluteIndex-t.dropped-1], true
}

// InsertCount returns the total number of insertions so far,
// including entries that have since been evicted.
func (t *DynamicTable) InsertCount() uint64 {
	return t.dropped + uint64(len(t.entries))
}

// MaxEntries returns the maximum number of entries, see section 4.5.1.1 of
// RFC 9204.
func (t *DynamicTable) MaxEntries() uint64 {
	return t.maxCapacity / 32
}

// Size returns the sum of the sizes of the live entries.
func (t *DynamicTable) Size() uint64 { return t.size }

// Capacity returns the current table capacity.
func (t *DynamicTable) Capacity() uint64 { return t.capacity }
