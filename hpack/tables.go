package hpack

// The dynamic table, see section 2.3.2 of RFC 7541. Entries are held
// oldest first; on the wire the newest entry has the lowest index.
type dynamicTable struct {
	entries  []HeaderField
	size     uint64
	capacity uint64
}

// add inserts an entry, evicting from the oldest end until the table fits
// its capacity again. An entry larger than the capacity empties the table;
// that is not an error, see section 4.4 of RFC 7541.
func (t *dynamicTable) add(f HeaderField) {
	t.size += f.size()
	t.entries = append(t.entries, f)
	t.evict()
}

func (t *dynamicTable) setCapacity(capacity uint64) {
	t.capacity = capacity
	t.evict()
}

func (t *dynamicTable) evict() {
	for t.size > t.capacity && len(t.entries) > 0 {
		evicted := t.entries[0]
		t.entries = t.entries[1:]
		t.size -= evicted.size()
	}
}

// get returns the entry with the given dynamic table index.
// Index 1 is the most recently inserted entry.
func (t *dynamicTable) get(i uint64) (HeaderField, bool) {
	if i < 1 || i > uint64(len(t.entries)) {
		return HeaderField{}, false
	}
	return t.entries[uint64(len(t.entries))-i], true
}
