package hpack

// A HeaderField is a name-value pair. Both the name and value are
// treated as opaque sequences of octets.
type HeaderField struct {
	Name  string
	Value string
}

// size is the table cost of the field, see section 4.1 of RFC 7541.
func (hf HeaderField) size() uint64 {
	return uint64(len(hf.Name)) + uint64(len(hf.Value)) + 32
}
