package hpack

import "golang.org/x/net/http2/hpack"

// parseEntry decodes one entry from d.pending. The entry kinds are
// distinguished by the high bits of the first byte; together they cover
// every possible byte, see section 6 of RFC 7541. d.pending is only
// consumed once the whole entry has been parsed, so a fragment boundary
// can fall anywhere.
func (d *Decoder) parseEntry() error {
	switch b := d.pending[0]; {
	case b&0x80 > 0: // 1xxxxxxx: indexed header field
		return d.parseIndexedField()
	case b&0xc0 == 0x40: // 01xxxxxx: literal with incremental indexing
		return d.parseLiteralField(6, true)
	case b&0xe0 == 0x20: // 001xxxxx: dynamic table size update
		return d.parseTableSizeUpdate()
	default: // 0000xxxx / 0001xxxx: literal without indexing / never indexed
		return d.parseLiteralField(4, false)
	}
}

func (d *Decoder) parseIndexedField() error {
	index, rest, err := readVarInt(7, d.pending)
	if err != nil {
		return err
	}
	hf, ok := d.lookup(index)
	if !ok {
		return ErrIndexOutOfRange
	}
	d.pending = rest
	d.sawField = true
	d.listener.OnHeaderDecoded(hf)
	return nil
}

// parseLiteralField decodes the three literal entry kinds, which share a
// layout: a name index (0 meaning a literal name string follows) with the
// given prefix length, then the value string. The incrementally indexed
// kind additionally inserts the field into the dynamic table.
func (d *Decoder) parseLiteralField(prefix byte, addToTable bool) error {
	index, rest, err := readVarInt(prefix, d.pending)
	if err != nil {
		return err
	}
	var hf HeaderField
	if index == 0 {
		hf.Name, rest, err = d.parseString(rest)
		if err != nil {
			return err
		}
	} else {
		ref, ok := d.lookup(index)
		if !ok {
			return ErrIndexOutOfRange
		}
		hf.Name = ref.Name
	}
	hf.Value, rest, err = d.parseString(rest)
	if err != nil {
		return err
	}
	d.pending = rest
	d.sawField = true
	if addToTable {
		d.table.add(hf)
	}
	d.listener.OnHeaderDecoded(hf)
	return nil
}

func (d *Decoder) parseTableSizeUpdate() error {
	size, rest, err := readVarInt(5, d.pending)
	if err != nil {
		return err
	}
	if d.sawField {
		return errMisplacedSizeUpdate
	}
	// A settings change requires at most two updates: the minimum size
	// between the old and the new value, then the new value.
	if d.sizeUpdates == 2 {
		return errTooManySizeUpdates
	}
	if size > d.maxTableCapacity {
		return errSizeUpdateTooLarge
	}
	d.pending = rest
	d.sizeUpdates++
	d.table.setCapacity(size)
	return nil
}

// parseString reads a length-prefixed, possibly Huffman-encoded string
// literal, see section 5.2 of RFC 7541. The length check against the
// configured maximum happens as soon as the length is known, before the
// string bytes have arrived.
func (d *Decoder) parseString(b []byte) (string, []byte, error) {
	if len(b) == 0 {
		return "", nil, errNeedMore
	}
	usesHuffman := b[0]&0x80 > 0
	l, rest, err := readVarInt(7, b)
	if err != nil {
		return "", nil, err
	}
	if d.maxStringLength > 0 && l > d.maxStringLength {
		return "", nil, ErrStringTooLarge
	}
	if uint64(len(rest)) < l {
		return "", nil, errNeedMore
	}
	var s string
	if usesHuffman {
		s, err = hpack.HuffmanDecodeToString(rest[:l])
		if err != nil {
			return "", nil, err
		}
	} else {
		s = string(rest[:l])
	}
	return s, rest[l:], nil
}
