package hpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"
)

type recordingListener struct {
	fields    []HeaderField
	completed int
	errs      []error
}

func (l *recordingListener) OnHeaderDecoded(f HeaderField) { l.fields = append(l.fields, f) }
func (l *recordingListener) OnDecodingCompleted()          { l.completed++ }
func (l *recordingListener) OnDecodingError(err error)     { l.errs = append(l.errs, err) }

func indexedField(index uint64) []byte {
	b := appendVarInt(nil, 7, index)
	b[0] |= 0x80
	return b
}

func appendStringLiteral(b []byte, s string) []byte {
	b = appendVarInt(b, 7, uint64(len(s)))
	return append(b, s...)
}

// literal header field with incremental indexing, literal name
func literalFieldIndexed(name, value string) []byte {
	b := []byte{0x40}
	b = appendStringLiteral(b, name)
	return appendStringLiteral(b, value)
}

// literal header field without indexing, name referenced by index
func literalFieldNameRef(index uint64, value string) []byte {
	b := appendVarInt(nil, 4, index)
	return appendStringLiteral(b, value)
}

func tableSizeUpdate(size uint64) []byte {
	b := appendVarInt(nil, 5, size)
	b[0] |= 0x20
	return b
}

func decodeBlock(t *testing.T, d *Decoder, data []byte) {
	t.Helper()
	require.NoError(t, d.StartBlock())
	require.NoError(t, d.DecodeFragment(data))
	require.NoError(t, d.EndBlock())
}

func TestDecoderStaticTable(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	var data []byte
	data = append(data, indexedField(2)...) // :method: GET
	data = append(data, literalFieldNameRef(31, "text/html")...)
	decodeBlock(t, d, data)

	require.Equal(t, []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: "content-type", Value: "text/html"},
	}, l.fields)
	require.Equal(t, 1, l.completed)
}

func TestDecoderLiteralFieldsDoNotMutateTable(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	// without indexing, never indexed: neither inserts into the table
	var data []byte
	data = append(data, literalFieldNameRef(31, "text/html")...)
	never := literalFieldNameRef(31, "image/png")
	never[0] |= 0x10
	data = append(data, never...)
	decodeBlock(t, d, data)
	require.Len(t, l.fields, 2)

	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(62)), ErrIndexOutOfRange)
}

func TestDecoderIncrementalIndexing(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	decodeBlock(t, d, literalFieldIndexed("foo", "bar"))
	require.Equal(t, []HeaderField{{Name: "foo", Value: "bar"}}, l.fields)

	// the inserted entry is addressable from the next block
	decodeBlock(t, d, indexedField(62))
	require.Equal(t, HeaderField{Name: "foo", Value: "bar"}, l.fields[1])
	require.Equal(t, 2, l.completed)
}

func TestDecoderDynamicIndexOrder(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	var data []byte
	data = append(data, literalFieldIndexed("foo", "bar")...)
	data = append(data, literalFieldIndexed("lorem", "ipsum")...)
	decodeBlock(t, d, data)

	// index 62 is the newest entry
	var refs []byte
	refs = append(refs, indexedField(62)...)
	refs = append(refs, indexedField(63)...)
	decodeBlock(t, d, refs)
	require.Equal(t, HeaderField{Name: "lorem", Value: "ipsum"}, l.fields[2])
	require.Equal(t, HeaderField{Name: "foo", Value: "bar"}, l.fields[3])
}

func TestDecoderDynamicNameReference(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	decodeBlock(t, d, literalFieldIndexed("foo", "bar"))
	decodeBlock(t, d, literalFieldNameRef(62, "baz"))
	require.Equal(t, HeaderField{Name: "foo", Value: "baz"}, l.fields[1])
}

func TestDecoderHuffmanEncodedLiteral(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	value := "https://www.example.com"
	data := appendVarInt(nil, 4, 31) // content-type
	huff := hpack.AppendHuffmanString(nil, value)
	lenBytes := appendVarInt(nil, 7, uint64(len(huff)))
	lenBytes[0] |= 0x80
	data = append(data, lenBytes...)
	data = append(data, huff...)
	decodeBlock(t, d, data)

	require.Equal(t, []HeaderField{{Name: "content-type", Value: value}}, l.fields)
}

func TestDecoderIndexZero(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(0)), ErrIndexOutOfRange)
	require.Equal(t, []error{ErrIndexOutOfRange}, l.errs)
}

func TestDecoderIndexBeyondTables(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(62)), ErrIndexOutOfRange)
}

func TestDecoderTableSizeUpdate(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	decodeBlock(t, d, literalFieldIndexed("foo", "bar"))

	// shrinking to 0 evicts everything
	var data []byte
	data = append(data, tableSizeUpdate(0)...)
	data = append(data, tableSizeUpdate(100)...)
	data = append(data, indexedField(2)...)
	decodeBlock(t, d, data)

	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(62)), ErrIndexOutOfRange)
}

func TestDecoderMisplacedTableSizeUpdate(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	var data []byte
	data = append(data, indexedField(2)...)
	data = append(data, tableSizeUpdate(0)...)
	require.NoError(t, d.StartBlock())
	err := d.DecodeFragment(data)
	require.EqualError(t, err, "dynamic table size update not at beginning of block")
}

func TestDecoderTooManyTableSizeUpdates(t *testing.T) {
	// two updates (intermediate minimum, then final value) are the most a
	// settings change can require; a third is an error
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	var data []byte
	data = append(data, tableSizeUpdate(5)...)
	data = append(data, tableSizeUpdate(10)...)
	data = append(data, tableSizeUpdate(15)...)
	require.NoError(t, d.StartBlock())
	err := d.DecodeFragment(data)
	require.EqualError(t, err, "too many dynamic table size updates")
	require.Equal(t, []error{err}, l.errs)

	// the counter is per block: two updates per block stay legal
	l = &recordingListener{}
	d = NewDecoder(4096, l)
	for i := 0; i < 2; i++ {
		var block []byte
		block = append(block, tableSizeUpdate(5)...)
		block = append(block, tableSizeUpdate(10)...)
		block = append(block, indexedField(2)...)
		decodeBlock(t, d, block)
	}
	require.Empty(t, l.errs)
	require.Equal(t, 2, l.completed)
}

func TestDecoderBlockTooLarge(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	d.SetMaxBlockLength(8)

	// the cap counts compressed bytes across fragments
	data := literalFieldIndexed("foo", "bar") // 9 bytes
	require.NoError(t, d.StartBlock())
	require.NoError(t, d.DecodeFragment(data[:6]))
	require.ErrorIs(t, d.DecodeFragment(data[6:]), ErrBlockTooLarge)
	require.Equal(t, []error{ErrBlockTooLarge}, l.errs)

	// a block within the cap passes, counting from zero again
	l = &recordingListener{}
	d = NewDecoder(4096, l)
	d.SetMaxBlockLength(10)
	decodeBlock(t, d, data)
	decodeBlock(t, d, data)
	require.Empty(t, l.errs)
}

func TestDecoderTableSizeUpdateExceedsSetting(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(100, l)
	require.NoError(t, d.StartBlock())
	require.NoError(t, d.DecodeFragment(tableSizeUpdate(100)))

	d = NewDecoder(100, &recordingListener{})
	require.NoError(t, d.StartBlock())
	err := d.DecodeFragment(tableSizeUpdate(101))
	require.EqualError(t, err, "dynamic table size update exceeds setting")
}

func TestDecoderSettingShrinksTable(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	decodeBlock(t, d, literalFieldIndexed("foo", "bar")) // size 38

	d.ApplyHeaderTableSizeSetting(37)
	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(62)), ErrIndexOutOfRange)
}

func TestDecoderFragmentBoundaries(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	var data []byte
	data = append(data, indexedField(2)...)
	data = append(data, literalFieldIndexed("foo", "bar")...)
	data = append(data, literalFieldNameRef(31, "text/html")...)

	require.NoError(t, d.StartBlock())
	for i := range data {
		require.NoError(t, d.DecodeFragment(data[i:i+1]))
	}
	require.NoError(t, d.EndBlock())
	require.Equal(t, []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: "foo", Value: "bar"},
		{Name: "content-type", Value: "text/html"},
	}, l.fields)
}

func TestDecoderTruncatedEntry(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	data := literalFieldIndexed("foo", "bar")
	require.NoError(t, d.StartBlock())
	require.NoError(t, d.DecodeFragment(data[:len(data)-1]))
	require.Empty(t, l.fields)
	require.ErrorIs(t, d.EndBlock(), ErrTruncatedEntry)
	require.Equal(t, []error{ErrTruncatedEntry}, l.errs)
}

func TestDecoderStringTooLarge(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	d.SetMaxStringLength(4)

	// the length check fires before the string bytes arrive
	data := []byte{0x40}
	data = append(data, appendVarInt(nil, 7, 1000)...)
	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(data), ErrStringTooLarge)
}

func TestDecoderErrorLatch(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)
	require.NoError(t, d.StartBlock())
	require.ErrorIs(t, d.DecodeFragment(indexedField(0)), ErrIndexOutOfRange)

	require.ErrorIs(t, d.DecodeFragment(indexedField(2)), ErrIndexOutOfRange)
	require.ErrorIs(t, d.EndBlock(), ErrIndexOutOfRange)
	require.ErrorIs(t, d.StartBlock(), ErrIndexOutOfRange)
	require.Len(t, l.errs, 1)
	require.Zero(t, l.completed)
}

func TestDecoderBlockLifecycle(t *testing.T) {
	l := &recordingListener{}
	d := NewDecoder(4096, l)

	// lifecycle misuse is rejected without latching the decoder
	require.Error(t, d.DecodeFragment(indexedField(2)))
	require.Error(t, d.EndBlock())
	require.NoError(t, d.StartBlock())
	require.Error(t, d.StartBlock())
	require.NoError(t, d.EndBlock())
	require.Empty(t, l.errs)
	require.Equal(t, 1, l.completed)
}

func BenchmarkDecoder(b *testing.B) {
	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/index.html"},
		{Name: "user-agent", Value: "quic-go HTTP/2"},
		{Name: "accept-encoding", Value: "gzip, deflate, br"},
	}
	var buf bytes.Buffer
	e := hpack.NewEncoder(&buf)
	for _, f := range fields {
		if err := e.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			b.Fatal(err)
		}
	}
	data := buf.Bytes()

	d := NewDecoder(4096, discardingListener{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.StartBlock(); err != nil {
			b.Fatal(err)
		}
		if err := d.DecodeFragment(data); err != nil {
			b.Fatal(err)
		}
		if err := d.EndBlock(); err != nil {
			b.Fatal(err)
		}
	}
}

type discardingListener struct{}

func (discardingListener) OnHeaderDecoded(HeaderField) {}
func (discardingListener) OnDecodingCompleted()        {}
func (discardingListener) OnDecodingError(error)       {}
