package main

import (
	"bytes"
	"fmt"

	"github.com/quic-go/hxpack/qpack"
)

type printingVisitor struct{ streamID uint64 }

func (v printingVisitor) OnHeadersDecoded(h qpack.DecodedHeaders) {
	fmt.Printf("\nHeaders on stream %d (%d bytes compressed, %d uncompressed):\n",
		v.streamID, h.CompressedSize, h.UncompressedSize)
	for _, hf := range h.Fields {
		fmt.Printf("%#v\n", hf)
	}
}

func (v printingVisitor) OnHeaderDecodingError(err error) {
	fmt.Printf("stream %d: %v\n", v.streamID, err)
}

func main() {
	table := qpack.NewDynamicTable(4096)
	if err := table.SetCapacity(4096); err != nil {
		panic(err)
	}
	sender := qpack.NewDecoderStreamSender(func(p []byte) {
		fmt.Printf("decoder stream -> %#v\n", p)
	})

	// a request header block using only the static table
	var block bytes.Buffer
	encoder := qpack.NewEncoder(&block)
	for _, hf := range []qpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: ":authority", Value: "quic-go.net"},
		{Name: "user-agent", Value: "hxpack example"},
	} {
		if err := encoder.WriteField(hf); err != nil {
			panic(err)
		}
	}
	acc := qpack.NewDecodedHeadersAccumulator(0, table, sender, printingVisitor{streamID: 0}, 0)
	if err := acc.Decode(block.Bytes()); err != nil {
		panic(err)
	}
	if err := acc.EndHeaderBlock(); err != nil {
		panic(err)
	}

	// a block referencing a dynamic table entry the encoder has not
	// delivered yet: Required Insert Count 1, Base 1, then the newest
	// entry by relative index 0
	acc = qpack.NewDecodedHeadersAccumulator(4, table, sender, printingVisitor{streamID: 4}, 0)
	if err := acc.Decode([]byte{0x02, 0x00, 0x80}); err != nil {
		panic(err)
	}
	if err := acc.EndHeaderBlock(); err != nil {
		panic(err)
	}
	fmt.Printf("\nstream 4 blocked: %t\n", acc.Blocked())

	// the insertion arrives on the encoder stream
	if err := table.Insert(qpack.HeaderField{Name: "x-request-id", Value: "17"}); err != nil {
		panic(err)
	}
	sender.SendInsertCountIncrement(1)
	if err := acc.InsertCountIncreased(); err != nil {
		panic(err)
	}
}
