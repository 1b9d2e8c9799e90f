package qpack

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/quic-go/hxpack/qpack"
)

type collector struct {
	headers *qpack.DecodedHeaders
	err     error
}

func (c *collector) OnHeadersDecoded(h qpack.DecodedHeaders) { c.headers = &h }
func (c *collector) OnHeaderDecodingError(err error)         { c.err = err }

func decode(data []byte) (*qpack.DecodedHeaders, error) {
	c := &collector{}
	acc := qpack.NewDecodedHeadersAccumulator(0, nil, nil, c, 0)
	acc.SetMaxStringLength(4 << 10)
	if err := acc.Decode(data); err != nil {
		return nil, err
	}
	if err := acc.EndHeaderBlock(); err != nil {
		return nil, err
	}
	if acc.Blocked() {
		return nil, nil
	}
	return c.headers, c.err
}

func Fuzz(data []byte) int {
	headers, err := decode(data)
	if err != nil || headers == nil || len(headers.Fields) == 0 {
		return 0
	}

	buf := &bytes.Buffer{}
	encoder := qpack.NewEncoder(buf)
	for _, hf := range headers.Fields {
		if err := encoder.WriteField(hf); err != nil {
			panic(err)
		}
	}
	if err := encoder.Close(); err != nil {
		panic(err)
	}

	reencoded, err := decode(buf.Bytes())
	if err != nil || reencoded == nil {
		fmt.Printf("Fields: %#v\n", headers.Fields)
		panic(err)
	}
	if !reflect.DeepEqual(headers.Fields, reencoded.Fields) {
		fmt.Printf("%#v vs %#v", headers.Fields, reencoded.Fields)
		panic("unequal")
	}
	return 1
}
