package hpack

import (
	"bytes"
	"fmt"
	"reflect"

	nethpack "golang.org/x/net/http2/hpack"

	"github.com/quic-go/hxpack/hpack"
)

type collector struct {
	fields []hpack.HeaderField
	err    error
}

func (c *collector) OnHeaderDecoded(f hpack.HeaderField) { c.fields = append(c.fields, f) }
func (c *collector) OnDecodingCompleted()                {}
func (c *collector) OnDecodingError(err error)           { c.err = err }

func decode(data []byte) ([]hpack.HeaderField, error) {
	c := &collector{}
	d := hpack.NewDecoder(4096, c)
	d.SetMaxStringLength(4 << 10)
	if err := d.StartBlock(); err != nil {
		return nil, err
	}
	if err := d.DecodeFragment(data); err != nil {
		return nil, err
	}
	if err := d.EndBlock(); err != nil {
		return nil, err
	}
	return c.fields, c.err
}

func Fuzz(data []byte) int {
	fields, err := decode(data)
	if err != nil || len(fields) == 0 {
		return 0
	}

	buf := &bytes.Buffer{}
	encoder := nethpack.NewEncoder(buf)
	for _, hf := range fields {
		if err := encoder.WriteField(nethpack.HeaderField{
			Name:  hf.Name,
			Value: hf.Value,
		}); err != nil {
			panic(err)
		}
	}

	reencoded, err := decode(buf.Bytes())
	if err != nil {
		fmt.Printf("Fields: %#v\n", fields)
		panic(err)
	}
	if !reflect.DeepEqual(fields, reencoded) {
		fmt.Printf("%#v vs %#v", fields, reencoded)
		panic("unequal")
	}
	return 1
}
