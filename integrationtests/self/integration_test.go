package self

import (
	"bytes"

	"golang.org/x/exp/rand"
	nethpack "golang.org/x/net/http2/hpack"

	"github.com/quic-go/hxpack/hpack"
	"github.com/quic-go/hxpack/qpack"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const charset = "abcdefghijklmnopqrstuvwxyz0123456789-"

func randomString(l int) string {
	s := make([]byte, l)
	for i := range s {
		s[i] = charset[rand.Intn(len(charset))]
	}
	return string(s)
}

func randomHeaderFields(n int) []qpack.HeaderField {
	hfs := make([]qpack.HeaderField, 0, n)
	for i := 0; i < n; i++ {
		if rand.Intn(2) == 0 {
			hfs = append(hfs, staticTable[rand.Intn(len(staticTable))])
			continue
		}
		hfs = append(hfs, qpack.HeaderField{
			Name:  "x-" + randomString(1+rand.Intn(15)),
			Value: randomString(rand.Intn(30)),
		})
	}
	return hfs
}

// feeds data in randomly sized chunks
func chunks(data []byte) [][]byte {
	var cs [][]byte
	for len(data) > 0 {
		l := 1 + rand.Intn(len(data))
		cs = append(cs, data[:l])
		data = data[l:]
	}
	return cs
}

type blockCollector struct {
	fields    []hpack.HeaderField
	completed int
	errs      []error
}

func (c *blockCollector) OnHeaderDecoded(f hpack.HeaderField) { c.fields = append(c.fields, f) }
func (c *blockCollector) OnDecodingCompleted()                { c.completed++ }
func (c *blockCollector) OnDecodingError(err error)           { c.errs = append(c.errs, err) }

type headersCollector struct {
	headers []qpack.DecodedHeaders
	errs    []error
}

func (c *headersCollector) OnHeadersDecoded(h qpack.DecodedHeaders) {
	c.headers = append(c.headers, h)
}
func (c *headersCollector) OnHeaderDecodingError(err error) { c.errs = append(c.errs, err) }

var _ = Describe("HPACK", func() {
	It("decodes blocks encoded by golang.org/x/net/http2/hpack", func() {
		collector := &blockCollector{}
		decoder := hpack.NewDecoder(4096, collector)

		var output bytes.Buffer
		encoder := nethpack.NewEncoder(&output)

		var expected []hpack.HeaderField
		// repeated fields exercise the dynamic table across blocks
		repeated := randomHeaderFields(5)
		for block := 0; block < 20; block++ {
			output.Reset()
			hfs := append(randomHeaderFields(3+rand.Intn(10)), repeated...)
			for _, hf := range hfs {
				Expect(encoder.WriteField(nethpack.HeaderField{
					Name:  hf.Name,
					Value: hf.Value,
				})).To(Succeed())
				expected = append(expected, hpack.HeaderField(hf))
			}

			Expect(decoder.StartBlock()).To(Succeed())
			for _, c := range chunks(output.Bytes()) {
				Expect(decoder.DecodeFragment(c)).To(Succeed())
			}
			Expect(decoder.EndBlock()).To(Succeed())
		}

		Expect(collector.errs).To(BeEmpty())
		Expect(collector.completed).To(Equal(20))
		Expect(collector.fields).To(Equal(expected))
	})
})

var _ = Describe("QPACK", func() {
	It("decodes blocks produced by the static-table encoder", func() {
		var output bytes.Buffer
		encoder := qpack.NewEncoder(&output)

		for i := 0; i < 10; i++ {
			output.Reset()
			hfs := randomHeaderFields(1 + rand.Intn(20))
			var uncompressed uint64
			for _, hf := range hfs {
				Expect(encoder.WriteField(hf)).To(Succeed())
				uncompressed += uint64(len(hf.Name) + len(hf.Value))
			}
			Expect(encoder.Close()).To(Succeed())

			collector := &headersCollector{}
			acc := qpack.NewDecodedHeadersAccumulator(uint64(i), nil, nil, collector, 0)
			for _, c := range chunks(output.Bytes()) {
				Expect(acc.Decode(c)).To(Succeed())
			}
			Expect(acc.EndHeaderBlock()).To(Succeed())

			Expect(collector.errs).To(BeEmpty())
			Expect(collector.headers).To(HaveLen(1))
			headers := collector.headers[0]
			Expect(headers.Fields).To(Equal(hfs))
			Expect(headers.CompressedSize).To(BeEquivalentTo(output.Len()))
			Expect(headers.UncompressedSize).To(Equal(uncompressed))
		}
	})

	It("suspends a block that references a missing insertion", func() {
		table := qpack.NewDynamicTable(4096)
		Expect(table.SetCapacity(4096)).To(Succeed())

		var feedback bytes.Buffer
		sender := qpack.NewDecoderStreamSender(func(p []byte) {
			feedback.Write(p)
		})

		collector := &headersCollector{}
		const streamID = 4
		acc := qpack.NewDecodedHeadersAccumulator(streamID, table, sender, collector, 0)

		// Required Insert Count 1, Base 1, then the newest entry by
		// relative index 0
		block := []byte{
			byte(1%(2*table.MaxEntries()) + 1),
			0x00,
			0x80,
		}
		Expect(acc.Decode(block)).To(Succeed())
		Expect(acc.EndHeaderBlock()).To(Succeed())
		Expect(acc.Blocked()).To(BeTrue())
		Expect(collector.headers).To(BeEmpty())

		Expect(table.Insert(qpack.HeaderField{Name: "foo", Value: "bar"})).To(Succeed())
		Expect(acc.InsertCountIncreased()).To(Succeed())
		Expect(acc.Blocked()).To(BeFalse())

		Expect(collector.errs).To(BeEmpty())
		Expect(collector.headers).To(HaveLen(1))
		Expect(collector.headers[0].Fields).To(Equal([]qpack.HeaderField{{Name: "foo", Value: "bar"}}))
		// the completed block is acknowledged on the decoder stream
		Expect(feedback.Bytes()).To(Equal([]byte{0x80 | streamID}))
	})
})

var _ = It("rejects header lists exceeding the configured limit", func() {
	var output bytes.Buffer
	encoder := qpack.NewEncoder(&output)
	hf := qpack.HeaderField{Name: "x-" + randomString(10), Value: randomString(50)}
	Expect(encoder.WriteField(hf)).To(Succeed())

	collector := &headersCollector{}
	acc := qpack.NewDecodedHeadersAccumulator(0, nil, nil, collector, 10)
	err := acc.Decode(output.Bytes())
	Expect(err).To(MatchError(qpack.ErrHeaderListTooLarge))
	Expect(collector.errs).To(Equal([]error{qpack.ErrHeaderListTooLarge}))
})
