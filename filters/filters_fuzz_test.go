package filters

import (
	"context"
	"testing"

	"github.com/wudi/pdfstruct/ir/raw"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte("some compressed data"), "FlateDecode")
	f.Add([]byte("some ascii85 data"), "ASCII85Decode")
	f.Add([]byte("some hex data"), "ASCIIHexDecode")
	f.Add([]byte{2, 'a', 'b', 'c', 254, 'z', 128}, "RunLengthDecode")
	f.Add([]byte{0x80, 0x00, 0x10}, "CCITTFaxDecode")

	f.Fuzz(func(t *testing.T, data []byte, filterName string) {
		p := NewStandardPipeline(Limits{MaxDecompressedSize: 1024 * 1024, MaxDecodeRatio: 100})
		if p.findDecoder(filterName) == nil {
			return
		}
		out, err := p.Decode(context.Background(), data, []string{filterName}, []raw.Dictionary{nil})
		if err == nil && int64(len(out)) > 1024*1024 {
			t.Fatalf("output %d bytes exceeds the configured bound", len(out))
		}
	})
}
