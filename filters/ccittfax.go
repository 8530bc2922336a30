package filters

import (
	"bytes"
	"context"
	"io"

	"golang.org/x/image/ccitt"

	"github.com/wudi/pdfstruct/ir/raw"
)

// ccittFaxDecoder expands Group 3 and Group 4 fax data. /K below zero selects
// Group 4; /Rows of zero lets the reader find the image height itself.
type ccittFaxDecoder struct{}

func (ccittFaxDecoder) Name() string { return "CCITTFaxDecode" }
func NewCCITTFaxDecoder() Decoder    { return ccittFaxDecoder{} }

func (d ccittFaxDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	return readAll(d, in, params)
}

func (ccittFaxDecoder) Reader(in []byte, params raw.Dictionary) (io.Reader, error) {
	columns := paramInt(params, "Columns", 1728)
	rows := paramInt(params, "Rows", 0)
	sf := ccitt.Group3
	if paramInt(params, "K", 0) < 0 {
		sf = ccitt.Group4
	}
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	opts := &ccitt.Options{Invert: paramBool(params, "BlackIs1", false)}
	return ccitt.NewReader(bytes.NewReader(in), ccitt.MSB, sf, columns, rows, opts), nil
}

func (ccittFaxDecoder) Finish(out []byte, params raw.Dictionary) ([]byte, error) { return out, nil }

func paramBool(params raw.Dictionary, key string, def bool) bool {
	if params == nil {
		return def
	}
	o, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if b, ok := o.(raw.Boolean); ok {
		return b.Value()
	}
	return def
}
