package filters

import (
	"bufio"
	"bytes"
	"compress/flate"
	stdlzw "compress/lzw"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/recovery"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params raw.Dictionary) ([]byte, error)
}

// streamDecoder is implemented by decoders that can decompress incrementally,
// which lets the pipeline stop as soon as an output bound is crossed.
type streamDecoder interface {
	Decoder
	Reader(input []byte, params raw.Dictionary) (io.Reader, error)
	Finish(output []byte, params raw.Dictionary) ([]byte, error)
}

// Service is the decode collaborator the structural parser relies on for
// xref streams and object streams.
type Service interface {
	Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error)
	DecodeWithLimits(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary, maxOutput int64, maxRatio int) ([]byte, error)
}

type Pipeline struct {
	decoders []Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

// NewStandardPipeline registers every decoder the structural parser needs.
func NewStandardPipeline(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
		NewRunLengthDecoder(),
		NewCCITTFaxDecoder(),
	}, limits)
}

// Limits bounds decoding. Zero disables a bound. MaxDecodeRatio compares the
// final output size with the size of the encoded input.
type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeRatio      int
}

// UnsupportedError reports a filter the pipeline has no decoder for.
type UnsupportedError struct {
	Filter string
}

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

var (
	ErrOutputLimit = errors.New("decoded size exceeds limit")
	ErrRatioLimit  = errors.New("decode ratio exceeds limit")
)

func (p *Pipeline) findDecoder(name string) Decoder {
	name = canonicalName(name)
	for _, d := range p.decoders {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// canonicalName maps the abbreviations allowed in inline images and written
// by some producers in stream dictionaries.
func canonicalName(name string) string {
	switch name {
	case "Fl":
		return "FlateDecode"
	case "LZW":
		return "LZWDecode"
	case "A85":
		return "ASCII85Decode"
	case "AHx":
		return "ASCIIHexDecode"
	case "RL":
		return "RunLengthDecode"
	case "CCF":
		return "CCITTFaxDecode"
	}
	return name
}

func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary) ([]byte, error) {
	return p.DecodeWithLimits(ctx, input, filterNames, params, p.limits.MaxDecompressedSize, p.limits.MaxDecodeRatio)
}

// DecodeWithLimits runs the filters in order, failing with a resource error
// once the output passes maxOutput bytes or maxRatio times the input size.
func (p *Pipeline) DecodeWithLimits(ctx context.Context, input []byte, filterNames []string, params []raw.Dictionary, maxOutput int64, maxRatio int) ([]byte, error) {
	bound, boundErr := outputBound(int64(len(input)), maxOutput, maxRatio)
	data := input
	for i, name := range filterNames {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dec := p.findDecoder(name)
		if dec == nil {
			return nil, UnsupportedError{Filter: name}
		}
		var param raw.Dictionary
		if i < len(params) {
			param = params[i]
		}
		out, err := decodeBounded(ctx, dec, data, param, bound)
		if err != nil {
			if errors.Is(err, errBound) {
				return nil, recovery.ResourceExceeded("decode "+name, -1, boundErr)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		data = out
	}
	return data, nil
}

var errBound = errors.New("output bound reached")

// outputBound returns the smaller of the absolute and ratio bounds, and the
// error that explains it. -1 means unbounded.
func outputBound(inputLen, maxOutput int64, maxRatio int) (int64, error) {
	bound, why := int64(-1), error(nil)
	if maxOutput > 0 {
		bound, why = maxOutput, fmt.Errorf("%w: %d bytes", ErrOutputLimit, maxOutput)
	}
	if maxRatio > 0 {
		r := inputLen * int64(maxRatio)
		if bound < 0 || r < bound {
			bound, why = r, fmt.Errorf("%w: %d:1", ErrRatioLimit, maxRatio)
		}
	}
	return bound, why
}

func decodeBounded(ctx context.Context, dec Decoder, in []byte, params raw.Dictionary, bound int64) ([]byte, error) {
	sd, ok := dec.(streamDecoder)
	if !ok {
		out, err := dec.Decode(ctx, in, params)
		if err != nil {
			return nil, err
		}
		if bound >= 0 && int64(len(out)) > bound {
			return nil, errBound
		}
		return out, nil
	}
	r, err := sd.Reader(in, params)
	if err != nil {
		return nil, err
	}
	out, err := readBounded(r, bound)
	if err != nil {
		return nil, err
	}
	return sd.Finish(out, params)
}

// readBounded reads r to the end. Truncated compressed data yields what was
// decoded before the break, which matches how viewers treat damaged streams.
func readBounded(r io.Reader, bound int64) ([]byte, error) {
	var buf bytes.Buffer
	src := r
	if bound >= 0 {
		src = io.LimitReader(r, bound+1)
	}
	_, err := io.Copy(&buf, src)
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
	if bound >= 0 && int64(buf.Len()) > bound {
		return nil, errBound
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if buf.Len() == 0 {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func readAll(d streamDecoder, in []byte, params raw.Dictionary) ([]byte, error) {
	r, err := d.Reader(in, params)
	if err != nil {
		return nil, err
	}
	out, err := readBounded(r, -1)
	if err != nil {
		return nil, err
	}
	return d.Finish(out, params)
}

type Registry struct{ decoders map[string]Decoder }

func (r *Registry) Register(d Decoder) {
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
}
func (r *Registry) Get(name string) (Decoder, bool) {
	d, ok := r.decoders[canonicalName(name)]
	return d, ok
}

// Pipeline builds a pipeline from every registered decoder.
func (r *Registry) Pipeline(limits Limits) *Pipeline {
	decs := make([]Decoder, 0, len(r.decoders))
	for _, d := range r.decoders {
		decs = append(decs, d)
	}
	return NewPipeline(decs, limits)
}

// flateDecoder accepts zlib-wrapped data, as PDF writers emit it, and bare deflate.
type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }
func NewFlateDecoder() Decoder    { return flateDecoder{} }

func (d flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	return readAll(d, in, params)
}

func (flateDecoder) Reader(in []byte, params raw.Dictionary) (io.Reader, error) {
	if hasZlibHeader(in) {
		in = in[2:]
	}
	return flate.NewReader(bytes.NewReader(in)), nil
}

func (flateDecoder) Finish(out []byte, params raw.Dictionary) ([]byte, error) {
	return applyPredictor(out, params)
}

func hasZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0 && flg&0x20 == 0
}

// lzwDecoder honors /EarlyChange, which defaults to 1 (TIFF-style code widening).
type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }
func NewLZWDecoder() Decoder    { return lzwDecoder{} }

func (d lzwDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	return readAll(d, in, params)
}

func (lzwDecoder) Reader(in []byte, params raw.Dictionary) (io.Reader, error) {
	if paramInt(params, "EarlyChange", 1) == 0 {
		return stdlzw.NewReader(bytes.NewReader(in), stdlzw.MSB, 8), nil
	}
	return tifflzw.NewReader(bytes.NewReader(in), tifflzw.MSB, 8), nil
}

func (lzwDecoder) Finish(out []byte, params raw.Dictionary) ([]byte, error) {
	return applyPredictor(out, params)
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }
func (ascii85Decoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)*4+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }
func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	if i := bytes.IndexByte(in, '>'); i >= 0 {
		in = in[:i]
	}
	digits := make([]byte, 0, len(in)+1)
	for _, c := range in {
		switch c {
		case ' ', '\t', '\r', '\n', '\f', 0:
			continue
		}
		digits = append(digits, c)
	}
	// an odd trailing nibble is padded with 0
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	result := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(result, digits)
	if err != nil {
		return nil, err
	}
	return result[:n], nil
}
func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }
func NewRunLengthDecoder() Decoder    { return runLengthDecoder{} }

func (d runLengthDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	return readAll(d, in, params)
}

func (runLengthDecoder) Reader(in []byte, params raw.Dictionary) (io.Reader, error) {
	return &runLengthReader{src: bufio.NewReader(bytes.NewReader(in))}, nil
}

func (runLengthDecoder) Finish(out []byte, params raw.Dictionary) ([]byte, error) { return out, nil }

type runLengthReader struct {
	src     *bufio.Reader
	pending []byte
	done    bool
}

func (r *runLengthReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		n, err := r.src.ReadByte()
		if err != nil {
			r.done = true
			continue
		}
		switch {
		case n == 128:
			r.done = true
		case n < 128:
			lit := make([]byte, int(n)+1)
			got, _ := io.ReadFull(r.src, lit)
			r.pending = lit[:got]
			if got < len(lit) {
				r.done = true
			}
		default:
			b, err := r.src.ReadByte()
			if err != nil {
				r.done = true
				continue
			}
			r.pending = bytes.Repeat([]byte{b}, 257-int(n))
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
