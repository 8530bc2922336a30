package parser

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/scanner"
	"github.com/wudi/pdfstruct/xref"
)

// pdfBuilder writes a PDF in memory and remembers where each object starts.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDF() *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) stream(num int, dict string, data []byte) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

// table finishes the file with a classic xref table covering 0..size-1.
func (b *pdfBuilder) table(size int, trailer string) []byte {
	start := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", size)
	for i := 0; i < size; i++ {
		if off, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else if i == 0 {
			b.buf.WriteString("0000000000 65535 f \n")
		} else {
			b.buf.WriteString("0000000000 00001 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, trailer, start)
	return b.buf.Bytes()
}

// xrefStream finishes the file with an uncompressed xref stream as object
// num. compressed maps object numbers to {stream, index}.
func (b *pdfBuilder) xrefStream(num, size int, compressed map[int][2]int, trailer string) []byte {
	start := b.buf.Len()
	b.offsets[num] = start
	rows := make([]byte, 0, size*7)
	for i := 0; i < size; i++ {
		if c, ok := compressed[i]; ok {
			rows = append(rows, 2, 0, 0, byte(c[0]>>8), byte(c[0]), byte(c[1]>>8), byte(c[1]))
			continue
		}
		if off, ok := b.offsets[i]; ok {
			rows = append(rows, 1, byte(off>>24), byte(off>>16), byte(off>>8), byte(off), 0, 0)
			continue
		}
		rows = append(rows, 0, 0, 0, 0, 0, 0xff, 0xff)
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] %s /Length %d >>\nstream\n", num, size, trailer, len(rows))
	b.buf.Write(rows)
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", start)
	return b.buf.Bytes()
}

// objStm builds the decoded body of an object stream holding objs in key order.
func objStm(objs map[int]string) (data []byte, n, first int) {
	nums := make([]int, 0, len(objs))
	for k := range objs {
		nums = append(nums, k)
	}
	sort.Ints(nums)
	var header, body bytes.Buffer
	for _, k := range nums {
		fmt.Fprintf(&header, "%d %d ", k, body.Len())
		body.WriteString(objs[k])
		body.WriteString(" ")
	}
	return append(header.Bytes(), body.Bytes()...), len(nums), header.Len()
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	return buf.Bytes()
}

// countingReader counts ReadAt calls.
type countingReader struct {
	r     *bytes.Reader
	reads atomic.Int64
}

func newCountingReader(data []byte) *countingReader {
	return &countingReader{r: bytes.NewReader(data)}
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.reads.Add(1)
	return c.r.ReadAt(p, off)
}

func (c *countingReader) Size() int64 { return c.r.Size() }

// fakeTable is an xref.Table built by hand, for loader tests that need
// entries no well-formed file would carry.
type fakeTable struct {
	entries map[int]xref.Entry
	trailer *raw.DictObj
}

func (f *fakeTable) Lookup(n int) (int64, int, bool) {
	e, ok := f.entries[n]
	if !ok || e.Type != xref.EntryInUse {
		return 0, 0, false
	}
	return e.Offset, e.Gen, true
}

func (f *fakeTable) ObjStream(n int) (int, int, bool) {
	e, ok := f.entries[n]
	if !ok || e.Type != xref.EntryCompressed {
		return 0, 0, false
	}
	return e.Stream, e.Index, true
}

func (f *fakeTable) Entry(n int) (xref.Entry, bool) {
	e, ok := f.entries[n]
	return e, ok
}

func (f *fakeTable) Objects() []int {
	var nums []int
	for n := range f.entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func (f *fakeTable) Len() int              { return len(f.entries) }
func (f *fakeTable) Type() string          { return "table" }
func (f *fakeTable) Trailer() *raw.DictObj { return f.trailer }

func inUse(off int) xref.Entry { return xref.Entry{Type: xref.EntryInUse, Offset: int64(off)} }

func inStream(stream, index int) xref.Entry {
	return xref.Entry{Type: xref.EntryCompressed, Stream: stream, Index: index}
}

func itoa(n int) string { return strconv.Itoa(n) }

func newTestScanner(data []byte) scanner.Scanner {
	return scanner.New(bytes.NewReader(data), scanner.Config{})
}
