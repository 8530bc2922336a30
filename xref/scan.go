package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/tdewolff/parse/v2/strconv"

	"github.com/wudi/pdfstruct/ir/raw"
)

const (
	scanChunk   = 1 << 20
	scanOverlap = 64
)

// ScannedObject is an "N G obj" header found by ScanObjects.
type ScannedObject struct {
	Ref    raw.ObjectRef
	Offset int64
}

// ScanResult lists everything a full-file scan located, in file order.
type ScanResult struct {
	Objects []ScannedObject
	// Trailers holds the offset of every "trailer" keyword.
	Trailers []int64
	// XRefNames holds the offset of every "/XRef" name.
	XRefNames []int64
}

// ScanObjects reads the whole source looking for "<digits> <digits> obj"
// headers. It does not parse objects, so it works on files whose cross
// reference data is missing or wrong.
func ScanObjects(ctx context.Context, r io.ReaderAt, size int64) (*ScanResult, error) {
	res := &ScanResult{}
	buf := make([]byte, scanChunk+2*scanOverlap)
	for base := int64(0); base < size; base += scanChunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lo := max(base-scanOverlap, 0)
		hi := min(base+scanChunk+scanOverlap, size)
		n, err := r.ReadAt(buf[:hi-lo], lo)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		win := buf[:n]
		atEOF := lo+int64(n) >= size
		owned := func(i int) bool {
			abs := lo + int64(i)
			return abs >= base && abs < base+scanChunk
		}
		delimitedAfter := func(end int) bool {
			if end < len(win) {
				return isDelimiter(win[end])
			}
			return atEOF
		}

		eachIndex(win, "obj", func(k int) {
			if !owned(k) || !delimitedAfter(k+3) {
				return
			}
			if start, ref, ok := objectHeader(win, k); ok {
				res.Objects = append(res.Objects, ScannedObject{Ref: ref, Offset: lo + int64(start)})
			}
		})
		eachIndex(win, "trailer", func(k int) {
			if owned(k) && (k == 0 || isDelimiter(win[k-1])) && delimitedAfter(k+7) {
				res.Trailers = append(res.Trailers, lo+int64(k))
			}
		})
		eachIndex(win, "/XRef", func(k int) {
			if owned(k) && delimitedAfter(k+5) {
				res.XRefNames = append(res.XRefNames, lo+int64(k))
			}
		})
	}
	return res, nil
}

func eachIndex(buf []byte, needle string, fn func(int)) {
	for i := 0; i < len(buf); {
		j := bytes.Index(buf[i:], []byte(needle))
		if j < 0 {
			return
		}
		fn(i + j)
		i += j + len(needle)
	}
}

// objectHeader backs up from the "obj" keyword at k over the generation and
// object numbers. It returns the index where the object number starts.
func objectHeader(buf []byte, k int) (int, raw.ObjectRef, bool) {
	j := k - 1
	if j < 0 || !isWhitespace(buf[j]) {
		return 0, raw.ObjectRef{}, false
	}
	for j >= 0 && isWhitespace(buf[j]) {
		j--
	}
	genEnd := j + 1
	for j >= 0 && isDigit(buf[j]) {
		j--
	}
	genStart := j + 1
	if genStart == genEnd || genEnd-genStart > 5 || j < 0 || !isWhitespace(buf[j]) {
		return 0, raw.ObjectRef{}, false
	}
	for j >= 0 && isWhitespace(buf[j]) {
		j--
	}
	numEnd := j + 1
	for j >= 0 && isDigit(buf[j]) {
		j--
	}
	numStart := j + 1
	if numStart == numEnd || numEnd-numStart > 10 {
		return 0, raw.ObjectRef{}, false
	}
	if j >= 0 && !isDelimiter(buf[j]) {
		return 0, raw.ObjectRef{}, false
	}
	num, _ := strconv.ParseUint(buf[numStart:numEnd])
	gen, _ := strconv.ParseUint(buf[genStart:genEnd])
	if gen > 65535 {
		return 0, raw.ObjectRef{}, false
	}
	return numStart, raw.ObjectRef{Num: int(num), Gen: int(gen)}, true
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
