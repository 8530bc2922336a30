package xref

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/tdewolff/parse/v2/strconv"

	"github.com/wudi/pdfstruct/recovery"
)

// tailWindow is how much of the file end is searched for startxref.
const tailWindow = 1024

// SourceSize reports the length of r. Readers exposing Size or Stat are
// asked directly; otherwise the size is found by probing.
func SourceSize(r io.ReaderAt) (int64, error) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), nil
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	}
	if s, ok := r.(io.Seeker); ok {
		return s.Seek(0, io.SeekEnd)
	}
	return probeSize(r)
}

// probeSize finds the end of r by doubling and then bisecting.
func probeSize(r io.ReaderAt) (int64, error) {
	var b [1]byte
	readable := func(off int64) (bool, error) {
		n, err := r.ReadAt(b[:], off)
		if n == 1 {
			return true, nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	ok, err := readable(0)
	if err != nil || !ok {
		return 0, err
	}
	lo, hi := int64(0), int64(1)
	for {
		ok, err := readable(hi)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		lo, hi = hi, hi*2
	}
	// lo is readable, hi is not.
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		ok, err := readable(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}

// LocateStartXRef reads the last kilobyte of the file, finds the final
// "%%EOF" and the "startxref" before it, and returns the offset that follows.
func LocateStartXRef(r io.ReaderAt, size int64) (int64, error) {
	start := max(size-tailWindow, 0)
	buf := make([]byte, size-start)
	n, err := r.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	buf = buf[:n]

	end := len(buf)
	if i := bytes.LastIndex(buf, []byte("%%EOF")); i >= 0 {
		end = i
	}
	i := bytes.LastIndex(buf[:end], []byte("startxref"))
	if i < 0 {
		return 0, recovery.Malformed("locate startxref", start, errors.New("startxref not found"))
	}
	pos := start + int64(i)
	rest := bytes.TrimLeft(buf[i+len("startxref"):end], " \t\r\n\f\x00")
	off, k := strconv.ParseUint(rest)
	if k == 0 {
		return 0, recovery.Malformed("locate startxref", pos, errors.New("startxref offset is not a number"))
	}
	if off == 0 || off >= uint64(size) {
		return 0, recovery.Malformed("locate startxref", pos, fmt.Errorf("startxref offset %d outside file of %d bytes", off, size))
	}
	return int64(off), nil
}
