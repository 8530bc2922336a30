package xref

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/recovery"
)

func xrefDict(w []int64, size int64, index []int64) *raw.DictObj {
	d := raw.Dict()
	d.SetKey("Type", raw.NameLiteral("XRef"))
	var ws []raw.Object
	for _, v := range w {
		ws = append(ws, raw.NumberInt(v))
	}
	d.SetKey("W", raw.NewArray(ws...))
	d.SetKey("Size", raw.NumberInt(size))
	if index != nil {
		var is []raw.Object
		for _, v := range index {
			is = append(is, raw.NumberInt(v))
		}
		d.SetKey("Index", raw.NewArray(is...))
	}
	return d
}

func TestDecodeStreamEntriesDefaults(t *testing.T) {
	// w1 = 0 makes every row type 1; w3 = 0 makes generations 0.
	data := []byte{0x00, 0x10, 0x01, 0x00}
	got, err := decodeStreamEntries(xrefDict([]int64{0, 2, 0}, 2, nil), data, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[int]Entry{
		0: {Type: EntryInUse, Offset: 0x10},
		1: {Type: EntryInUse, Offset: 0x100},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStreamEntriesIndexAndTypes(t *testing.T) {
	data := []byte{
		0, 0, 0, 0xff, // 10: free, next 0, gen 255
		1, 0, 0x20, 3, // 11: in use at 32, gen 3
		2, 0, 0x05, 7, // 20: in stream 5 index 7
		9, 0, 0x00, 0, // 21: unknown type, ignored
	}
	got, err := decodeStreamEntries(xrefDict([]int64{1, 2, 1}, 22, []int64{10, 2, 20, 2}), data, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[int]Entry{
		10: {Type: EntryFree, Gen: 255},
		11: {Type: EntryInUse, Offset: 32, Gen: 3},
		20: {Type: EntryCompressed, Stream: 5, Index: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStreamEntriesTruncated(t *testing.T) {
	data := []byte{1, 0, 9, 0, 1, 0}
	got, err := decodeStreamEntries(xrefDict([]int64{1, 2, 1}, 3, nil), data, 0)
	if !errors.Is(err, recovery.ErrMalformedStructure) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if len(got) != 1 || got[0].Offset != 9 {
		t.Fatalf("expected the complete row to survive, got %v", got)
	}
}

func TestDecodeStreamEntriesRejectsBadWidths(t *testing.T) {
	for _, w := range [][]int64{{1, 2}, {0, 0, 0}, {1, 9, 1}, {1, -1, 1}} {
		if _, err := decodeStreamEntries(xrefDict(w, 1, nil), []byte{1, 2, 3, 4}, 0); err == nil {
			t.Fatalf("widths %v accepted", w)
		}
	}
}

func TestRevisionDeltas(t *testing.T) {
	newer := map[int]Entry{
		2: {Type: EntryInUse, Offset: 200},
		3: {Type: EntryInUse, Offset: 300},
	}
	section := map[int]Entry{
		0: {Type: EntryFree, Gen: 65535},
		1: {Type: EntryInUse, Offset: 100},
		2: {Type: EntryInUse, Offset: 150},
		3: {Type: EntryInUse, Offset: 300},
		4: {Type: EntryFree, Gen: 1},
	}
	added, modified, deleted := revisionDeltas(section, newer)
	if diff := cmp.Diff([]raw.ObjectRef{{Num: 1}}, added); diff != "" {
		t.Fatalf("added:\n%s", diff)
	}
	if diff := cmp.Diff([]raw.ObjectRef{{Num: 2}}, modified); diff != "" {
		t.Fatalf("modified:\n%s", diff)
	}
	if diff := cmp.Diff([]raw.ObjectRef{{Num: 4, Gen: 1}}, deleted); diff != "" {
		t.Fatalf("deleted:\n%s", diff)
	}
}

func TestObjectHeader(t *testing.T) {
	cases := []struct {
		src   string
		start int
		ref   raw.ObjectRef
		ok    bool
	}{
		{"12 3 obj", 0, raw.ObjectRef{Num: 12, Gen: 3}, true},
		{"\n7\r\n0  obj", 1, raw.ObjectRef{Num: 7}, true},
		{">>5 0 obj", 2, raw.ObjectRef{Num: 5}, true},
		{"a5 0 obj", 0, raw.ObjectRef{}, false},
		{"5 0obj", 0, raw.ObjectRef{}, false},
		{"5 999999 obj", 0, raw.ObjectRef{}, false},
		{"0 obj", 0, raw.ObjectRef{}, false},
	}
	for _, tc := range cases {
		k := len(tc.src) - 3
		start, ref, ok := objectHeader([]byte(tc.src), k)
		if ok != tc.ok || (ok && (start != tc.start || ref != tc.ref)) {
			t.Fatalf("%q: got %d %v %v", tc.src, start, ref, ok)
		}
	}
}
