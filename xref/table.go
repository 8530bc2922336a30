package xref

import (
	"sort"

	"github.com/wudi/pdfstruct/ir/raw"
)

// EntryType is the kind of one cross-reference slot.
type EntryType int

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryCompressed
)

func (t EntryType) String() string {
	switch t {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in-use"
	case EntryCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Entry is one slot of the cross-reference index. Which fields apply depends
// on Type: free entries use NextFree and Gen, in-use entries use Offset and
// Gen, compressed entries use Stream and Index.
type Entry struct {
	Type     EntryType
	Offset   int64
	Gen      int
	NextFree int
	Stream   int
	Index    int
}

// Table is the aggregated cross-reference index of a document.
type Table interface {
	// Lookup returns the byte offset and generation of an in-use object.
	Lookup(objNum int) (offset int64, gen int, found bool)
	// ObjStream returns the container stream and index of a compressed object.
	ObjStream(objNum int) (stream int, index int, found bool)
	Entry(objNum int) (Entry, bool)
	Objects() []int
	Len() int
	// Type is "table", "xref-stream" or "recovered", after the newest section.
	Type() string
	Trailer() *raw.DictObj
}

// table keeps the entry discovered first for every object number. The chain
// walk runs newest to oldest, so the first entry seen is the live one.
type table struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

func newTable() *table {
	return &table{entries: make(map[int]Entry)}
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Type != EntryInUse {
		return 0, 0, false
	}
	return e.Offset, e.Gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Type != EntryCompressed {
		return 0, 0, false
	}
	return e.Stream, e.Index, true
}

func (t *table) Entry(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Len() int              { return len(t.entries) }
func (t *table) Type() string          { return t.kind }
func (t *table) Trailer() *raw.DictObj { return t.trailer }

// addEarliest inserts e unless objNum already has an entry.
func (t *table) addEarliest(objNum int, e Entry) bool {
	if _, ok := t.entries[objNum]; ok {
		return false
	}
	t.entries[objNum] = e
	return true
}

// Revision describes one incremental update, newest first (Number 0).
type Revision struct {
	Number     int
	XRefOffset int64
	// Kind is "table", "xref-stream" or "hybrid".
	Kind    string
	Trailer *raw.DictObj
	// Object sets relative to every newer revision.
	Added    []raw.ObjectRef
	Modified []raw.ObjectRef
	Deleted  []raw.ObjectRef
	// Digest is the BLAKE2b-256 sum of the section bytes as stored in the file.
	Digest [32]byte
}

// revisionDeltas classifies a section's entries against the aggregate of the
// newer revisions seen so far.
func revisionDeltas(section map[int]Entry, newer map[int]Entry) (added, modified, deleted []raw.ObjectRef) {
	for num, e := range section {
		ref := raw.ObjectRef{Num: num, Gen: e.Gen}
		if e.Type == EntryFree {
			if num != 0 {
				deleted = append(deleted, ref)
			}
			continue
		}
		prev, ok := newer[num]
		switch {
		case !ok:
			added = append(added, ref)
		case prev != e:
			modified = append(modified, ref)
		}
	}
	sortRefs(added)
	sortRefs(modified)
	sortRefs(deleted)
	return added, modified, deleted
}

func sortRefs(refs []raw.ObjectRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
}
