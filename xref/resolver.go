package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstruct/filters"
	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
)

// nearWindow is how far around a bad offset the resolver looks for the real section.
const nearWindow = 2048

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	// Revisions lists the sections of the last Resolve, newest first.
	Revisions() []Revision
	Trailer() *raw.DictObj
	// Hybrid reports whether a classic table pulled entries from an /XRefStm stream.
	Hybrid() bool
	// Recovered reports whether entries were synthesized by a full scan.
	Recovered() bool
}

type ResolverConfig struct {
	// MaxXRefDepth caps the number of sections followed. Zero means no cap.
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Filters      filters.Service
	Logger       observability.Logger
	Anomalies    *recovery.Recorder
	// MaxObjectSize bounds xref stream payloads, encoded and decoded.
	MaxObjectSize  int64
	MaxDecodeRatio int
	// HeaderOffset is the position of a displaced %PDF- header. Sections
	// that do not parse at their stated offset are retried shifted by it.
	HeaderOffset int64
	// Size is the source length. Zero means it is measured.
	Size int64
}

// NewResolver returns a resolver for classic tables, xref streams and hybrids.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.Filters == nil {
		cfg.Filters = filters.NewStandardPipeline(filters.Limits{})
	}
	return &chainResolver{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

type chainResolver struct {
	cfg ResolverConfig
	log observability.Logger

	revisions []Revision
	trailer   *raw.DictObj
	hybrid    bool
	recovered bool

	src  io.ReaderAt
	size int64
	vp   *raw.ValueParser
}

// section is one parsed cross-reference section with its trailer.
type section struct {
	offset  int64
	kind    string
	entries map[int]Entry
	trailer *raw.DictObj
	digest  [32]byte
}

func (c *chainResolver) Revisions() []Revision { return c.revisions }
func (c *chainResolver) Trailer() *raw.DictObj { return c.trailer }
func (c *chainResolver) Hybrid() bool          { return c.hybrid }
func (c *chainResolver) Recovered() bool       { return c.recovered }

func (c *chainResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	c.revisions, c.trailer, c.hybrid, c.recovered = nil, nil, false, false

	size := c.cfg.Size
	if size <= 0 {
		n, err := SourceSize(r)
		if err != nil {
			return nil, fmt.Errorf("measure source: %w", err)
		}
		size = n
	}
	c.src, c.size = r, size
	s := scanner.New(r, scanner.Config{MaxStreamLength: c.cfg.MaxObjectSize})
	c.vp = raw.NewValueParser(s, raw.ValueParserConfig{
		Recovery:  c.cfg.Recovery,
		Logger:    c.log,
		Anomalies: c.cfg.Anomalies,
	})

	t := newTable()
	start, err := LocateStartXRef(r, size)
	if err != nil {
		if !c.allows(ctx, err, max(size-tailWindow, 0)) {
			return nil, err
		}
		c.log.Warn("startxref unusable, scanning file", observability.Error("error", err))
		if err := c.scanInto(ctx, t); err != nil {
			return nil, err
		}
	} else if err := c.walk(ctx, t, start); err != nil {
		return nil, err
	}

	if t.Len() == 0 && !c.recovered {
		err := recovery.Malformed("resolve xref", start, errors.New("cross-reference data lists no objects"))
		if !c.allows(ctx, err, start) {
			return nil, err
		}
		if err := c.scanInto(ctx, t); err != nil {
			return nil, err
		}
	}
	t.trailer = c.trailer
	if t.kind == "" {
		t.kind = "recovered"
	}
	if err := c.validateSize(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// walk follows the /Prev chain from start, newest section first.
func (c *chainResolver) walk(ctx context.Context, t *table, start int64) error {
	seen := make(map[int64]bool)
	for off, depth := start, 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[off] {
			c.log.Warn("xref /Prev chain loops", observability.Int64("offset", off))
			c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefPrevCycle,
				fmt.Sprintf("/Prev points back to the section at %d", off), off)
			return nil
		}
		seen[off] = true

		if c.cfg.MaxXRefDepth > 0 && depth >= c.cfg.MaxXRefDepth {
			err := recovery.ResourceExceeded("walk xref chain", off, fmt.Errorf("more than %d xref sections", c.cfg.MaxXRefDepth))
			if !c.allows(ctx, err, off) {
				return err
			}
			c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefChainTooDeep, err.Error(), off)
			return nil
		}

		sec, err := c.readSection(ctx, off)
		if err != nil {
			if !c.allows(ctx, err, off) {
				return err
			}
			sec, err = c.ladder(ctx, off, err)
		}
		if err != nil {
			c.log.Warn("xref section unreadable, scanning file",
				observability.Int64("offset", off), observability.Error("error", err))
			c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefParseFailed, err.Error(), off)
			return c.scanInto(ctx, t)
		}

		if depth == 0 {
			c.trailer = sec.trailer
			t.kind = sec.kind
			if sec.kind == "hybrid" {
				t.kind = "table"
			}
		}
		added, modified, deleted := revisionDeltas(sec.entries, t.entries)
		c.revisions = append(c.revisions, Revision{
			Number:     depth,
			XRefOffset: sec.offset,
			Kind:       sec.kind,
			Trailer:    sec.trailer,
			Added:      added,
			Modified:   modified,
			Deleted:    deleted,
			Digest:     sec.digest,
		})
		for num, e := range sec.entries {
			t.addEarliest(num, e)
		}
		c.log.Debug("xref section parsed",
			observability.Int("revision", depth),
			observability.Int64("offset", sec.offset),
			observability.String("kind", sec.kind),
			observability.Int("entries", len(sec.entries)))

		prev, ok := sec.trailer.Int("Prev")
		if !ok || prev <= 0 {
			return nil
		}
		off = prev
	}
}

// readSection parses the section at off in whichever form it appears.
func (c *chainResolver) readSection(ctx context.Context, off int64) (*section, error) {
	sec, err := c.parseForm(ctx, off, c.looksLikeTable(off))
	if err != nil && c.cfg.HeaderOffset > 0 {
		shifted := off + c.cfg.HeaderOffset
		if s, err2 := c.parseForm(ctx, shifted, c.looksLikeTable(shifted)); err2 == nil {
			return s, nil
		}
	}
	return sec, err
}

// ladder tries progressively looser ways to find the section meant by off.
func (c *chainResolver) ladder(ctx context.Context, off int64, cause error) (*section, error) {
	if sec, err := c.alternateForm(ctx, off); err == nil {
		c.log.Warn("xref section parsed in the other form",
			observability.Int64("stated", off), observability.Int64("actual", sec.offset))
		c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefAlternateForm, cause.Error(), off)
		return sec, nil
	}

	lo := max(off-nearWindow, 0)
	hi := min(off+nearWindow, c.size)
	if hi <= lo {
		return nil, cause
	}
	buf := make([]byte, hi-lo)
	n, err := c.src.ReadAt(buf, lo)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]

	var found *section
	eachIndex(buf, "xref", func(k int) {
		abs := lo + int64(k)
		if found != nil || abs == off {
			return
		}
		if sec, err := c.parseTable(ctx, abs); err == nil {
			found = sec
		}
	})
	if found == nil {
		eachIndex(buf, " obj", func(k int) {
			if found != nil {
				return
			}
			start, _, ok := objectHeader(buf, k+1)
			abs := lo + int64(start)
			if !ok || abs == off {
				return
			}
			if sec, err := c.parseStream(ctx, abs); err == nil {
				found = sec
			}
		})
	}
	if found == nil {
		return nil, cause
	}
	c.log.Warn("xref section found near stated offset",
		observability.Int64("stated", off), observability.Int64("actual", found.offset))
	c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefNearOffset,
		fmt.Sprintf("section stated at %d found at %d", off, found.offset), found.offset)
	return found, nil
}

// skewWindow bounds how much of the stated line the alternate form retry reads.
const skewWindow = 256

// looksLikeTable guesses the section form from the first content byte at off.
// The guess is cheap and can be wrong; the ladder retries the other form.
func (c *chainResolver) looksLikeTable(off int64) bool {
	line, _ := c.lineAt(off)
	return len(line) > 0 && line[0] == 'x'
}

// lineAt returns the rest of the first non-comment line at or after off,
// starting at its first content byte, and that byte's position.
func (c *chainResolver) lineAt(off int64) ([]byte, int64) {
	if off < 0 || off >= c.size {
		return nil, off
	}
	buf := make([]byte, min(skewWindow, c.size-off))
	n, _ := c.src.ReadAt(buf, off)
	buf = buf[:n]
	i := 0
	for i < len(buf) {
		switch {
		case isWhitespace(buf[i]):
			i++
		case buf[i] == '%':
			for i < len(buf) && buf[i] != '\r' && buf[i] != '\n' {
				i++
			}
		default:
			line := buf[i:]
			if j := bytes.IndexAny(line, "\r\n"); j >= 0 {
				line = line[:j]
			}
			return line, off + int64(i)
		}
	}
	return nil, off
}

// alternateForm retries off in the form looksLikeTable rejected. A short
// skewed prefix on the stated line is tolerated: the table form looks for
// "xref" and the stream form for "N G obj" further along the same line.
func (c *chainResolver) alternateForm(ctx context.Context, off int64) (*section, error) {
	line, start := c.lineAt(off)
	notFound := recovery.Malformed("retry xref section", off, errors.New("no section header on the stated line"))
	if !c.looksLikeTable(off) {
		k := bytes.Index(line, []byte("xref"))
		if k < 0 {
			return nil, notFound
		}
		return c.parseTable(ctx, start+int64(k))
	}
	var found *section
	eachIndex(line, " obj", func(k int) {
		if found != nil {
			return
		}
		if h, _, ok := objectHeader(line, k+1); ok {
			if sec, err := c.parseStream(ctx, start+int64(h)); err == nil {
				found = sec
			}
		}
	})
	if found == nil {
		return nil, notFound
	}
	return found, nil
}

func (c *chainResolver) parseForm(ctx context.Context, off int64, table bool) (*section, error) {
	if off < 0 || off >= c.size {
		return nil, recovery.Malformed("parse xref section", off, fmt.Errorf("offset outside file of %d bytes", c.size))
	}
	if table {
		return c.parseTable(ctx, off)
	}
	return c.parseStream(ctx, off)
}

// parseTable reads a classic "xref" table and its trailer dictionary.
func (c *chainResolver) parseTable(ctx context.Context, off int64) (*section, error) {
	const op = "parse xref table"
	vp := c.vp
	if err := vp.Seek(off); err != nil {
		return nil, err
	}
	tok, err := vp.Token()
	if err != nil || !isKeyword(tok, "xref") {
		return nil, recovery.Malformed(op, off, errors.New("missing xref keyword"))
	}

	entries := make(map[int]Entry)
	for {
		tok, err := vp.Token()
		if err != nil {
			return nil, recovery.Malformed(op, vp.Position(), fmt.Errorf("table ends early: %w", err))
		}
		if isKeyword(tok, "trailer") {
			break
		}
		countTok, err := vp.Token()
		if err != nil {
			return nil, recovery.Malformed(op, tok.Pos, fmt.Errorf("subsection header: %w", err))
		}
		first, ok1 := intToken(tok)
		count, ok2 := intToken(countTok)
		if !ok1 || !ok2 || first < 0 || count < 0 {
			return nil, recovery.Malformed(op, tok.Pos, errors.New("bad subsection header"))
		}
		rows := make([]Entry, 0, min(count, 1024))
		for i := int64(0); i < count; i++ {
			e, err := c.tableRow(vp)
			if err != nil {
				return nil, err
			}
			rows = append(rows, e)
		}
		// Some writers number the subsection holding the free list head from 1.
		if first == 1 && len(rows) > 0 && rows[0].Type == EntryFree && rows[0].Gen == 65535 && rows[0].NextFree == 0 {
			first = 0
		}
		for i, e := range rows {
			num := int(first) + i
			if _, dup := entries[num]; !dup {
				entries[num] = e
			}
		}
	}

	val, err := vp.ParseValue()
	if err != nil {
		return nil, recovery.Malformed(op, vp.Position(), fmt.Errorf("trailer: %w", err))
	}
	trailer, ok := val.(*raw.DictObj)
	if !ok {
		return nil, recovery.Malformed(op, vp.Position(), fmt.Errorf("trailer is a %s, not a dictionary", val.Type()))
	}
	sec := &section{
		offset:  off,
		kind:    "table",
		entries: entries,
		trailer: trailer,
		digest:  c.digest(off, vp.Position()),
	}
	if stm, ok := trailer.Int("XRefStm"); ok {
		if err := c.mergeXRefStm(ctx, sec, stm); err != nil {
			return nil, err
		}
	}
	return sec, nil
}

func (c *chainResolver) tableRow(vp *raw.ValueParser) (Entry, error) {
	const op = "parse xref entry"
	var toks [3]scanner.Token
	for i := range toks {
		tok, err := vp.Token()
		if err != nil {
			return Entry{}, recovery.Malformed(op, vp.Position(), fmt.Errorf("table ends early: %w", err))
		}
		toks[i] = tok
	}
	off, ok1 := intToken(toks[0])
	gen, ok2 := intToken(toks[1])
	if !ok1 || !ok2 || off < 0 || gen < 0 || toks[2].Type != scanner.TokenKeyword {
		return Entry{}, recovery.Malformed(op, toks[0].Pos, errors.New("expected 'offset generation n|f'"))
	}
	if gen > 65535 {
		// 65536 is a common typo for the free list head.
		return Entry{Type: EntryFree, Gen: 65535}, nil
	}
	switch toks[2].Str {
	case "n":
		if off == 0 {
			return Entry{Type: EntryFree, Gen: int(gen)}, nil
		}
		return Entry{Type: EntryInUse, Offset: off, Gen: int(gen)}, nil
	case "f":
		return Entry{Type: EntryFree, NextFree: int(off), Gen: int(gen)}, nil
	}
	return Entry{}, recovery.Malformed(op, toks[2].Pos, fmt.Errorf("entry type %q", toks[2].Str))
}

// mergeXRefStm folds the supplemental stream of a hybrid file into the
// table section. Stream entries only fill slots the table leaves free.
func (c *chainResolver) mergeXRefStm(ctx context.Context, sec *section, off int64) error {
	stm, err := c.parseStream(ctx, off)
	if err != nil {
		err = fmt.Errorf("hybrid /XRefStm at %d: %w", off, err)
		if !c.allows(ctx, err, off) {
			return err
		}
		c.log.Warn("ignoring unreadable /XRefStm", observability.Int64("offset", off), observability.Error("error", err))
		c.cfg.Anomalies.RecordAt(recovery.AnomalyXRefParseFailed, err.Error(), off)
		return nil
	}
	for num, e := range stm.entries {
		if cur, ok := sec.entries[num]; !ok || cur.Type == EntryFree {
			sec.entries[num] = e
		}
	}
	sec.kind = "hybrid"
	c.hybrid = true
	return nil
}

// parseStream reads a /Type /XRef stream object.
func (c *chainResolver) parseStream(ctx context.Context, off int64) (*section, error) {
	const op = "parse xref stream"
	if err := c.vp.Seek(off); err != nil {
		return nil, err
	}
	obj, err := c.vp.ParseIndirectObject()
	if err != nil {
		return nil, recovery.Malformed(op, off, err)
	}
	st, ok := obj.Value.(*raw.StreamObj)
	if !ok {
		return nil, recovery.Malformed(op, off, fmt.Errorf("object %d is a %s, not a stream", obj.Ref.Num, obj.Value.Type()))
	}
	if typ, _ := st.Dict.NameValue("Type"); typ != "XRef" {
		return nil, recovery.Malformed(op, off, fmt.Errorf("object %d has /Type %q", obj.Ref.Num, typ))
	}
	end := c.vp.Position()

	names, params := filters.ExtractFilters(st.Dict)
	data, err := c.cfg.Filters.DecodeWithLimits(ctx, st.RawData(), names, params, c.cfg.MaxObjectSize, c.cfg.MaxDecodeRatio)
	if err != nil {
		if recovery.CodeOf(err) == recovery.CodeResourceExceeded {
			return nil, err
		}
		return nil, recovery.Malformed(op, off, fmt.Errorf("decode: %w", err))
	}
	entries, err := decodeStreamEntries(st.Dict, data, off)
	if err != nil {
		if entries == nil || !c.allows(ctx, err, off) {
			return nil, err
		}
		c.log.Warn("xref stream truncated, keeping decoded rows",
			observability.Int64("offset", off), observability.Int("rows", len(entries)))
	}
	return &section{
		offset:  off,
		kind:    "xref-stream",
		entries: entries,
		trailer: st.Dict,
		digest:  c.digest(off, end),
	}, nil
}

// decodeStreamEntries interprets decoded xref stream rows using /W and /Index.
// On truncated data it returns the rows read so far together with the error.
func decodeStreamEntries(dict *raw.DictObj, data []byte, off int64) (map[int]Entry, error) {
	const op = "decode xref stream"
	var w [3]int
	arr, ok := lookupArray(dict, "W")
	if !ok || len(arr.Items) < 3 {
		return nil, recovery.Malformed(op, off, errors.New("/W must hold three widths"))
	}
	for i := range w {
		n, ok := arr.Items[i].(raw.NumberObj)
		if !ok || !n.IsInt || n.I < 0 || n.I > 8 {
			return nil, recovery.Malformed(op, off, fmt.Errorf("bad /W width %v", arr.Items[i]))
		}
		w[i] = int(n.I)
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, recovery.Malformed(op, off, errors.New("/W widths are all zero"))
	}
	size, ok := dict.Int("Size")
	if !ok || size < 0 {
		return nil, recovery.Malformed(op, off, errors.New("missing /Size"))
	}

	index := []int64{0, size}
	if idx, ok := lookupArray(dict, "Index"); ok {
		index = index[:0]
		for _, it := range idx.Items {
			n, ok := it.(raw.NumberObj)
			if !ok || !n.IsInt || n.I < 0 {
				return nil, recovery.Malformed(op, off, fmt.Errorf("bad /Index value %v", it))
			}
			index = append(index, n.I)
		}
		if len(index)%2 != 0 {
			return nil, recovery.Malformed(op, off, errors.New("/Index has odd length"))
		}
	}

	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(data) {
				return entries, recovery.Malformed(op, off, fmt.Errorf("data ends after %d rows", len(entries)))
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			num := int(first + j)
			if _, dup := entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				entries[num] = Entry{Type: EntryFree, NextFree: int(f2), Gen: int(f3)}
			case 1:
				entries[num] = Entry{Type: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Type: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return entries, nil
}

// field decodes a big-endian unsigned integer.
func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func lookupArray(d *raw.DictObj, key string) (*raw.ArrayObj, bool) {
	o, ok := d.Lookup(key)
	if !ok {
		return nil, false
	}
	a, ok := o.(*raw.ArrayObj)
	return a, ok
}

// scanInto fills t from a full-file scan. Entries already present win.
func (c *chainResolver) scanInto(ctx context.Context, t *table) error {
	res, err := ScanObjects(ctx, c.src, c.size)
	if err != nil {
		return fmt.Errorf("scan for objects: %w", err)
	}
	if len(res.Objects) == 0 && t.Len() == 0 {
		return recovery.Malformed("scan for objects", 0, errors.New("no objects found"))
	}
	found := make(map[int]Entry, len(res.Objects))
	maxNum := 0
	for _, o := range res.Objects {
		// Later definitions belong to later updates.
		found[o.Ref.Num] = Entry{Type: EntryInUse, Offset: o.Offset, Gen: o.Ref.Gen}
		maxNum = max(maxNum, o.Ref.Num)
	}
	added := 0
	for num, e := range found {
		if t.addEarliest(num, e) {
			added++
		}
	}
	if c.trailer == nil {
		c.trailer = c.scannedTrailer(res)
	}
	if c.trailer == nil {
		c.trailer = raw.Dict()
	}
	if _, ok := c.trailer.Lookup("Size"); !ok {
		c.trailer.SetKey("Size", raw.NumberInt(int64(max(maxNum+1, t.Len()))))
	}
	c.recovered = true
	c.log.Warn("cross-reference rebuilt by scanning", observability.Int("objects", len(found)), observability.Int("added", added))
	c.cfg.Anomalies.Record(recovery.AnomalyXRefScan, fmt.Sprintf("%d objects found, %d added", len(found), added))
	return nil
}

// scannedTrailer picks the last parsable trailer dictionary, or failing
// that the dictionary of the last xref stream.
func (c *chainResolver) scannedTrailer(res *ScanResult) *raw.DictObj {
	for i := len(res.Trailers) - 1; i >= 0; i-- {
		if err := c.vp.Seek(res.Trailers[i] + int64(len("trailer"))); err != nil {
			continue
		}
		if v, err := c.vp.ParseValue(); err == nil {
			if d, ok := v.(*raw.DictObj); ok {
				return d
			}
		}
	}
	for i := len(res.XRefNames) - 1; i >= 0; i-- {
		start := int64(-1)
		for _, o := range res.Objects {
			if o.Offset < res.XRefNames[i] {
				start = o.Offset
			}
		}
		if start < 0 || c.vp.Seek(start) != nil {
			continue
		}
		obj, err := c.vp.ParseIndirectObject()
		if err != nil {
			continue
		}
		var d *raw.DictObj
		switch v := obj.Value.(type) {
		case *raw.StreamObj:
			d = v.Dict
		case *raw.DictObj:
			d = v
		}
		if typ, _ := dictType(d); typ == "XRef" {
			return d
		}
	}
	return nil
}

func dictType(d *raw.DictObj) (string, bool) {
	if d == nil {
		return "", false
	}
	return d.NameValue("Type")
}

// validateSize checks every entry against the trailer /Size.
func (c *chainResolver) validateSize(ctx context.Context, t *table) error {
	var err error
	size, ok := t.trailer.Int("Size")
	if !ok {
		err = recovery.Malformed("validate trailer", 0, errors.New("trailer has no integer /Size"))
	} else if objs := t.Objects(); len(objs) > 0 && int64(objs[len(objs)-1]) >= size {
		err = recovery.Malformed("validate trailer", 0, fmt.Errorf("object %d beyond /Size %d", objs[len(objs)-1], size))
	}
	if err == nil || c.allows(ctx, err, 0) {
		if err != nil {
			c.log.Warn("trailer /Size disagrees with entries", observability.Error("error", err))
		}
		return nil
	}
	return err
}

func (c *chainResolver) digest(off, end int64) [32]byte {
	var sum [32]byte
	h, err := blake2b.New256(nil)
	if err != nil || end <= off {
		return sum
	}
	if _, err := io.Copy(h, io.NewSectionReader(c.src, off, end-off)); err != nil {
		return sum
	}
	copy(sum[:], h.Sum(nil))
	return sum
}

func (c *chainResolver) allows(ctx context.Context, err error, off int64) bool {
	return recovery.Allows(c.cfg.Recovery, ctx, err, recovery.Location{ByteOffset: off, Component: "xref"})
}

func isKeyword(tok scanner.Token, kw string) bool {
	return tok.Type == scanner.TokenKeyword && tok.Str == kw
}

func intToken(tok scanner.Token) (int64, bool) {
	return tok.Int, tok.Type == scanner.TokenNumber && tok.IsInt
}
