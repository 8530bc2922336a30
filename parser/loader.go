package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wudi/pdfstruct/filters"
	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
	"github.com/wudi/pdfstruct/security"
	"github.com/wudi/pdfstruct/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// MapCache is the default session cache. It never evicts.
type MapCache struct {
	mu sync.Mutex
	m  map[raw.ObjectRef]raw.Object
}

func NewMapCache() *MapCache { return &MapCache{m: make(map[raw.ObjectRef]raw.Object)} }

func (c *MapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[ref]
	return v, ok
}

func (c *MapCache) Put(ref raw.ObjectRef, obj raw.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[raw.ObjectRef]raw.Object)
	}
	c.m[ref] = obj
}

func (c *MapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// ObjectLoader resolves object ids to values. Missing, free and mismatched
// objects load as Null.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
	// LoadIndirect is Load for callers that track their own nesting depth.
	LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error)
	// LoadFromObjectStream extracts entry index of object stream streamNum.
	LoadFromObjectStream(ctx context.Context, streamNum, index int) (raw.Object, error)
	// Resolve follows references until it reaches a direct value.
	Resolve(ctx context.Context, obj raw.Object) (raw.Object, error)
	// StreamBytes returns the undecoded payload, reading lazy payloads from the source.
	StreamBytes(ctx context.Context, st *raw.StreamObj) ([]byte, error)
	// DecodeStream runs the payload through its /Filter chain under the configured limits.
	DecodeStream(ctx context.Context, st *raw.StreamObj) ([]byte, error)
}

type ObjectLoaderBuilder struct {
	reader           io.ReaderAt
	xrefTable        xref.Table
	limits           security.Limits
	cache            Cache
	recovery         recovery.Strategy
	filters          filters.Service
	logger           observability.Logger
	anomalies        *recovery.Recorder
	headerOffset     int64
	lazyThreshold    int64
	noIndirectLength bool
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }
func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}
func (b *ObjectLoaderBuilder) WithFilters(f filters.Service) *ObjectLoaderBuilder {
	b.filters = f
	return b
}
func (b *ObjectLoaderBuilder) WithLogger(l observability.Logger) *ObjectLoaderBuilder {
	b.logger = l
	return b
}
func (b *ObjectLoaderBuilder) WithAnomalies(r *recovery.Recorder) *ObjectLoaderBuilder {
	b.anomalies = r
	return b
}

// WithHeaderOffset sets the position of a displaced header; objects that do
// not frame at their xref offset are retried shifted by it.
func (b *ObjectLoaderBuilder) WithHeaderOffset(off int64) *ObjectLoaderBuilder {
	b.headerOffset = off
	return b
}
func (b *ObjectLoaderBuilder) WithLazyThreshold(n int64) *ObjectLoaderBuilder {
	b.lazyThreshold = n
	return b
}

// WithIndirectLength controls whether an indirect /Length is looked up
// through the xref table. When disabled the payload end is always scanned for.
func (b *ObjectLoaderBuilder) WithIndirectLength(enabled bool) *ObjectLoaderBuilder {
	b.noIndirectLength = !enabled
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xrefTable required")
	}
	limits := b.limits
	if limits == (security.Limits{}) {
		limits = security.DefaultLimits()
	} else {
		limits = limits.WithDefaults()
	}
	cache := b.cache
	if cache == nil {
		cache = NewMapCache()
	}
	fs := b.filters
	if fs == nil {
		fs = filters.NewStandardPipeline(filters.Limits{
			MaxDecompressedSize: limits.MaxObjectSize(),
			MaxDecodeRatio:      limits.MaxStreamDecodeRatio,
		})
	}
	return &objectLoader{
		reader:         b.reader,
		xrefTable:      b.xrefTable,
		limits:         limits,
		cache:          cache,
		recovery:       b.recovery,
		filters:        fs,
		log:            observability.OrNop(b.logger),
		anomalies:      b.anomalies,
		headerOffset:   b.headerOffset,
		lazyThreshold:  b.lazyThreshold,
		indirectLength: !b.noIndirectLength,
		objstm:         make(map[int]*objectStream),
		opening:        make(map[int]bool),
	}, nil
}

type objectLoader struct {
	reader         io.ReaderAt
	xrefTable      xref.Table
	limits         security.Limits
	cache          Cache
	recovery       recovery.Strategy
	filters        filters.Service
	log            observability.Logger
	anomalies      *recovery.Recorder
	headerOffset   int64
	lazyThreshold  int64
	indirectLength bool

	mu sync.Mutex

	// depth counts nested load calls. parsers[d] serves loads at depth d+1,
	// so a nested load never moves the cursor of the one that triggered it.
	depth   int
	parsers []*raw.ValueParser
	ctx     context.Context
	objstm  map[int]*objectStream
	opening map[int]bool
}

// objectStream is a decoded object stream with its header parsed.
type objectStream struct {
	nums    []int
	offsets []int64
	first   int64
	vp      *raw.ValueParser
	values  map[int]raw.Object
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := o.cache.Get(ref); ok {
		return obj, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.enter(ctx)()
	return o.load(ctx, ref)
}

func (o *objectLoader) LoadIndirect(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if o.limits.EnableRecursionChecks && depth > o.limits.MaxDepth {
		err := recovery.RecursionExceeded("load indirect", -1, fmt.Errorf("object %v: depth %d above %d", ref, depth, o.limits.MaxDepth))
		if !o.allows(ctx, err, ref, -1) {
			return nil, err
		}
		o.anomalies.Record(recovery.AnomalyRecursionLimit, err.Error())
		return raw.NullObj{}, nil
	}
	return o.Load(ctx, ref)
}

func (o *objectLoader) LoadFromObjectStream(ctx context.Context, streamNum, index int) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.enter(ctx)()
	return o.loadCompressed(ctx, raw.ObjectRef{Num: -1}, streamNum, index)
}

func (o *objectLoader) Resolve(ctx context.Context, obj raw.Object) (raw.Object, error) {
	r, ok := obj.(raw.RefObj)
	if !ok {
		return obj, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.enter(ctx)()
	seen := make(map[raw.ObjectRef]bool)
	for ok {
		if seen[r.R] {
			err := recovery.RecursionExceeded("resolve reference", -1, fmt.Errorf("object %v refers back to itself", r.R))
			if !o.allows(ctx, err, r.R, -1) {
				return nil, err
			}
			o.log.Warn("reference cycle, substituting null", observability.String("object", r.R.String()))
			o.anomalies.Record(recovery.AnomalyRecursionLimit, err.Error())
			return raw.NullObj{}, nil
		}
		seen[r.R] = true
		v, err := o.load(ctx, r.R)
		if err != nil {
			return nil, err
		}
		obj = v
		r, ok = v.(raw.RefObj)
	}
	return obj, nil
}

func (o *objectLoader) StreamBytes(ctx context.Context, st *raw.StreamObj) ([]byte, error) {
	if st == nil {
		return nil, errors.New("nil stream")
	}
	lazy, ok := st.Payload.(raw.LazyData)
	if !ok {
		return st.RawData(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := o.limits.MaxObjectSize(); limit > 0 && lazy.Length > limit {
		return nil, recovery.ResourceExceeded("read stream", lazy.Offset,
			fmt.Errorf("payload of %d bytes above object limit %d", lazy.Length, limit))
	}
	buf := make([]byte, lazy.Length)
	n, err := o.reader.ReadAt(buf, lazy.Offset)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read stream at %d: %w", lazy.Offset, err)
	}
	return buf, nil
}

func (o *objectLoader) DecodeStream(ctx context.Context, st *raw.StreamObj) ([]byte, error) {
	if st == nil {
		return nil, errors.New("nil stream")
	}
	if d, ok := st.Payload.(raw.DecodedData); ok {
		return []byte(d), nil
	}
	data, err := o.StreamBytes(ctx, st)
	if err != nil {
		return nil, err
	}
	names, params := filters.ExtractFilters(st.Dict)
	return o.filters.DecodeWithLimits(ctx, data, names, params, o.limits.MaxObjectSize(), o.limits.MaxStreamDecodeRatio)
}

// enter pins ctx for the length resolver of nested parses. It returns the
// function that restores the previous one.
func (o *objectLoader) enter(ctx context.Context) func() {
	prev := o.ctx
	o.ctx = ctx
	return func() { o.ctx = prev }
}

// load is Load without the lock. Every nested load passes through here, so
// the depth guard sees the whole chain.
func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := o.cache.Get(ref); ok {
		return obj, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.depth++
	defer func() { o.depth-- }()
	if o.limits.EnableRecursionChecks && o.depth > o.limits.MaxDepth {
		err := recovery.RecursionExceeded("load object", -1, fmt.Errorf("object %v: load depth above %d", ref, o.limits.MaxDepth))
		if !o.allows(ctx, err, ref, -1) {
			return nil, err
		}
		o.log.Warn("load depth exceeded, substituting null", observability.String("object", ref.String()))
		o.anomalies.Record(recovery.AnomalyRecursionLimit, err.Error())
		return raw.NullObj{}, nil
	}

	entry, found := o.xrefTable.Entry(ref.Num)
	var obj raw.Object = raw.NullObj{}
	switch {
	case !found:
		o.log.Debug("object not in xref", observability.String("object", ref.String()))
	case entry.Type == xref.EntryInUse && entry.Gen == ref.Gen:
		v, err := o.loadAtOffset(ctx, ref, entry.Offset)
		if err != nil {
			return nil, err
		}
		obj = v
	case entry.Type == xref.EntryCompressed && ref.Gen == 0:
		v, err := o.loadCompressed(ctx, ref, entry.Stream, entry.Index)
		if err != nil {
			return nil, err
		}
		obj = v
	}
	o.cache.Put(ref, obj)
	return obj, nil
}

// parser returns the value parser reserved for the current load depth.
func (o *objectLoader) parser() *raw.ValueParser {
	level := max(o.depth, 1)
	for len(o.parsers) < level {
		s := scanner.New(o.reader, scanner.Config{
			MaxStringLength: o.limits.MaxStringLength,
			MaxStreamLength: o.limits.MaxObjectSize(),
			LazyThreshold:   o.lazyThreshold,
			Recovery:        o.recovery,
		})
		cfg := raw.ValueParserConfig{
			MaxNesting: o.limits.MaxNesting,
			Recovery:   o.recovery,
			Logger:     o.log,
			Anomalies:  o.anomalies,
		}
		if o.indirectLength {
			cfg.ResolveLength = o.resolveLength
		}
		o.parsers = append(o.parsers, raw.NewValueParser(s, cfg))
	}
	return o.parsers[level-1]
}

func (o *objectLoader) resolveLength(ref raw.ObjectRef) (int64, bool) {
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	obj, err := o.load(ctx, ref)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(raw.NumberObj)
	if !ok || !n.IsInt || n.I < 0 {
		return 0, false
	}
	return n.I, true
}

func (o *objectLoader) frameAt(ref raw.ObjectRef, offset int64) (*raw.IndirectObject, error) {
	vp := o.parser()
	if err := vp.Seek(offset); err != nil {
		return nil, err
	}
	return vp.ParseIndirectObject()
}

func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64) (raw.Object, error) {
	ind, err := o.frameAt(ref, offset)
	if o.headerOffset > 0 && (err != nil || ind.Ref != ref) {
		if shifted, serr := o.frameAt(ref, offset+o.headerOffset); serr == nil && shifted.Ref == ref {
			ind, err = shifted, nil
		}
	}
	if err != nil {
		err = fmt.Errorf("load object %v at %d: %w", ref, offset, err)
		if !o.allows(ctx, err, ref, offset) {
			return nil, err
		}
		o.log.Warn("object unparsable, substituting null",
			observability.String("object", ref.String()),
			observability.Int64("offset", offset),
			observability.Error("error", err))
		o.anomalies.RecordAt(recovery.AnomalyObjectParseRecovered, err.Error(), offset)
		return raw.NullObj{}, nil
	}
	if ind.Ref != ref {
		o.log.Warn("object id mismatch, substituting null",
			observability.String("want", ref.String()),
			observability.String("got", ind.Ref.String()),
			observability.Int64("offset", offset))
		o.anomalies.RecordAt(recovery.AnomalyObjectIDMismatch,
			fmt.Sprintf("expected %v, found %v", ref, ind.Ref), offset)
		return raw.NullObj{}, nil
	}
	return ind.Value, nil
}

// loadCompressed returns entry index of object stream streamNum. A ref with
// a negative number skips the object number check.
func (o *objectLoader) loadCompressed(ctx context.Context, ref raw.ObjectRef, streamNum, index int) (raw.Object, error) {
	os, err := o.objectStream(ctx, streamNum)
	if err != nil {
		if !o.allows(ctx, err, ref, -1) {
			return nil, err
		}
		o.log.Warn("object stream unusable, substituting null",
			observability.Int("stream", streamNum),
			observability.Error("error", err))
		o.anomalies.Record(recovery.AnomalyObjectStreamInvalid, err.Error())
		return raw.NullObj{}, nil
	}
	if index < 0 || index >= len(os.nums) {
		o.anomalies.Record(recovery.AnomalyObjectStreamInvalid,
			fmt.Sprintf("object stream %d has %d entries, index %d requested", streamNum, len(os.nums), index))
		return raw.NullObj{}, nil
	}
	if ref.Num >= 0 && os.nums[index] != ref.Num {
		found := false
		for i, n := range os.nums {
			if n == ref.Num {
				index, found = i, true
				break
			}
		}
		if !found {
			o.anomalies.Record(recovery.AnomalyObjectIDMismatch,
				fmt.Sprintf("object stream %d index %d holds object %d, expected %d", streamNum, index, os.nums[index], ref.Num))
			return raw.NullObj{}, nil
		}
	}
	if v, ok := os.values[index]; ok {
		return v, nil
	}
	if err := os.vp.Seek(os.first + os.offsets[index]); err != nil {
		return nil, err
	}
	v, err := os.vp.ParseValue()
	if err != nil {
		err = fmt.Errorf("object stream %d entry %d: %w", streamNum, index, err)
		if !o.allows(ctx, err, ref, -1) {
			return nil, err
		}
		o.anomalies.Record(recovery.AnomalyObjectParseRecovered, err.Error())
		v = raw.NullObj{}
	}
	os.values[index] = v
	return v, nil
}

// objectStream loads, decodes and indexes an object stream. The container is
// loaded through load, so it shares the depth guard.
func (o *objectLoader) objectStream(ctx context.Context, num int) (*objectStream, error) {
	if os, ok := o.objstm[num]; ok {
		return os, nil
	}
	if o.opening[num] {
		return nil, recovery.RecursionExceeded("load object stream", -1, fmt.Errorf("object stream %d contains itself", num))
	}
	o.opening[num] = true
	defer delete(o.opening, num)
	container, err := o.load(ctx, raw.ObjectRef{Num: num})
	if err != nil {
		return nil, err
	}
	st, ok := container.(*raw.StreamObj)
	if !ok {
		return nil, recovery.InvalidReference("load object stream", -1, fmt.Errorf("object %d is %s, not a stream", num, container.Type()))
	}
	data, err := o.DecodeStream(ctx, st)
	if err != nil {
		if recovery.CodeOf(err) == recovery.CodeResourceExceeded {
			return nil, err
		}
		return nil, recovery.Malformed("decode object stream", -1, fmt.Errorf("object %d: %w", num, err))
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	if n < 0 || first < 0 || first > int64(len(data)) {
		return nil, recovery.Malformed("load object stream", -1, fmt.Errorf("object %d: /N %d /First %d over %d bytes", num, n, first, len(data)))
	}

	s := scanner.New(bytes.NewReader(data), scanner.Config{
		MaxStringLength: o.limits.MaxStringLength,
		Recovery:        o.recovery,
	})
	vp := raw.NewValueParser(s, raw.ValueParserConfig{
		MaxNesting: o.limits.MaxNesting,
		Recovery:   o.recovery,
		Logger:     o.log,
		Anomalies:  o.anomalies,
	})
	os := &objectStream{first: first, vp: vp, values: make(map[int]raw.Object)}
	for i := int64(0); i < n; i++ {
		objNum, ok1 := headerInt(vp, first)
		rel, ok2 := headerInt(vp, first)
		if !ok1 || !ok2 {
			err := recovery.Malformed("load object stream", -1, fmt.Errorf("object %d: header lists %d of %d pairs", num, i, n))
			if len(os.nums) == 0 || !o.allows(ctx, err, raw.ObjectRef{Num: num}, -1) {
				return nil, err
			}
			o.anomalies.Record(recovery.AnomalyObjectStreamInvalid, err.Error())
			break
		}
		os.nums = append(os.nums, int(objNum))
		os.offsets = append(os.offsets, rel)
	}
	o.objstm[num] = os
	return os, nil
}

// headerInt reads one non-negative integer from the object stream header,
// which ends at first.
func headerInt(vp *raw.ValueParser, first int64) (int64, bool) {
	tok, err := vp.Token()
	if err != nil || tok.Pos >= first || tok.Type != scanner.TokenNumber || !tok.IsInt || tok.Int < 0 {
		return 0, false
	}
	return tok.Int, true
}

func (o *objectLoader) allows(ctx context.Context, err error, ref raw.ObjectRef, off int64) bool {
	return recovery.Allows(o.recovery, ctx, err, recovery.Location{
		ByteOffset: off,
		ObjectNum:  ref.Num,
		ObjectGen:  ref.Gen,
		Component:  "loader",
	})
}
