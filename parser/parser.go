package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstruct/filters"
	"github.com/wudi/pdfstruct/ir/graph"
	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
	"github.com/wudi/pdfstruct/security"
	"github.com/wudi/pdfstruct/xref"
)

const (
	// headerWindow is how far into the file a displaced header is looked for.
	headerWindow = 1024
	// linearizedWindow bounds where the linearization dictionary may start.
	linearizedWindow = 1024
)

// Config controls document parsing: xref resolution, object loading and
// structure discovery.
type Config struct {
	// Recovery decides whether malformed input is an error or an anomaly.
	// Nil is tolerant; pass recovery.NewStrictStrategy() for strict parsing.
	Recovery recovery.Strategy
	Limits   security.Limits
	Logger   observability.Logger
	Filters  filters.Service
	// Cache memoizes loaded objects. Nil gets a fresh MapCache per parse.
	Cache Cache
	// Fingerprint computes a BLAKE2b-256 digest of the whole source.
	Fingerprint bool
	// ScanIndirectLength skips xref lookups for an indirect stream /Length
	// and always scans for endstream instead.
	ScanIndirectLength bool
	// LazyStreamThreshold keeps payloads of at least this many bytes on disk
	// until ObjectLoader.StreamBytes is called. Zero reads them eagerly.
	LazyStreamThreshold int64
}

// LinearizationInfo mirrors the linearization parameter dictionary. It is
// detected only; nothing uses it to read the file progressively.
type LinearizationInfo struct {
	Ref        raw.ObjectRef
	Version    float64
	FileLength int64
	HintOffset int64
	HintLength int64
	// ObjectCount is /N, the number of pages.
	ObjectCount     int
	FirstPageObject int
	FirstPageEnd    int64
	MainXRefEntries int64
}

// Document is the structural view of one parsed file.
type Document struct {
	Version      string
	Major, Minor int
	// HeaderOffset is where %PDF- was found; non-zero for displaced headers.
	HeaderOffset  int64
	Size          int64
	Linearization *LinearizationInfo

	XRef      xref.Table
	Revisions []xref.Revision
	Trailer   *raw.DictObj
	Hybrid    bool
	Recovered bool

	CatalogRef raw.ObjectRef
	Catalog    *raw.DictObj
	// Pages lists page objects in document order.
	Pages     []raw.ObjectRef
	Info      *raw.DictObj
	Metadata  *Metadata
	Encrypted bool
	// Encryption describes the /Encrypt dictionary. Strings and streams are
	// left as stored; nothing is decrypted.
	Encryption *security.EncryptionInfo

	Graph     *graph.Graph
	Anomalies []recovery.Anomaly
	// Fingerprint is set when Config.Fingerprint is.
	Fingerprint []byte

	loader ObjectLoader
}

// Load returns the object ref through the session's loader and cache.
func (d *Document) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return d.loader.Load(ctx, ref)
}

// Loader exposes the object loader for downstream layers.
func (d *Document) Loader() ObjectLoader { return d.loader }

func (d *Document) PageCount() int { return len(d.Pages) }

// DocumentParser sequences header, linearization, xref and structure parsing.
type DocumentParser struct {
	cfg   Config
	log   observability.Logger
	state State
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	} else {
		cfg.Limits = cfg.Limits.WithDefaults()
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.NewStandardPipeline(filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxObjectSize(),
			MaxDecodeRatio:      cfg.Limits.MaxStreamDecodeRatio,
		})
	}
	return &DocumentParser{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// Tolerant reports whether Parse recovers from malformed input.
func (p *DocumentParser) Tolerant() bool { return recovery.IsTolerant(p.cfg.Recovery) }

// State is the last state the most recent Parse reached.
func (p *DocumentParser) State() State { return p.state }

// session is the mutable state of one Parse call.
type session struct {
	p         *DocumentParser
	r         io.ReaderAt
	doc       *Document
	anomalies *recovery.Recorder
	loader    ObjectLoader

	// trailerNode is the graph node holding the trailer dictionary.
	trailerNode graph.NodeID
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	p.state = StateStart
	s := &session{
		p:         p,
		r:         r,
		doc:       &Document{Graph: graph.New()},
		anomalies: &recovery.Recorder{},
	}
	p.log.Debug("parse started", observability.Bool("tolerant", p.Tolerant()))
	if err := s.run(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", p.state, err)
	}
	return s.doc, nil
}

func (s *session) run(ctx context.Context) error {
	if err := s.readHeader(ctx); err != nil {
		return err
	}
	s.advance(StateHeaderRead, observability.String("version", s.doc.Version))

	s.detectLinearization()
	s.advance(StateLinearizationChecked, observability.Bool("linearized", s.doc.Linearization != nil))

	if err := s.resolveXRef(ctx); err != nil {
		return err
	}
	s.advance(StateXRefChainParsed,
		observability.Int("objects", s.doc.XRef.Len()),
		observability.Int("revisions", len(s.doc.Revisions)))

	loader, err := s.p.buildLoader(s.r, s.doc.XRef, s.doc.HeaderOffset, s.anomalies)
	if err != nil {
		return err
	}
	s.loader, s.doc.loader = loader, loader

	if err := s.parseStructure(ctx); err != nil {
		return err
	}
	s.advance(StateStructureParsed, observability.Int("pages", len(s.doc.Pages)))

	if err := s.resolveReferences(ctx); err != nil {
		return err
	}
	s.advance(StateReferencesResolved, observability.Int("nodes", s.doc.Graph.Len()))

	if s.p.cfg.Fingerprint {
		sum, err := Fingerprint(s.r, s.doc.Size)
		if err != nil {
			return err
		}
		s.doc.Fingerprint = sum
	}
	s.doc.Anomalies = s.anomalies.Anomalies()
	for _, a := range s.doc.Anomalies {
		s.doc.Graph.RecordAnomaly(a)
	}
	s.advance(StateDone, observability.Int("anomalies", len(s.doc.Anomalies)))
	return nil
}

func (s *session) advance(st State, fields ...observability.Field) {
	s.p.state = st
	s.p.log.Debug("parse state", append([]observability.Field{observability.String("state", st.String())}, fields...)...)
}

func (s *session) allows(ctx context.Context, err error, off int64, component string) bool {
	return recovery.Allows(s.p.cfg.Recovery, ctx, err, recovery.Location{ByteOffset: off, Component: component})
}

// readHeader checks the source size and parses %PDF-M.m.
func (s *session) readHeader(ctx context.Context) error {
	size, err := xref.SourceSize(s.r)
	if err != nil {
		return fmt.Errorf("measure source: %w", err)
	}
	s.doc.Size = size
	if limit := s.p.cfg.Limits.MaxFileSize(); limit > 0 && size > limit {
		return recovery.ResourceExceeded("read header", 0, fmt.Errorf("file is %d bytes, limit %d", size, limit))
	}

	head := make([]byte, min(size, headerWindow))
	n, err := s.r.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}
	head = head[:n]

	major, minor, off, ok := scanner.FindHeader(head)
	if ok && off == 0 {
		s.setVersion(major, minor, 0)
		return nil
	}
	herr := recovery.Syntax("read header", 0, errors.New("file does not start with %PDF-"))
	if !s.allows(ctx, herr, 0, "header") {
		return herr
	}
	if ok {
		s.p.log.Warn("header displaced", observability.Int("offset", off))
		s.anomalies.RecordAt(recovery.AnomalyHeaderDisplaced, fmt.Sprintf("%%PDF- header at byte %d", off), int64(off))
		s.setVersion(major, minor, int64(off))
		return nil
	}
	s.p.log.Warn("header missing, assuming 1.7", observability.Int64("size", size))
	s.anomalies.Record(recovery.AnomalyHeaderDisplaced, "no %PDF- header, assuming version 1.7")
	s.setVersion(1, 7, 0)
	return nil
}

func (s *session) setVersion(major, minor int, off int64) {
	s.doc.Major, s.doc.Minor = major, minor
	s.doc.Version = fmt.Sprintf("%d.%d", major, minor)
	s.doc.HeaderOffset = off
}

// detectLinearization parses the first object after the header. Failures
// only mean the file is not linearized.
func (s *session) detectLinearization() {
	sc := scanner.New(s.r, scanner.Config{
		MaxStringLength: s.p.cfg.Limits.MaxStringLength,
		MaxStreamLength: s.p.cfg.Limits.MaxObjectSize(),
	})
	vp := raw.NewValueParser(sc, raw.ValueParserConfig{MaxNesting: s.p.cfg.Limits.MaxNesting})
	if err := vp.Seek(s.doc.HeaderOffset); err != nil {
		return
	}
	ind, err := vp.ParseIndirectObject()
	if err != nil || ind.Offset-s.doc.HeaderOffset > linearizedWindow {
		return
	}
	d, ok := ind.Value.(*raw.DictObj)
	if !ok {
		return
	}
	v, ok := d.Lookup("Linearized")
	if !ok {
		return
	}
	info := &LinearizationInfo{Ref: ind.Ref}
	if n, ok := v.(raw.NumberObj); ok {
		info.Version = n.Float()
	}
	info.FileLength, _ = d.Int("L")
	if h, ok := d.Lookup("H"); ok {
		if arr, ok := h.(*raw.ArrayObj); ok {
			info.HintOffset = arrayInt(arr, 0)
			info.HintLength = arrayInt(arr, 1)
		}
	}
	n, _ := d.Int("N")
	info.ObjectCount = int(n)
	o, _ := d.Int("O")
	info.FirstPageObject = int(o)
	info.FirstPageEnd, _ = d.Int("E")
	info.MainXRefEntries, _ = d.Int("T")
	s.doc.Linearization = info
}

func arrayInt(a *raw.ArrayObj, i int) int64 {
	v, ok := a.Get(i)
	if !ok {
		return 0
	}
	if n, ok := v.(raw.NumberObj); ok {
		return n.Int()
	}
	return 0
}

func (s *session) resolveXRef(ctx context.Context) error {
	lim := s.p.cfg.Limits
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth:   lim.MaxXRefDepth,
		Recovery:       s.p.cfg.Recovery,
		Filters:        s.p.cfg.Filters,
		Logger:         s.p.log,
		Anomalies:      s.anomalies,
		MaxObjectSize:  lim.MaxObjectSize(),
		MaxDecodeRatio: lim.MaxStreamDecodeRatio,
		HeaderOffset:   s.doc.HeaderOffset,
		Size:           s.doc.Size,
	})
	table, err := resolver.Resolve(ctx, s.r)
	if err != nil {
		return fmt.Errorf("resolve xref: %w", err)
	}
	if resolver.Recovered() {
		s.advance(StateXRefRecoveryScan, observability.Int("objects", table.Len()))
	} else {
		s.advance(StateXRefLocated, observability.String("kind", table.Type()))
	}
	s.doc.XRef = table
	s.doc.Revisions = resolver.Revisions()
	s.doc.Trailer = resolver.Trailer()
	if s.doc.Trailer == nil {
		s.doc.Trailer = table.Trailer()
	}
	if s.doc.Trailer == nil {
		s.doc.Trailer = raw.Dict()
	}
	s.doc.Hybrid = resolver.Hybrid()
	s.doc.Recovered = resolver.Recovered()
	return nil
}

func (p *DocumentParser) buildLoader(r io.ReaderAt, table xref.Table, headerOffset int64, anomalies *recovery.Recorder) (ObjectLoader, error) {
	cache := p.cfg.Cache
	if cache == nil {
		cache = NewMapCache()
	}
	return (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithCache(cache).
		WithRecovery(p.cfg.Recovery).
		WithFilters(p.cfg.Filters).
		WithLogger(p.log).
		WithAnomalies(anomalies).
		WithHeaderOffset(headerOffset).
		WithLazyThreshold(p.cfg.LazyStreamThreshold).
		WithIndirectLength(!p.cfg.ScanIndirectLength).
		Build()
}

// Fingerprint returns the BLAKE2b-256 digest of the first size bytes of r.
func Fingerprint(r io.ReaderAt, size int64) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, size)); err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	return h.Sum(nil), nil
}
