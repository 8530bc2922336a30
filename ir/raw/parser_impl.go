package raw

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
)

// DefaultMaxNesting bounds array and dictionary nesting inside one value.
const DefaultMaxNesting = 256

// ValueParserConfig controls value parsing behavior.
type ValueParserConfig struct {
	MaxNesting int
	Recovery   recovery.Strategy
	Logger     observability.Logger
	Anomalies  *recovery.Recorder
	// ResolveLength resolves an indirect /Length. When nil, or when it
	// reports false, the payload end is found by scanning for endstream.
	ResolveLength func(ObjectRef) (int64, bool)
}

// IndirectObject is one "N G obj ... endobj" frame.
type IndirectObject struct {
	Ref    ObjectRef
	Value  Object
	Offset int64
	// Recovered is set when the value could not be parsed and Null was substituted.
	Recovered bool
}

// ValueParser builds objects from the token stream of a scanner.
type ValueParser struct {
	s   scanner.Scanner
	cfg ValueParserConfig
	log observability.Logger
	buf []scanner.Token
}

func NewValueParser(s scanner.Scanner, cfg ValueParserConfig) *ValueParser {
	if cfg.MaxNesting <= 0 {
		cfg.MaxNesting = DefaultMaxNesting
	}
	return &ValueParser{s: s, cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// Seek repositions the underlying scanner and drops any buffered lookahead.
func (p *ValueParser) Seek(offset int64) error {
	p.buf = p.buf[:0]
	return p.s.Seek(offset)
}

// Position is the offset of the next unread token, or the scanner position.
func (p *ValueParser) Position() int64 {
	if l := len(p.buf); l > 0 {
		return p.buf[l-1].Pos
	}
	return p.s.Position()
}

// Token returns the next raw token.
func (p *ValueParser) Token() (scanner.Token, error) {
	if l := len(p.buf); l > 0 {
		t := p.buf[l-1]
		p.buf = p.buf[:l-1]
		return t, nil
	}
	return p.s.Next()
}

// Unread pushes tok back so the next Token call returns it.
func (p *ValueParser) Unread(tok scanner.Token) {
	p.buf = append(p.buf, tok)
}

// ParseValue parses one direct value. Nesting beyond MaxNesting is a hard error.
func (p *ValueParser) ParseValue() (Object, error) {
	return p.parseValue(0)
}

func (p *ValueParser) parseValue(depth int) (Object, error) {
	tok, err := p.Token()
	if err != nil {
		return nil, eofAsSyntax("parse value", p.s.Position(), err)
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		if depth+1 > p.cfg.MaxNesting {
			return nil, recovery.RecursionExceeded("parse array", tok.Pos, fmt.Errorf("nesting deeper than %d", p.cfg.MaxNesting))
		}
		return p.parseArray(depth + 1)
	case scanner.TokenDict:
		if depth+1 > p.cfg.MaxNesting {
			return nil, recovery.RecursionExceeded("parse dictionary", tok.Pos, fmt.Errorf("nesting deeper than %d", p.cfg.MaxNesting))
		}
		return p.parseDict(depth + 1)
	}
	p.Unread(tok)
	return nil, recovery.Syntax("parse value", tok.Pos, fmt.Errorf("unexpected %s token %q", tok.Type, tok.Str))
}

func (p *ValueParser) parseArray(depth int) (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := p.Token()
		if err != nil {
			return nil, eofAsSyntax("parse array", p.s.Position(), err)
		}
		if tok.Type == scanner.TokenKeyword {
			switch tok.Str {
			case "]":
				return arr, nil
			case "endobj", "endstream", ">>":
				p.Unread(tok)
				return nil, recovery.Syntax("parse array", tok.Pos, errors.New("unterminated array"))
			}
		}
		p.Unread(tok)
		item, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (p *ValueParser) parseDict(depth int) (Object, error) {
	d := Dict()
	for {
		tok, err := p.Token()
		if err != nil {
			return nil, eofAsSyntax("parse dictionary", p.s.Position(), err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			p.Unread(tok)
			if tok.Type == scanner.TokenStream || (tok.Type == scanner.TokenKeyword && tok.Str == "endobj") {
				// Missing '>>': keep what was read when recovery allows it.
				err := recovery.Syntax("parse dictionary", tok.Pos, errors.New("unterminated dictionary"))
				if !recovery.Allows(p.cfg.Recovery, nil, err, recovery.Location{ByteOffset: tok.Pos, Component: "parser:dict"}) {
					return nil, err
				}
				p.log.Warn("dictionary missing '>>'", observability.Int64("offset", tok.Pos))
				p.cfg.Anomalies.RecordAt(recovery.AnomalyObjectParseRecovered, "unterminated dictionary", tok.Pos)
				return d, nil
			}
			return nil, recovery.Syntax("parse dictionary", tok.Pos, fmt.Errorf("expected name key, got %s", tok.Type))
		}
		val, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}
		d.SetKey(tok.Str, val)
	}
}

// ParseIndirectObject parses an "N G obj <value> [stream ... endstream] endobj" frame
// at the current position. A value that fails to parse is replaced by Null after
// skipping to the next endobj, when the recovery strategy allows it.
func (p *ValueParser) ParseIndirectObject() (*IndirectObject, error) {
	ref, start, err := p.parseObjectHeader()
	if err != nil {
		return nil, err
	}
	p.setLocation(ref)
	obj := &IndirectObject{Ref: ref, Offset: start}

	val, err := p.ParseValue()
	if err != nil {
		if !p.recoverable(err) || !recovery.Allows(p.cfg.Recovery, nil, err, p.location(ref, start)) {
			return nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
		}
		p.log.Warn("object value unparsable, substituting null",
			observability.Int("object", ref.Num),
			observability.Int("generation", ref.Gen),
			observability.Int64("offset", start),
			observability.Error("error", err))
		p.cfg.Anomalies.RecordAt(recovery.AnomalyObjectParseRecovered,
			fmt.Sprintf("object %d %d: %v", ref.Num, ref.Gen, err), start)
		p.skipToEndobj()
		obj.Value = NullObj{}
		obj.Recovered = true
		return obj, nil
	}

	if dict, ok := val.(*DictObj); ok {
		val, err = p.maybeStream(ref, dict)
		if err != nil {
			return nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
		}
	}
	obj.Value = val

	tok, err := p.Token()
	if err == nil && tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
		return obj, nil
	}
	if err == nil {
		p.Unread(tok)
	}
	missing := recovery.Syntax("parse indirect object", p.Position(), errors.New("missing endobj"))
	if !recovery.Allows(p.cfg.Recovery, nil, missing, p.location(ref, start)) {
		return nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, missing)
	}
	p.log.Debug("object without endobj", observability.Int("object", ref.Num), observability.Int64("offset", start))
	return obj, nil
}

func (p *ValueParser) parseObjectHeader() (ObjectRef, int64, error) {
	num, err := p.Token()
	if err != nil {
		return ObjectRef{}, 0, eofAsSyntax("parse object header", p.s.Position(), err)
	}
	start := num.Pos
	gen, err := p.Token()
	if err != nil {
		return ObjectRef{}, start, eofAsSyntax("parse object header", start, err)
	}
	kw, err := p.Token()
	if err != nil {
		return ObjectRef{}, start, eofAsSyntax("parse object header", start, err)
	}
	if num.Type != scanner.TokenNumber || !num.IsInt || num.Int < 0 ||
		gen.Type != scanner.TokenNumber || !gen.IsInt || gen.Int < 0 ||
		kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return ObjectRef{}, start, recovery.Syntax("parse object header", start, errors.New("expected 'N G obj'"))
	}
	return ObjectRef{Num: int(num.Int), Gen: int(gen.Int)}, start, nil
}

// maybeStream attaches the stream payload that may follow a dictionary.
func (p *ValueParser) maybeStream(ref ObjectRef, dict *DictObj) (Object, error) {
	hint, declared := p.lengthHint(dict)
	p.s.SetNextStreamLength(hint)
	tok, err := p.Token()
	p.s.SetNextStreamLength(-1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dict, nil
		}
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		p.Unread(tok)
		return dict, nil
	}
	if tok.Scanned && declared {
		p.log.Warn("stream length disagrees with payload, scanned for endstream",
			observability.Int("object", ref.Num),
			observability.Int64("declared", hint),
			observability.Int64("actual", tok.DataLength))
		p.cfg.Anomalies.RecordAt(recovery.AnomalyStreamLength,
			fmt.Sprintf("object %d %d: /Length %d, payload %d bytes", ref.Num, ref.Gen, hint, tok.DataLength), tok.DataOffset)
	}
	if tok.Lazy {
		return &StreamObj{Dict: dict, Payload: LazyData{
			Offset:  tok.DataOffset,
			Length:  tok.DataLength,
			Filters: FilterNames(dict),
		}}, nil
	}
	return NewStream(dict, tok.Bytes), nil
}

// lengthHint returns the declared payload length, or -1 when it must be scanned for.
func (p *ValueParser) lengthHint(dict *DictObj) (int64, bool) {
	o, ok := dict.Lookup("Length")
	if !ok {
		return -1, false
	}
	switch l := o.(type) {
	case NumberObj:
		if l.IsInt && l.I >= 0 {
			return l.I, true
		}
	case RefObj:
		if p.cfg.ResolveLength != nil {
			if n, ok := p.cfg.ResolveLength(l.R); ok && n >= 0 {
				return n, true
			}
		}
	}
	return -1, false
}

func (p *ValueParser) skipToEndobj() {
	if len(p.buf) > 0 {
		earliest := p.buf[0].Pos
		for _, t := range p.buf {
			earliest = min(earliest, t.Pos)
		}
		p.buf = p.buf[:0]
		if err := p.s.Seek(earliest); err != nil {
			return
		}
	}
	_, _ = p.s.SkipPast("endobj")
}

// recoverable reports whether err may be downgraded by skipping to endobj.
// Resource and nesting bounds stay hard failures.
func (p *ValueParser) recoverable(err error) bool {
	switch recovery.CodeOf(err) {
	case recovery.CodeSyntax, recovery.CodeMalformedStructure:
		return true
	}
	return false
}

func (p *ValueParser) setLocation(ref ObjectRef) {
	if rc, ok := p.s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser"})
	}
}

func (p *ValueParser) location(ref ObjectRef, off int64) recovery.Location {
	return recovery.Location{ByteOffset: off, ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "parser"}
}

func eofAsSyntax(op string, off int64, err error) error {
	if errors.Is(err, io.EOF) {
		return recovery.Syntax(op, off, io.ErrUnexpectedEOF)
	}
	return err
}
