package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tdewolff/parse/v2/strconv"

	"github.com/wudi/pdfstruct/recovery"
)

type TokenType int

const (
	TokenDict      TokenType = iota // '<<'
	TokenArray                      // '['
	TokenName                       // '/Name'
	TokenString                     // literal or hex string
	TokenNumber                     // numeric value
	TokenBoolean                    // true/false
	TokenNull                       // null
	TokenRef                        // indirect ref '5 0 R'
	TokenStream                     // 'stream' keyword with its payload
	TokenKeyword                    // other keywords (obj, endobj, endstream, >>, ], etc.)
	TokenHeader                     // '%PDF-M.m' (only with Config.Markers)
	TokenEOFMarker                  // '%%EOF' (only with Config.Markers)
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	case TokenKeyword:
		return "keyword"
	case TokenHeader:
		return "header"
	case TokenEOFMarker:
		return "eof-marker"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token is one lexical atom. Which fields are meaningful depends on Type:
// names, keywords and header versions use Str; numbers use Int/IsInt/Float;
// references use Int (object number) and Gen; strings and stream payloads use Bytes.
type Token struct {
	Type  TokenType
	Str   string
	Int   int64
	IsInt bool
	Float float64
	Bool  bool
	Bytes []byte
	Hex   bool
	Gen   int
	Pos   int64

	// Stream payload placement. Scanned is set when the payload end was found
	// by searching for endstream instead of trusting the length hint. Lazy
	// is set when Bytes was left nil because the payload reached Config.LazyThreshold.
	DataOffset int64
	DataLength int64
	Scanned    bool
	Lazy       bool
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
	// SkipPast moves past the next occurrence of marker and returns the
	// offset where the marker starts.
	SkipPast(marker string) (int64, error)
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	MaxStreamScan   int64
	WindowSize      int64
	// LazyThreshold keeps stream payloads of at least this many bytes out of
	// Token.Bytes when their length is known up front. Zero disables it.
	LazyThreshold int64
	// Markers makes the scanner emit '%PDF-' and '%%EOF' comments as tokens.
	Markers  bool
	Recovery recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// ErrStreamTooLong is returned when a stream payload exceeds Config.MaxStreamLength.
var ErrStreamTooLong = errors.New("stream too long")

// pdfScanner incrementally buffers PDF data from a ReaderAt in fixed-size windows.
// data holds the bytes from base onward; pos is relative to base.
type pdfScanner struct {
	reader        ReaderAt
	base          int64
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	recLoc        recovery.Location
}

// New returns a scanner reading r on demand, one window at a time.
func New(r ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.base + s.pos }

// Seek moves to an absolute offset. Offsets outside the buffered window
// restart the window there instead of reading everything in between.
func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	rel := offset - s.base
	if rel < 0 || rel > int64(len(s.data))+s.chunkSize {
		s.base, s.data, s.eof = offset, nil, false
		rel = 0
	}
	if err := s.ensure(rel); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if rel > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = rel
	return nil
}
func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		if errors.Is(err, io.EOF) {
			return Token{}, io.EOF
		}
		return Token{}, err
	}
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	// Structural tokens
	switch c {
	case '%':
		return s.scanMarker()
	case '<':
		if s.peekAhead(1) == '<' { // dictionary start
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: s.base + start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: s.base + start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: s.base + start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: s.base + start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: s.base + start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	if !isDelimiter(c) {
		return s.scanKeyword()
	}
	// Stray delimiter such as ')' or '{'
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: s.base + start}, nil
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			if s.cfg.Markers && s.atMarker() {
				return nil
			}
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil {
					return err
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

func (s *pdfScanner) atMarker() bool {
	return s.hasPrefixAt(s.pos, "%PDF-") || s.hasPrefixAt(s.pos, "%%EOF")
}

func (s *pdfScanner) hasPrefixAt(off int64, prefix string) bool {
	if err := s.ensure(off + int64(len(prefix)) - 1); err != nil {
		return false
	}
	return string(s.data[off:off+int64(len(prefix))]) == prefix
}

// scanMarker emits header and EOF markers; other comments never reach here.
func (s *pdfScanner) scanMarker() (Token, error) {
	start := s.pos
	line := s.restOfLine()
	if bytes.HasPrefix(line, []byte("%%EOF")) {
		s.pos = start + 5
		return Token{Type: TokenEOFMarker, Str: "%%EOF", Pos: s.base + start}, nil
	}
	s.pos = start + int64(len(line))
	major, minor, ok := ParseHeader(line)
	if !ok {
		return s.Next()
	}
	return Token{Type: TokenHeader, Str: fmt.Sprintf("%d.%d", major, minor), Int: int64(major), Gen: minor, Pos: s.base + start}, nil
}

func (s *pdfScanner) restOfLine() []byte {
	end := s.pos
	for {
		if err := s.ensure(end); err != nil {
			break
		}
		if isEOL(s.data[end]) {
			break
		}
		end++
	}
	return s.data[s.pos:end]
}

func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	off := s.base + int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		s.eof = true
	}
	return nil
}

// indexFrom finds needle at or after off, loading more data as needed.
// limit bounds how far past off the search may go; zero means unbounded.
func (s *pdfScanner) indexFrom(off int64, needle []byte, limit int64, accept func(i int64) bool) (int64, error) {
	from := off
	for {
		if idx := bytes.Index(s.data[min(from, int64(len(s.data))):], needle); idx >= 0 {
			i := from + int64(idx)
			if limit > 0 && i-off > limit {
				return -1, nil
			}
			end := i + int64(len(needle))
			if err := s.ensure(end); err != nil && !errors.Is(err, io.EOF) {
				return -1, err
			}
			if accept == nil || accept(i) {
				return i, nil
			}
			from = i + 1
			continue
		}
		if limit > 0 && int64(len(s.data))-off > limit {
			return -1, nil
		}
		if s.eof {
			return -1, nil
		}
		// keep a needle-sized overlap so matches spanning windows are found
		from = max(off, int64(len(s.data))-int64(len(needle))+1)
		if err := s.loadMore(); err != nil {
			return -1, err
		}
	}
}

func (s *pdfScanner) SkipPast(marker string) (int64, error) {
	i, err := s.indexFrom(s.pos, []byte(marker), 0, nil)
	if err != nil {
		return -1, err
	}
	if i < 0 {
		s.pos = int64(len(s.data))
		return -1, io.EOF
	}
	s.pos = i + int64(len(marker))
	return s.base + i, nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && isHex(s.peekAhead(1)) && isHex(s.peekAhead(2)) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: s.base + start}, nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) { /* PDF 7.3.4.2 */
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if err := s.ensure(s.pos); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return Token{}, err
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r': // line continuation
				s.pos++
				if s.peekAhead(0) == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2; k++ {
					d := s.peekAhead(0)
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				continue
			}
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, recovery.ResourceExceeded("scan literal string", s.base+start, errors.New("literal string too long"))
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, recovery.Syntax("scan literal string", s.base+start, err)
		}
	}
	return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: s.base + start}, nil
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			if err := s.recover(fmt.Errorf("invalid hex digit %q", c), "hex"); err != nil {
				return Token{}, recovery.Syntax("scan hex string", s.base+start, err)
			}
			continue
		}
		hexbuf = append(hexbuf, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, recovery.Syntax("scan hex string", s.base+start, err)
		}
	}
	// If odd number of nibbles, pad with 0
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, recovery.ResourceExceeded("scan hex string", s.base+start, errors.New("hex string too long"))
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: s.base + start}, nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// scanStream consumes the payload following the 'stream' keyword.
// With a length hint the payload is read exactly and 'endstream' is expected
// right after it; otherwise, or when the hint proves wrong, the scanner
// searches for 'endstream' and trims one EOL before it.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	hint := s.nextStreamLen
	s.nextStreamLen = -1
	// PDF 7.3.8: stream keyword must be followed by EOL before data
	if err := s.ensure(s.pos); err != nil {
		if !errors.Is(err, io.EOF) {
			return Token{}, err
		}
		if recErr := s.recover(errors.New("stream missing data"), "stream"); recErr != nil {
			return Token{}, recovery.Syntax("scan stream", s.base+start, recErr)
		}
		return Token{Type: TokenStream, Pos: s.base + start, DataOffset: s.base + s.pos}, nil
	}
	switch s.data[s.pos] {
	case '\r':
		s.pos++
		if s.peekAhead(0) == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, recovery.Syntax("scan stream", s.base+start, err)
		}
	}
	dataStart := s.pos

	if hint >= 0 {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, recovery.ResourceExceeded("scan stream", s.base+start, ErrStreamTooLong)
		}
		if end, ok := s.endstreamAfter(dataStart + hint); ok {
			tok := Token{Type: TokenStream, Pos: s.base + start, DataOffset: s.base + dataStart, DataLength: hint}
			if s.cfg.LazyThreshold > 0 && hint >= s.cfg.LazyThreshold {
				tok.Lazy = true
			} else {
				tok.Bytes = append([]byte(nil), s.data[dataStart:dataStart+hint]...)
			}
			s.pos = end
			return tok, nil
		}
	}

	accept := func(i int64) bool {
		return hasStreamBreakBefore(s.data, i, dataStart) &&
			(i+9 >= int64(len(s.data)) || isDelimiter(s.data[i+9]))
	}
	idx, err := s.indexFrom(dataStart, []byte("endstream"), s.cfg.MaxStreamScan, accept)
	if err != nil {
		return Token{}, err
	}
	after := idx + 9
	if idx < 0 {
		if recErr := s.recover(errors.New("endstream not found"), "stream"); recErr != nil {
			return Token{}, recovery.Syntax("scan stream", s.base+start, recErr)
		}
		// Salvage up to the next endobj, or the end of input.
		idx, err = s.indexFrom(dataStart, []byte("endobj"), 0, nil)
		if err != nil {
			return Token{}, err
		}
		if idx < 0 {
			idx = int64(len(s.data))
		}
		after = idx
	}
	end := trimOneEOL(s.data, dataStart, idx)
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, recovery.ResourceExceeded("scan stream", s.base+start, ErrStreamTooLong)
	}
	s.pos = after
	return Token{
		Type:       TokenStream,
		Bytes:      append([]byte(nil), s.data[dataStart:end]...),
		Pos:        s.base + start,
		DataOffset: s.base + dataStart,
		DataLength: end - dataStart,
		Scanned:    true,
	}, nil
}

// endstreamAfter reports whether 'endstream' follows off after optional
// whitespace, and returns the position just past it.
func (s *pdfScanner) endstreamAfter(off int64) (int64, bool) {
	if off < 0 {
		return 0, false
	}
	p := off
	for {
		if err := s.ensure(p); err != nil {
			return 0, false
		}
		if !isWhitespace(s.data[p]) {
			break
		}
		p++
	}
	if !s.hasPrefixAt(p, "endstream") {
		return 0, false
	}
	return p + 9, true
}

// trimOneEOL drops a single CRLF, LF or CR right before end.
func trimOneEOL(data []byte, dataStart, end int64) int64 {
	if end > dataStart && data[end-1] == '\n' {
		end--
		if end > dataStart && data[end-1] == '\r' {
			end--
		}
		return end
	}
	if end > dataStart && data[end-1] == '\r' {
		end--
	}
	return end
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *pdfScanner) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for {
		if err := s.ensure(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Token{}, err
		}
		if isDelimiter(s.data[s.pos]) {
			break
		}
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: s.base + start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: s.base + start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: s.base + start}, nil
	}
}

// scanNumberOrRef reads a number, and turns "N G R" into a single reference
// token by looking ahead for the trailing R.
func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberBytes()
	if num1 == nil {
		s.pos++
		return Token{}, recovery.Syntax("scan number", s.base+start, fmt.Errorf("invalid number %q", s.data[start]))
	}
	tok := numberToken(num1, s.base+start)

	if tok.IsInt && tok.Int >= 0 && isUnsignedDigits(num1) {
		afterFirst := s.pos
		if err := s.skipWSAndComments(); err == nil {
			num2 := s.scanNumberBytes()
			if num2 != nil && isUnsignedDigits(num2) {
				if err := s.skipWSAndComments(); err == nil && s.data[s.pos] == 'R' &&
					(s.peekAhead(1) == 0 || isDelimiter(s.peekAhead(1))) {
					s.pos++
					gen, _ := strconv.ParseInt(num2)
					return Token{Type: TokenRef, Int: tok.Int, Gen: int(gen), IsInt: true, Pos: s.base + start}, nil
				}
			}
		}
		s.pos = afterFirst
	}
	return tok, nil
}

func numberToken(b []byte, pos int64) Token {
	if bytes.IndexByte(b, '.') < 0 {
		if i, n := strconv.ParseInt(b); n == len(b) {
			return Token{Type: TokenNumber, Int: i, IsInt: true, Float: float64(i), Pos: pos}
		}
	}
	f, _ := strconv.ParseFloat(b)
	return Token{Type: TokenNumber, Float: f, Int: int64(f), Pos: pos}
}

func isUnsignedDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

func (s *pdfScanner) scanNumberBytes() []byte {
	start := s.pos
	seenDigit := false
	for {
		if err := s.ensure(s.pos); err != nil {
			break
		}
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			seenDigit = true
		} else if !(c == '.' || ((c == '+' || c == '-') && s.pos == start)) {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return nil
	}
	return s.data[start:s.pos]
}

func (s *pdfScanner) recover(err error, loc string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.base + s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	switch s.cfg.Recovery.OnError(nil, err, location) {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

// hasStreamBreakBefore returns true if the position i in data is preceded by a line break or whitespace boundary,
// making it a safe candidate for an endstream marker.
func hasStreamBreakBefore(data []byte, i int64, dataStart int64) bool {
	if i == dataStart {
		return true
	}
	return isWhitespace(data[i-1])
}

// ParseHeader parses a '%PDF-M.m' line prefix.
func ParseHeader(line []byte) (major, minor int, ok bool) {
	const prefix = "%PDF-"
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return 0, 0, false
	}
	rest := line[len(prefix):]
	dot := bytes.IndexByte(rest, '.')
	if dot <= 0 {
		return 0, 0, false
	}
	maj, n := strconv.ParseUint(rest[:dot])
	if n != dot {
		return 0, 0, false
	}
	min, n := strconv.ParseUint(rest[dot+1:])
	if n == 0 {
		return 0, 0, false
	}
	return int(maj), int(min), true
}

// FindHeader searches buf for a '%PDF-M.m' header and returns its offset.
func FindHeader(buf []byte) (major, minor int, offset int, ok bool) {
	from := 0
	for {
		i := bytes.Index(buf[from:], []byte("%PDF-"))
		if i < 0 {
			return 0, 0, -1, false
		}
		at := from + i
		if major, minor, ok := ParseHeader(buf[at:]); ok {
			return major, minor, at, true
		}
		from = at + 1
	}
}
