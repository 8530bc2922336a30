package scanner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wudi/pdfstruct/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New(bytes.NewReader([]byte(data)), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	// Dictionary start
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	// First key/value pair
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	// Array contents 1 2 3
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("expected array close, got %+v", tok)
	}
	// Boolean and null
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Flag" {
		t.Fatalf("expected Flag key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenBoolean || tok.Bool != true {
		t.Fatalf("expected true boolean, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Null" {
		t.Fatalf("expected Null key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null value, got %+v", tok)
	}
}

func TestScanner_NameHexEscapes(t *testing.T) {
	s := newScanner(t, "/Name#20With#23Hash", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenName {
		t.Fatalf("expected name, got %+v", tok)
	}
	if tok.Str != "Name With#Hash" {
		t.Fatalf("unexpected name decode: %v", tok.Str)
	}
}

func TestScanner_LiteralStringEscapes(t *testing.T) {
	s := newScanner(t, "(Hi\\n\\050\\051\\t)", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenString {
		t.Fatalf("expected string, got %+v", tok)
	}
	if !bytes.Equal(tok.Bytes, []byte("Hi\n()\t")) {
		t.Fatalf("unexpected literal string: %q", tok.Bytes)
	}
}

func TestScanner_LiteralStringLineContinuation(t *testing.T) {
	s := newScanner(t, "(Line\\\r\ncontinued)", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenString {
		t.Fatalf("expected string, got %+v", tok)
	}
	if got := string(tok.Bytes); got != "Linecontinued" {
		t.Fatalf("unexpected literal string with continuation: %q", got)
	}
}

func TestScanner_HexStringOddLength(t *testing.T) {
	s := newScanner(t, "<48656c6c6f3>", Config{})
	tok := nextToken(t, s)
	want := []byte("Hello0")
	if tok.Type != TokenString || !bytes.Equal(tok.Bytes, want) {
		t.Fatalf("expected padded hex string %q, got %+v", want, tok)
	}
}

func TestScanner_ReferenceDetection(t *testing.T) {
	s := newScanner(t, "12 5 R %comment\n", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenRef {
		t.Fatalf("expected ref, got %+v", tok)
	}
	if tok.Int != 12 || tok.Gen != 5 {
		t.Fatalf("unexpected ref value: %+v", tok)
	}
}

func TestScanner_StreamWithLength(t *testing.T) {
	data := "stream\r\nabcde\r\nendstream"
	s := newScanner(t, data, Config{})
	s.SetNextStreamLength(5)
	tok := nextToken(t, s)
	if tok.Type != TokenStream {
		t.Fatalf("expected stream token, got %+v", tok)
	}
	if string(tok.Bytes) != "abcde" {
		t.Fatalf("unexpected stream payload: %q", tok.Bytes)
	}
}

func TestScanner_StreamFallbackToEndstream(t *testing.T) {
	data := "stream\nabc\r\nendstream\n"
	s := newScanner(t, data, Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenStream {
		t.Fatalf("expected stream token, got %+v", tok)
	}
	if got := string(tok.Bytes); got != "abc" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_MaxStringLength(t *testing.T) {
	s := newScanner(t, "<000102>", Config{MaxStringLength: 2})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "hex string too long") {
		t.Fatalf("expected hex string too long error, got %v", err)
	}
}

func TestScanner_StreamCRPrecedingEndstream(t *testing.T) {
	data := "stream\rdata\rendstream\r"
	s := newScanner(t, data, Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenStream {
		t.Fatalf("expected stream token, got %+v", tok)
	}
	if got := string(tok.Bytes); got != "data" {
		t.Fatalf("unexpected stream payload: %q", got)
	}
}

func TestScanner_StreamScanLimit(t *testing.T) {
	data := "stream\nabc"
	s := newScanner(t, data, Config{MaxStreamScan: 2})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "endstream not found") {
		t.Fatalf("expected scan limit error, got %v", err)
	}
}

func TestScanner_MaxLiteralStringLength(t *testing.T) {
	s := newScanner(t, "(abcdef)", Config{MaxStringLength: 3})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "literal string too long") {
		t.Fatalf("expected literal string too long error, got %v", err)
	}
}

func TestScanner_MaxStreamLength(t *testing.T) {
	s := newScanner(t, "stream\nabcdef\nendstream", Config{MaxStreamLength: 3})
	s.SetNextStreamLength(6)
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "stream too long") {
		t.Fatalf("expected stream too long error, got %v", err)
	}
}


func TestScanner_StreamMissingEOL(t *testing.T) {
	// stream without required EOL before data
	data := "stream abc\nendstream"
	s := newScanner(t, data, Config{})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "missing EOL") {
		t.Fatalf("expected missing EOL error, got %v", err)
	}
}

func TestScanner_UnterminatedLiteralString(t *testing.T) {
	s := newScanner(t, "(abc", Config{})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "unterminated literal string") {
		t.Fatalf("expected unterminated literal string error, got %v", err)
	}
}

func TestScanner_UnterminatedHexString(t *testing.T) {
	s := newScanner(t, "<abc", Config{})
	if _, err := s.Next(); err == nil || !strings.Contains(err.Error(), "unterminated hex string") {
		t.Fatalf("expected unterminated hex string error, got %v", err)
	}
}

type fixRecovery struct{}

func (f *fixRecovery) OnError(ctx recovery.Context, err error, loc recovery.Location) recovery.Action {
	return recovery.ActionFix
}

func TestScanner_FixUnterminatedLiteralString(t *testing.T) {
	s := New(bytes.NewReader([]byte("(abc")), Config{Recovery: &fixRecovery{}})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("expected recovery to continue, got %v", err)
	}
	if tok.Type != TokenString || string(tok.Bytes) != "abc" {
		t.Fatalf("unexpected token after recovery: %+v", tok)
	}
}

func TestScanner_FixUnterminatedHexString(t *testing.T) {
	s := New(bytes.NewReader([]byte("<4142")), Config{Recovery: &fixRecovery{}})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("expected recovery to continue, got %v", err)
	}
	if tok.Type != TokenString || string(tok.Bytes) != "AB" {
		t.Fatalf("unexpected token after recovery: %+v", tok)
	}
}

func TestScanner_FixTruncatedStreamLength(t *testing.T) {
	s := New(bytes.NewReader([]byte("stream\nabc")), Config{Recovery: &fixRecovery{}})
	s.SetNextStreamLength(5)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("expected recovery to continue, got %v", err)
	}
	if tok.Type != TokenStream || string(tok.Bytes) != "abc" {
		t.Fatalf("unexpected stream payload after recovery: %+v", tok)
	}
}

func TestScanner_FixStreamScanLimit(t *testing.T) {
	s := New(bytes.NewReader([]byte("stream\nabc")), Config{MaxStreamScan: 1, Recovery: &fixRecovery{}})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("expected recovery to allow stream token, got %v", err)
	}
	if tok.Type != TokenStream || string(tok.Bytes) != "abc" {
		t.Fatalf("unexpected stream payload after recovery: %+v", tok)
	}
}

type recordRecovery struct {
	loc recovery.Location
	err error
}

func (r *recordRecovery) OnError(ctx recovery.Context, err error, loc recovery.Location) recovery.Action {
	r.loc = loc
	r.err = err
	return recovery.ActionWarn
}

func TestScanner_RecoveryContextIncludesObject(t *testing.T) {
	rec := &recordRecovery{}
	s := New(bytes.NewReader([]byte("<abc")), Config{Recovery: rec})
	if rc, ok := s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: 5, ObjectGen: 2, Component: "parser"})
	}
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected unterminated hex string error")
	}
	if rec.loc.ObjectNum != 5 || rec.loc.ObjectGen != 2 {
		t.Fatalf("expected object context 5 2, got %+v", rec.loc)
	}
	if !strings.Contains(rec.loc.Component, "scanner:hex") {
		t.Fatalf("expected component to include scanner:hex, got %q", rec.loc.Component)
	}
}

func TestScanner_StreamTrimsSingleEOL(t *testing.T) {
	s := newScanner(t, "stream\nabc\n\nendstream", Config{})
	tok := nextToken(t, s)
	if got := string(tok.Bytes); got != "abc\n" {
		t.Fatalf("expected only one EOL trimmed, got %q", got)
	}
	if !tok.Scanned {
		t.Fatalf("expected scanned stream")
	}
}

func TestScanner_StreamWrongLengthFallsBack(t *testing.T) {
	s := newScanner(t, "stream\nabcdef\nendstream endobj", Config{})
	s.SetNextStreamLength(3)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abcdef" || !tok.Scanned {
		t.Fatalf("expected fallback payload abcdef, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v", tok)
	}
}

func TestScanner_StreamLazyPayload(t *testing.T) {
	s := newScanner(t, "stream\n0123456789\nendstream", Config{LazyThreshold: 8})
	s.SetNextStreamLength(10)
	tok := nextToken(t, s)
	if !tok.Lazy || tok.Bytes != nil {
		t.Fatalf("expected lazy stream without bytes, got %+v", tok)
	}
	if tok.DataOffset != 7 || tok.DataLength != 10 {
		t.Fatalf("unexpected payload placement: offset %d length %d", tok.DataOffset, tok.DataLength)
	}
}

func TestScanner_EndstreamAcrossWindows(t *testing.T) {
	payload := strings.Repeat("x", 100)
	s := newScanner(t, "stream\n"+payload+"\nendstream", Config{WindowSize: 16})
	tok := nextToken(t, s)
	if string(tok.Bytes) != payload {
		t.Fatalf("unexpected payload length %d", len(tok.Bytes))
	}
}

func TestScanner_Markers(t *testing.T) {
	s := newScanner(t, "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj null endobj\n%%EOF\n", Config{Markers: true})
	tok := nextToken(t, s)
	if tok.Type != TokenHeader || tok.Str != "1.4" {
		t.Fatalf("expected header 1.4, got %+v", tok)
	}
	var last Token
	for {
		tok, err := s.Next()
		if err != nil {
			break
		}
		last = tok
	}
	if last.Type != TokenEOFMarker {
		t.Fatalf("expected EOF marker last, got %+v", last)
	}
}

func TestScanner_RefRequiresDelimitedR(t *testing.T) {
	s := newScanner(t, "1 0 RG", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenNumber || tok.Int != 1 {
		t.Fatalf("expected plain number, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || tok.Int != 0 {
		t.Fatalf("expected plain number, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "RG" {
		t.Fatalf("expected RG keyword, got %+v", tok)
	}
}

func TestScanner_Numbers(t *testing.T) {
	cases := []struct {
		in    string
		isInt bool
		i     int64
		f     float64
	}{
		{"42", true, 42, 42},
		{"-17", true, -17, -17},
		{"+5", true, 5, 5},
		{"3.5", false, 3, 3.5},
		{"-.25", false, 0, -0.25},
		{"4.", false, 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			tok := nextToken(t, newScanner(t, tc.in+" ", Config{}))
			if tok.Type != TokenNumber || tok.IsInt != tc.isInt || tok.Float != tc.f {
				t.Fatalf("unexpected number token: %+v", tok)
			}
			if tc.isInt && tok.Int != tc.i {
				t.Fatalf("expected %d, got %d", tc.i, tok.Int)
			}
		})
	}
}

func TestScanner_SkipPast(t *testing.T) {
	s := newScanner(t, "1 0 obj << /A ( >> endobj\n2 0 obj", Config{})
	off, err := s.SkipPast("endobj")
	if err != nil {
		t.Fatalf("skip past: %v", err)
	}
	if off != 19 {
		t.Fatalf("expected endobj at 19, got %d", off)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || tok.Int != 2 {
		t.Fatalf("expected object 2 after skip, got %+v", tok)
	}
	if _, err := s.SkipPast("endobj"); err == nil {
		t.Fatalf("expected EOF when marker is absent")
	}
}

func TestScanner_Seek(t *testing.T) {
	s := newScanner(t, "/A /B /C", Config{})
	if err := s.Seek(3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Str != "B" {
		t.Fatalf("expected B, got %+v", tok)
	}
	if err := s.Seek(100); err == nil {
		t.Fatalf("expected out of range seek to fail")
	}
}

func TestParseHeader(t *testing.T) {
	cases := []struct {
		in           string
		major, minor int
		ok           bool
	}{
		{"%PDF-1.7\n", 1, 7, true},
		{"%PDF-2.0", 2, 0, true},
		{"%PDF-x.y", 0, 0, false},
		{"PDF-1.4", 0, 0, false},
	}
	for _, tc := range cases {
		major, minor, ok := ParseHeader([]byte(tc.in))
		if ok != tc.ok || major != tc.major || minor != tc.minor {
			t.Fatalf("ParseHeader(%q) = %d %d %v", tc.in, major, minor, ok)
		}
	}
	_, minor, off, ok := FindHeader([]byte("junk\x00%PDF-bad %PDF-1.5\n"))
	if !ok || off != 14 || minor != 5 {
		t.Fatalf("FindHeader = minor %d off %d ok %v", minor, off, ok)
	}
}
