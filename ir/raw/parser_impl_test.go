package raw

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
)

func newValueParser(src string, cfg ValueParserConfig) *ValueParser {
	s := scanner.New(bytes.NewReader([]byte(src)), scanner.Config{})
	return NewValueParser(s, cfg)
}

func dictOf(kv ...interface{}) *DictObj {
	d := Dict()
	for i := 0; i+1 < len(kv); i += 2 {
		d.SetKey(kv[i].(string), kv[i+1].(Object))
	}
	return d
}

func TestParseValueVariants(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want Object
	}{
		{"null", "null", NullObj{}},
		{"bool", "true", Bool(true)},
		{"integer", "-12", NumberInt(-12)},
		{"real", "3.25", NumberFloat(3.25)},
		{"literal", `(a\)b)`, Str([]byte("a)b"))},
		{"hex odd", "<414>", HexStr([]byte("A@"))},
		{"name escape", "/A#42", NameLiteral("AB")},
		{"reference", "5 0 R", Ref(5, 0)},
		{"array", "[1 2 0 R /N]", NewArray(NumberInt(1), Ref(2, 0), NameLiteral("N"))},
		{"dict order", "<< /B 1 /A [true] >>", dictOf("B", NumberInt(1), "A", NewArray(Bool(true)))},
		{"nested", "<< /K << /L (x) >> >>", dictOf("K", dictOf("L", Str([]byte("x"))))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newValueParser(tc.src+" ", ValueParserConfig{}).ParseValue()
			if err != nil {
				t.Fatalf("parse %q: %v", tc.src, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseValueDuplicateKeyKeepsPosition(t *testing.T) {
	got, err := newValueParser("<< /A 1 /B 2 /A 3 >>", ValueParserConfig{}).ParseValue()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := got.(*DictObj)
	if diff := cmp.Diff([]string{"A", "B"}, d.Order); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if v, _ := d.Int("A"); v != 3 {
		t.Fatalf("expected last value to win, got %d", v)
	}
}

func TestParseValueNestingLimit(t *testing.T) {
	src := strings.Repeat("[", 300) + strings.Repeat("]", 300)
	_, err := newValueParser(src, ValueParserConfig{}).ParseValue()
	if !errors.Is(err, recovery.ErrRecursionExceeded) {
		t.Fatalf("expected recursion error, got %v", err)
	}

	src = strings.Repeat("[", 10) + strings.Repeat("]", 10)
	if _, err := newValueParser(src, ValueParserConfig{MaxNesting: 10}).ParseValue(); err != nil {
		t.Fatalf("nesting at the bound should parse: %v", err)
	}
}

func TestParseValueNestingIsHardInLenientFrame(t *testing.T) {
	src := "1 0 obj " + strings.Repeat("<< /A ", 20) + "endobj"
	p := newValueParser(src, ValueParserConfig{MaxNesting: 8, Recovery: recovery.NewLenientStrategy()})
	if _, err := p.ParseIndirectObject(); !errors.Is(err, recovery.ErrRecursionExceeded) {
		t.Fatalf("expected recursion error to stay fatal, got %v", err)
	}
}

func TestParseIndirectObjectStreamExactLength(t *testing.T) {
	src := "4 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	obj, err := newValueParser(src, ValueParserConfig{}).ParseIndirectObject()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj.Ref != (ObjectRef{Num: 4}) || obj.Offset != 0 {
		t.Fatalf("unexpected frame %+v", obj)
	}
	st, ok := obj.Value.(*StreamObj)
	if !ok {
		t.Fatalf("expected stream, got %T", obj.Value)
	}
	if got := string(st.RawData()); got != "hello" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestParseIndirectObjectWrongLengthFallsBack(t *testing.T) {
	rec := &recovery.Recorder{}
	src := "4 0 obj\n<< /Length 2 >>\nstream\nhello world\nendstream\nendobj\n"
	obj, err := newValueParser(src, ValueParserConfig{Anomalies: rec}).ParseIndirectObject()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := string(obj.Value.(*StreamObj).RawData()); got != "hello world" {
		t.Fatalf("unexpected payload %q", got)
	}
	if rec.Count(recovery.AnomalyStreamLength) != 1 {
		t.Fatalf("expected one stream length anomaly, got %v", rec.Anomalies())
	}
}

func TestParseIndirectObjectIndirectLength(t *testing.T) {
	src := "4 0 obj\n<< /Length 9 0 R >>\nstream\nhello\nendstream\nendobj\n"

	var asked ObjectRef
	resolve := func(r ObjectRef) (int64, bool) { asked = r; return 5, true }
	obj, err := newValueParser(src, ValueParserConfig{ResolveLength: resolve}).ParseIndirectObject()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if asked != (ObjectRef{Num: 9}) {
		t.Fatalf("resolver asked for %v", asked)
	}
	if got := string(obj.Value.(*StreamObj).RawData()); got != "hello" {
		t.Fatalf("unexpected payload %q", got)
	}

	// Without a resolver the payload is found by scanning.
	rec := &recovery.Recorder{}
	obj, err = newValueParser(src, ValueParserConfig{Anomalies: rec}).ParseIndirectObject()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := string(obj.Value.(*StreamObj).RawData()); got != "hello" {
		t.Fatalf("unexpected scanned payload %q", got)
	}
	if len(rec.Anomalies()) != 0 {
		t.Fatalf("scanning an unresolved length is not an anomaly: %v", rec.Anomalies())
	}
}

func TestParseIndirectObjectLazyStream(t *testing.T) {
	src := "4 0 obj\n<< /Length 10 /Filter /FlateDecode >>\nstream\n0123456789\nendstream\nendobj\n"
	s := scanner.New(bytes.NewReader([]byte(src)), scanner.Config{LazyThreshold: 4})
	obj, err := NewValueParser(s, ValueParserConfig{}).ParseIndirectObject()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	st := obj.Value.(*StreamObj)
	want := LazyData{Offset: 53, Length: 10, Filters: []string{"FlateDecode"}}
	if diff := cmp.Diff(StreamData(want), st.Data()); diff != "" {
		t.Fatalf("lazy descriptor mismatch:\n%s", diff)
	}
	if st.RawData() != nil || st.Length() != 10 {
		t.Fatalf("lazy stream should hold no bytes")
	}
}

func TestParseIndirectObjectRecoversAtEndobj(t *testing.T) {
	src := "1 0 obj\n<< /A 1 /B\nendobj\n2 0 obj\n(ok)\nendobj\n"

	p := newValueParser(src, ValueParserConfig{})
	if _, err := p.ParseIndirectObject(); !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("expected syntax error without recovery, got %v", err)
	}

	p = newValueParser(src, ValueParserConfig{Recovery: recovery.NewStrictStrategy()})
	if _, err := p.ParseIndirectObject(); !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("expected syntax error in strict mode, got %v", err)
	}

	rec := &recovery.Recorder{}
	p = newValueParser(src, ValueParserConfig{Recovery: recovery.NewLenientStrategy(), Anomalies: rec})
	first, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if !first.Recovered || first.Value != (NullObj{}) {
		t.Fatalf("expected null substitute, got %+v", first)
	}
	second, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("framing should continue after recovery: %v", err)
	}
	if second.Ref.Num != 2 || string(second.Value.(StringObj).Bytes) != "ok" {
		t.Fatalf("unexpected second object %+v", second)
	}
	if rec.Count(recovery.AnomalyObjectParseRecovered) != 1 {
		t.Fatalf("expected one recovery anomaly, got %v", rec.Anomalies())
	}
}

func TestParseIndirectObjectMissingDictClose(t *testing.T) {
	src := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R\nendobj\n"
	p := newValueParser(src, ValueParserConfig{Recovery: recovery.NewLenientStrategy()})
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	want := dictOf("Type", NameLiteral("Catalog"), "Pages", Ref(2, 0))
	if diff := cmp.Diff(Object(want), obj.Value); diff != "" {
		t.Fatalf("partial dictionary mismatch:\n%s", diff)
	}
}

func TestParseIndirectObjectBadHeader(t *testing.T) {
	_, err := newValueParser("1 x obj null endobj", ValueParserConfig{Recovery: recovery.NewLenientStrategy()}).ParseIndirectObject()
	if !errors.Is(err, recovery.ErrSyntax) {
		t.Fatalf("expected syntax error for bad header, got %v", err)
	}
}

func TestDictDelete(t *testing.T) {
	d := dictOf("A", NumberInt(1), "B", NumberInt(2), "C", NumberInt(3))
	d.Delete("B")
	d.Delete("missing")
	if diff := cmp.Diff([]string{"A", "C"}, d.Order); diff != "" {
		t.Fatalf("order after delete:\n%s", diff)
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", d.Len())
	}
}

func FuzzValueParser(f *testing.F) {
	f.Add([]byte("<< /A [1 2 (x)] /B <41> >>"))
	f.Add([]byte("1 0 obj << /Length 3 >> stream\nabc\nendstream endobj"))
	f.Add([]byte("[[[[[[["))
	f.Fuzz(func(t *testing.T, data []byte) {
		s := scanner.New(bytes.NewReader(data), scanner.Config{MaxStringLength: 1 << 16, MaxStreamLength: 1 << 16})
		p := NewValueParser(s, ValueParserConfig{MaxNesting: 32, Recovery: recovery.NewLenientStrategy()})
		for i := 0; i < 64; i++ {
			if _, err := p.ParseIndirectObject(); err != nil {
				return
			}
		}
	})
}
