package scanner

import (
	"bytes"
	"testing"

	"github.com/wudi/pdfstruct/recovery"
)

func FuzzScanner(f *testing.F) {
	f.Add([]byte("<< /Type /Page >>"), false)
	f.Add([]byte("[ 1 2 3 ] 4 0 R"), false)
	f.Add([]byte("<< /Length 5 >>\nstream\nabcde\nendstream"), false)
	f.Add([]byte("<< /Length 50 >>\nstream\nabcde\nendstream"), true)
	f.Add([]byte("(unbalanced \\( paren"), true)
	f.Add([]byte("<AABBC>"), false)
	f.Add([]byte("<AAZZ>"), true)
	f.Add([]byte("/A#20B /C#zz"), false)
	f.Add([]byte("%PDF-1.7\n1 0 obj 2 0 R endobj %%EOF"), false)

	f.Fuzz(func(t *testing.T, data []byte, lenient bool) {
		cfg := Config{
			MaxStringLength: 1024,
			MaxStreamLength: 1024,
			WindowSize:      1024,
			Markers:         true,
		}
		if lenient {
			cfg.Recovery = recovery.NewLenientStrategy()
		}
		s := New(bytes.NewReader(data), cfg)
		last := int64(-1)
		for i := 0; i < 10000; i++ {
			tok, err := s.Next()
			if err != nil {
				break
			}
			if tok.Pos < last {
				t.Fatalf("token %d at %d precedes previous token at %d", i, tok.Pos, last)
			}
			last = tok.Pos
		}
	})
}
