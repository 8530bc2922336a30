package parser

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeTextString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf16 big endian", []byte{0xfe, 0xff, 0x00, 'H', 0x00, 'i', 0x20, 0xac}, "Hi€"},
		{"utf16 little endian", []byte{0xff, 0xfe, 'O', 0x00, 'k', 0x00}, "Ok"},
		{"utf8 bom", []byte("\xef\xbb\xbfCaf\xc3\xa9"), "Café"},
		{"utf16 composed to nfc", []byte{0xfe, 0xff, 0x00, 'e', 0x03, 0x01}, "é"},
		{"pdfdoc plain", []byte("Report 7"), "Report 7"},
		{"pdfdoc latin1", []byte("Caf\xe9"), "Café"},
		{"pdfdoc specials", []byte{0x80, ' ', 0x92, ' ', 0x8d, 'q', 0x8e}, "• ™ “q”"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeTextString(tt.in); got != tt.want {
				t.Fatalf("DecodeTextString(% x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	ist := time.FixedZone("", 5*3600+30*60)
	tests := []struct {
		in         string
		want       time.Time
		wantOffset int
	}{
		{"D:20240102030405Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), 0},
		{"D:20240102030405Z00'00'", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), 0},
		{"D:20240102030405+05'30'", time.Date(2024, 1, 2, 3, 4, 5, 0, ist), 5*3600 + 30*60},
		{"D:20240102030405-08'00", time.Date(2024, 1, 2, 11, 4, 5, 0, time.UTC), -8 * 3600},
		{"D:2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0},
		{"199812", time.Date(1998, 12, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseDate(%q) (-want +got):\n%s", tt.in, diff)
			}
			if _, off := got.Zone(); off != tt.wantOffset {
				t.Fatalf("ParseDate(%q) zone offset %d, want %d", tt.in, off, tt.wantOffset)
			}
		})
	}

	for _, bad := range []string{"", "D:", "D:20", "D:abcd0101"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q) accepted an invalid date", bad)
		}
	}
}
