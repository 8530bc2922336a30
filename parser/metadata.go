package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/tdewolff/parse/v2/strconv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfstruct/ir/raw"
)

// Metadata is the decoded document information dictionary.
type Metadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
	// Created and Modified are the parsed dates, zero when absent or unparsable.
	Created  time.Time
	Modified time.Time
}

func metadataFromInfo(info *raw.DictObj) *Metadata {
	md := &Metadata{
		Title:        textString(info, "Title"),
		Author:       textString(info, "Author"),
		Subject:      textString(info, "Subject"),
		Keywords:     textString(info, "Keywords"),
		Creator:      textString(info, "Creator"),
		Producer:     textString(info, "Producer"),
		CreationDate: textString(info, "CreationDate"),
		ModDate:      textString(info, "ModDate"),
	}
	md.Created, _ = ParseDate(md.CreationDate)
	md.Modified, _ = ParseDate(md.ModDate)
	return md
}

func textString(d *raw.DictObj, key string) string {
	v, ok := d.Lookup(key)
	if !ok {
		return ""
	}
	s, ok := v.(raw.StringObj)
	if !ok {
		return ""
	}
	return DecodeTextString(s.Bytes)
}

var (
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
)

// DecodeTextString decodes a PDF text string: UTF-16 with a byte order mark,
// UTF-8 with a BOM, or PDFDocEncoding. The result is NFC-normalized.
func DecodeTextString(b []byte) string {
	var s string
	switch {
	case bytes.HasPrefix(b, []byte{0xfe, 0xff}):
		out, err := utf16BE.NewDecoder().Bytes(b)
		if err != nil {
			return pdfDocDecode(b)
		}
		s = string(out)
	case bytes.HasPrefix(b, []byte{0xff, 0xfe}):
		out, err := utf16LE.NewDecoder().Bytes(b)
		if err != nil {
			return pdfDocDecode(b)
		}
		s = string(out)
	case bytes.HasPrefix(b, []byte{0xef, 0xbb, 0xbf}):
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
		if err != nil {
			return pdfDocDecode(b)
		}
		s = string(out)
	default:
		return pdfDocDecode(b)
	}
	return norm.NFC.String(s)
}

// pdfDocDiffs holds the PDFDocEncoding code points that differ from Latin-1.
var pdfDocDiffs = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1a: 'ˆ', 0x1b: '˙',
	0x1c: '˝', 0x1d: '˛', 0x1e: '˚', 0x1f: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8a: '−', 0x8b: '‰',
	0x8c: '„', 0x8d: '“', 0x8e: '”', 0x8f: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9a: 'ı', 0x9b: 'ł',
	0x9c: 'œ', 0x9d: 'š', 0x9e: 'ž', 0x9f: '\ufffd',
	0xa0: '€', 0xad: '\ufffd',
}

func pdfDocDecode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := pdfDocDiffs[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return norm.NFC.String(sb.String())
}

// ParseDate parses a PDF date "D:YYYYMMDDHHmmSSOHH'mm'". Every field after
// the year is optional; a missing offset means UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return time.Time{}, errDate(s)
	}
	fields := []int{0, 1, 1, 0, 0, 0}
	widths := []int{4, 2, 2, 2, 2, 2}
	pos := 0
	for i, w := range widths {
		if pos+w > len(s) || !isDigits(s[pos:pos+w]) {
			if i == 0 {
				return time.Time{}, errDate(s)
			}
			break
		}
		v, _ := strconv.ParseUint([]byte(s[pos : pos+w]))
		fields[i] = int(v)
		pos += w
	}
	loc := time.UTC
	if rest := s[pos:]; rest != "" && (rest[0] == '+' || rest[0] == '-') {
		tz := strings.ReplaceAll(rest[1:], "'", "")
		h, m := 0, 0
		if len(tz) >= 2 && isDigits(tz[:2]) {
			v, _ := strconv.ParseUint([]byte(tz[:2]))
			h = int(v)
		}
		if len(tz) >= 4 && isDigits(tz[2:4]) {
			v, _ := strconv.ParseUint([]byte(tz[2:4]))
			m = int(v)
		}
		off := h*3600 + m*60
		if rest[0] == '-' {
			off = -off
		}
		loc = time.FixedZone("", off)
	}
	return time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, loc), nil
}

func errDate(s string) error { return fmt.Errorf("invalid PDF date %q", s) }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
