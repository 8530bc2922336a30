package security

import (
	"github.com/wudi/pdfstruct/ir/raw"
)

type Permissions struct{ Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool }

// EncryptionInfo describes an /Encrypt dictionary. Nothing here decrypts;
// the structural parser only reports what protection a file declares.
type EncryptionInfo struct {
	Filter    string
	SubFilter string
	V, R      int
	// KeyLength is in bits.
	KeyLength       int
	P               int32
	Permissions     Permissions
	EncryptMetadata bool
	// StreamFilter and StringFilter name the crypt methods (V2, AESV2,
	// AESV3, None or Identity) applied to streams and strings.
	StreamFilter string
	StringFilter string
}

// DescribeEncryption reads d with the defaults ISO 32000 gives each entry.
func DescribeEncryption(d raw.Dictionary) EncryptionInfo {
	info := EncryptionInfo{
		Filter:          nameVal(d, "Filter"),
		SubFilter:       nameVal(d, "SubFilter"),
		V:               1,
		R:               2,
		KeyLength:       40,
		EncryptMetadata: true,
	}
	if v, ok := numberVal(d, "V"); ok && v > 0 {
		info.V = int(v)
	}
	if r, ok := numberVal(d, "R"); ok {
		info.R = int(r)
	}
	if info.V >= 5 {
		info.KeyLength = 256
	}
	if n, ok := numberVal(d, "Length"); ok && n > 0 {
		info.KeyLength = int(n)
	}
	if info.V == 4 && info.KeyLength < 128 {
		info.KeyLength = 128
	}
	if p, ok := numberVal(d, "P"); ok {
		info.P = int32(p)
	}
	info.Permissions = PermissionsFromP(info.P)
	if v, ok := boolVal(d, "EncryptMetadata"); ok {
		info.EncryptMetadata = v
	}

	base := "V2"
	switch {
	case info.V >= 5:
		base = "AESV3"
	case info.V == 4:
		base = "AESV2"
	}
	filters := cryptFilters(d)
	info.StreamFilter = resolveCryptFilter(d, "StmF", base, filters)
	info.StringFilter = resolveCryptFilter(d, "StrF", base, filters)
	return info
}

// PermissionsFromP decodes the user access bits of /P.
func PermissionsFromP(p int32) Permissions {
	return Permissions{
		Print:             p&0x4 != 0,
		Modify:            p&0x8 != 0,
		Copy:              p&0x10 != 0,
		ModifyAnnotations: p&0x20 != 0,
		FillForms:         p&0x100 != 0,
		ExtractAccessible: p&0x200 != 0,
		Assemble:          p&0x400 != 0,
		PrintHighQuality:  p&0x800 != 0,
	}
}

// cryptFilters maps each /CF entry to its /CFM method.
func cryptFilters(d raw.Dictionary) map[string]string {
	out := make(map[string]string)
	if d == nil {
		return out
	}
	cfObj, ok := d.Get(raw.NameObj{Val: "CF"})
	if !ok {
		return out
	}
	cf, ok := cfObj.(*raw.DictObj)
	if !ok {
		return out
	}
	for name, obj := range cf.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		out[name] = nameVal(entry, "CFM")
	}
	return out
}

func resolveCryptFilter(d raw.Dictionary, key, base string, filters map[string]string) string {
	name := nameVal(d, key)
	switch name {
	case "":
		if m, ok := filters["StdCF"]; ok && m != "" {
			return m
		}
		return base
	case "Identity":
		return "Identity"
	}
	if m, ok := filters[name]; ok && m != "" {
		return m
	}
	return base
}

func numberVal(dict raw.Dictionary, key string) (int64, bool) {
	if dict == nil {
		return 0, false
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return n.Int(), true
		}
	}
	return 0, false
}

func boolVal(dict raw.Dictionary, key string) (bool, bool) {
	if dict == nil {
		return false, false
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if b, ok := v.(raw.BoolObj); ok {
			return b.V, true
		}
	}
	return false, false
}

func nameVal(dict raw.Dictionary, key string) string {
	if dict == nil {
		return ""
	}
	if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
		if n, ok := v.(raw.NameObj); ok {
			return n.Val
		}
	}
	return ""
}
