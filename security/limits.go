package security

import (
	"fmt"
	"strings"
)

const mb = 1024 * 1024

// Limits defines resource boundaries for parsing PDFs.
// These limits help prevent resource exhaustion attacks (e.g., zip bombs, stack overflows).
type Limits struct {
	// Maximum input file size in megabytes. Default: 100.
	MaxFileSizeMB int

	// Maximum size of a single object or decoded object stream in megabytes. Default: 50.
	MaxObjectSizeMB int

	// Maximum object load depth shared by every nested load. Default: 1000.
	MaxDepth int

	// Maximum decoded/encoded size ratio for stream decoding. Default: 100.
	MaxStreamDecodeRatio int

	// Whether MaxDepth is enforced by the object loader. Default: true.
	EnableRecursionChecks bool

	// Maximum nesting of arrays and dictionaries inside one value. Default: 256.
	MaxNesting int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum number of /Prev links followed. Zero means unlimited. Default: 0.
	MaxXRefDepth int
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeMB:         100,
		MaxObjectSizeMB:       50,
		MaxDepth:              1000,
		MaxStreamDecodeRatio:  100,
		EnableRecursionChecks: true,
		MaxNesting:            256,
		MaxStringLength:       10 * mb,
	}
}

// ConservativeLimits suits untrusted input on constrained hosts.
func ConservativeLimits() Limits {
	l := DefaultLimits()
	l.MaxFileSizeMB = 10
	l.MaxObjectSizeMB = 5
	l.MaxDepth = 100
	l.MaxStreamDecodeRatio = 50
	l.MaxNesting = 64
	l.MaxStringLength = 1 * mb
	return l
}

// PermissiveLimits suits large trusted archives.
func PermissiveLimits() Limits {
	l := DefaultLimits()
	l.MaxFileSizeMB = 1000
	l.MaxObjectSizeMB = 500
	l.MaxDepth = 10000
	l.MaxStreamDecodeRatio = 200
	l.MaxStringLength = 100 * mb
	return l
}

// LimitsForPreset returns the named preset: conservative, default or permissive.
func LimitsForPreset(name string) (Limits, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "conservative":
		return ConservativeLimits(), nil
	case "", "default":
		return DefaultLimits(), nil
	case "permissive":
		return PermissiveLimits(), nil
	default:
		return Limits{}, fmt.Errorf("unknown limits preset %q", name)
	}
}

// WithDefaults fills zero fields from DefaultLimits. EnableRecursionChecks is
// taken as given.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxFileSizeMB == 0 {
		l.MaxFileSizeMB = d.MaxFileSizeMB
	}
	if l.MaxObjectSizeMB == 0 {
		l.MaxObjectSizeMB = d.MaxObjectSizeMB
	}
	if l.MaxDepth == 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxStreamDecodeRatio == 0 {
		l.MaxStreamDecodeRatio = d.MaxStreamDecodeRatio
	}
	if l.MaxNesting == 0 {
		l.MaxNesting = d.MaxNesting
	}
	if l.MaxStringLength == 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	return l
}

func (l Limits) MaxFileSize() int64   { return int64(l.MaxFileSizeMB) * mb }
func (l Limits) MaxObjectSize() int64 { return int64(l.MaxObjectSizeMB) * mb }
