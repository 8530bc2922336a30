package raw

import (
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a PDF stream. Exactly one StreamData form is held at a time.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
	Data() StreamData
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// StreamData is the payload of a stream: RawData, DecodedData or LazyData.
type StreamData interface {
	streamData()
}

// RawData holds stream bytes exactly as stored in the file.
type RawData []byte

// DecodedData holds stream bytes after the filter pipeline ran.
type DecodedData []byte

// LazyData describes a payload left in the source until it is needed.
type LazyData struct {
	Offset  int64
	Length  int64
	Filters []string
}

func (RawData) streamData()     {}
func (DecodedData) streamData() {}
func (LazyData) streamData()    {}
