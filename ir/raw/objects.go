package raw

// Name object
type NameObj struct{ Val string }

func (n NameObj) Type() string     { return "name" }
func (n NameObj) IsIndirect() bool { return false }
func (n NameObj) Value() string    { return n.Val }

// Number object. Integers and reals share one representation; IsInt tells them apart.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string {
	if n.IsInt {
		return "integer"
	}
	return "real"
}
func (n NumberObj) IsIndirect() bool { return false }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}
func (n NumberObj) IsInteger() bool { return n.IsInt }

// Boolean object
type BoolObj struct{ V bool }

func (b BoolObj) Type() string     { return "boolean" }
func (b BoolObj) IsIndirect() bool { return false }
func (b BoolObj) Value() bool      { return b.V }

// Null object
type NullObj struct{}

func (n NullObj) Type() string     { return "null" }
func (n NullObj) IsIndirect() bool { return false }

// String object
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string     { return "string" }
func (s StringObj) IsIndirect() bool { return false }
func (s StringObj) Value() []byte    { return s.Bytes }
func (s StringObj) IsHex() bool      { return s.Hex }

// Array object
type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Type() string     { return "array" }
func (a *ArrayObj) IsIndirect() bool { return false }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// DictObj is a dictionary that remembers key insertion order.
type DictObj struct {
	KV    map[string]Object
	Order []string
}

func (d *DictObj) Type() string                { return "dict" }
func (d *DictObj) IsIndirect() bool            { return false }
func (d *DictObj) Get(key Name) (Object, bool) { return d.Lookup(key.Value()) }
func (d *DictObj) Set(key Name, value Object)  { d.SetKey(key.Value(), value) }

func (d *DictObj) Lookup(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}

// SetKey replaces the value of an existing key in place, or appends a new one.
func (d *DictObj) SetKey(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	if _, ok := d.KV[key]; !ok {
		d.Order = append(d.Order, key)
	}
	d.KV[key] = value
}

func (d *DictObj) Delete(key string) {
	if _, ok := d.KV[key]; !ok {
		return
	}
	delete(d.KV, key)
	for i, k := range d.Order {
		if k == key {
			d.Order = append(d.Order[:i:i], d.Order[i+1:]...)
			break
		}
	}
}

func (d *DictObj) Keys() []Name {
	keys := make([]Name, 0, len(d.Order))
	for _, k := range d.Order {
		keys = append(keys, NameObj{Val: k})
	}
	return keys
}
func (d *DictObj) Len() int { return len(d.KV) }

// Int returns the integer stored under key, if it holds a direct number.
func (d *DictObj) Int(key string) (int64, bool) {
	o, ok := d.Lookup(key)
	if !ok {
		return 0, false
	}
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// NameValue returns the name stored under key.
func (d *DictObj) NameValue(key string) (string, bool) {
	o, ok := d.Lookup(key)
	if !ok {
		return "", false
	}
	n, ok := o.(NameObj)
	return n.Val, ok
}

// RefValue returns the reference stored under key.
func (d *DictObj) RefValue(key string) (ObjectRef, bool) {
	o, ok := d.Lookup(key)
	if !ok {
		return ObjectRef{}, false
	}
	r, ok := o.(RefObj)
	return r.R, ok
}

// Stream object
type StreamObj struct {
	Dict    *DictObj
	Payload StreamData
}

func (s *StreamObj) Type() string           { return "stream" }
func (s *StreamObj) IsIndirect() bool       { return false }
func (s *StreamObj) Dictionary() Dictionary { return s.Dict }
func (s *StreamObj) Data() StreamData       { return s.Payload }

// RawData returns the in-memory payload bytes; nil for lazy streams.
func (s *StreamObj) RawData() []byte {
	switch d := s.Payload.(type) {
	case RawData:
		return d
	case DecodedData:
		return d
	default:
		return nil
	}
}

func (s *StreamObj) Length() int64 {
	if l, ok := s.Payload.(LazyData); ok {
		return l.Length
	}
	return int64(len(s.RawData()))
}

// IsLazy reports whether the payload still lives in the source.
func (s *StreamObj) IsLazy() bool {
	_, ok := s.Payload.(LazyData)
	return ok
}

// Reference object
type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string     { return "ref" }
func (r RefObj) IsIndirect() bool { return true }
func (r RefObj) Ref() ObjectRef   { return r.R }

// Helpers
func NameLiteral(v string) NameObj    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f, IsInt: false} }
func Bool(v bool) BoolObj             { return BoolObj{V: v} }
func Str(bytes []byte) StringObj      { return StringObj{Bytes: bytes} }
func HexStr(bytes []byte) StringObj   { return StringObj{Bytes: bytes, Hex: true} }
func NewArray(items ...Object) *ArrayObj {
	return &ArrayObj{Items: items}
}
func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	return &StreamObj{Dict: dict, Payload: RawData(data)}
}
func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// FilterNames lists the /Filter entry of a stream dictionary in order.
func FilterNames(d *DictObj) []string {
	o, ok := d.Lookup("Filter")
	if !ok {
		return nil
	}
	switch f := o.(type) {
	case NameObj:
		return []string{f.Val}
	case *ArrayObj:
		names := make([]string, 0, len(f.Items))
		for _, it := range f.Items {
			if n, ok := it.(NameObj); ok {
				names = append(names, n.Val)
			}
		}
		return names
	}
	return nil
}
