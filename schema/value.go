package schema

import "strconv"

type ValueKind uint8

const (
	StringKind ValueKind = iota
	NumberKind
)

func (k ValueKind) String() string {
	switch k {
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a scalar cell value, either a string or a 64-bit integer.
type Value struct {
	Kind ValueKind
	Str  string
	Num  int64
}

func StringValue(s string) Value {
	return Value{Kind: StringKind, Str: s}
}

func NumberValue(n int64) Value {
	return Value{Kind: NumberKind, Num: n}
}

func (v Value) String() string {
	if v.Kind == NumberKind {
		return strconv.FormatInt(v.Num, 10)
	}
	return v.Str
}

func (v Value) Equal(other Value) bool {
	return v == other
}
