package schema

type FieldType uint8

const (
	FixedStringFieldType FieldType = iota
	Integer64FieldType
)

func (f FieldType) String() string {
	switch f {
	case FixedStringFieldType:
		return "FixedString"
	case Integer64FieldType:
		return "Integer64"
	default:
		return ""
	}
}

func (f FieldType) Valid() bool {
	return f == FixedStringFieldType || f == Integer64FieldType
}
