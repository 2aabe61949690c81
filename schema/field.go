package schema

import "fmt"

// MaxFixedStringSize keeps the payload length representable in the one byte prefix.
const MaxFixedStringSize = 256

type Field struct {
	Name string
	Type FieldType

	// slot width in bytes for FixedString, length byte included
	Size int
}

func FixedString(name string, size int) Field {
	return Field{Name: name, Type: FixedStringFieldType, Size: size}
}

func Integer64(name string) Field {
	return Field{Name: name, Type: Integer64FieldType, Size: 8}
}

// Width is the number of bytes the field occupies in an encoded row.
func (f Field) Width() int {
	switch f.Type {
	case Integer64FieldType:
		return 8
	default:
		return f.Size
	}
}

// MaxLen is the longest string payload a FixedString field accepts.
func (f Field) MaxLen() int {
	return f.Size - 1
}

func (f Field) String() string {
	if f.Type == FixedStringFieldType {
		return fmt.Sprintf("%s %s(%d)", f.Name, f.Type, f.Size)
	}
	return fmt.Sprintf("%s %s", f.Name, f.Type)
}
