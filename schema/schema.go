package schema

import (
	"fmt"
	"strings"

	"github.com/trueleo/scalardb/dberr"
)

// FieldLayout places one field inside an encoded row.
type FieldLayout struct {
	Name   string
	Type   FieldType
	Offset int
	Width  int
}

type Schema struct {
	fields  []Field
	layout  []FieldLayout
	rowSize int
}

// New validates the fields and computes the row layout once.
func New(fields ...Field) (*Schema, error) {

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", dberr.ErrSchemaInvalid)
	}

	s := &Schema{
		fields: append([]Field(nil), fields...),
		layout: make([]FieldLayout, 0, len(fields)),
	}

	seen := make(map[string]struct{}, len(fields))
	offset := 0

	for i := range s.fields {
		f := &s.fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field with empty name", dberr.ErrSchemaInvalid)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: field `%s` declared twice", dberr.ErrSchemaInvalid, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case FixedStringFieldType:
			if f.Size < 1 || f.Size > MaxFixedStringSize {
				return nil, fmt.Errorf("%w: field `%s` size %d out of range [1, %d]", dberr.ErrSchemaInvalid, f.Name, f.Size, MaxFixedStringSize)
			}
		case Integer64FieldType:
			f.Size = 8
		default:
			return nil, fmt.Errorf("%w: field `%s` has unknown type %d", dberr.ErrSchemaInvalid, f.Name, f.Type)
		}

		s.layout = append(s.layout, FieldLayout{
			Name:   f.Name,
			Type:   f.Type,
			Offset: offset,
			Width:  f.Width(),
		})
		offset += f.Width()
	}

	s.rowSize = offset

	return s, nil
}

func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Fields() []Field {
	return s.fields
}

func (s *Schema) Layout() []FieldLayout {
	return s.layout
}

// RowSize is the encoded width of one row; constant for the schema's lifetime.
func (s *Schema) RowSize() int {
	return s.rowSize
}

func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Check verifies arity, value kinds and string lengths against the schema.
func (s *Schema) Check(values []Value) error {

	if len(values) != len(s.fields) {
		return fmt.Errorf("%w: expected %d values, got %d", dberr.ErrParse, len(s.fields), len(values))
	}

	for i, f := range s.fields {
		v := values[i]

		switch f.Type {
		case FixedStringFieldType:
			if v.Kind != StringKind {
				return fmt.Errorf("%w: field `%s` expects a string, got %s", dberr.ErrParse, f.Name, v.Kind)
			}
			if len(v.Str) > f.MaxLen() {
				return fmt.Errorf("%w: field `%s` holds at most %d bytes, got %d", dberr.ErrParse, f.Name, f.MaxLen(), len(v.Str))
			}
		case Integer64FieldType:
			if v.Kind != NumberKind {
				return fmt.Errorf("%w: field `%s` expects a number, got %s", dberr.ErrParse, f.Name, v.Kind)
			}
		}
	}

	return nil
}
