package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/trueleo/scalardb/bits"
	"github.com/trueleo/scalardb/dberr"
)

// EncodeRow writes values into buf[offset : offset+RowSize()] in field order.
// Nothing is written unless every value fits its field.
func EncodeRow(buf []byte, offset int, s *Schema, values []Value) error {

	if err := s.Check(values); err != nil {
		return err
	}

	if offset < 0 || offset+s.rowSize > len(buf) {
		return fmt.Errorf("%w: row of %d bytes at offset %d exceeds buffer of %d", dberr.ErrMisuse, s.rowSize, offset, len(buf))
	}

	bw := bits.NewEncodeBuffer(buf[offset:offset+s.rowSize], binary.NativeEndian)

	for i, f := range s.layout {
		v := values[i]

		switch f.Type {
		case FixedStringFieldType:
			bw.WriteByte(uint8(len(v.Str)))
			bw.Write([]byte(v.Str))
			bw.EmptyBytes(f.Width - 1 - len(v.Str))
		case Integer64FieldType:
			bw.PutInt64(v.Num)
		}
	}

	return nil
}

// DecodeRow reads one row starting at offset.
func DecodeRow(buf []byte, offset int, s *Schema) ([]Value, error) {

	if offset < 0 || offset+s.rowSize > len(buf) {
		return nil, fmt.Errorf("%w: row of %d bytes at offset %d exceeds buffer of %d", dberr.ErrMisuse, s.rowSize, offset, len(buf))
	}

	reader := bits.NewBytesReader(buf[offset:offset+s.rowSize], binary.NativeEndian)
	values := make([]Value, 0, len(s.layout))

	for _, f := range s.layout {
		switch f.Type {
		case FixedStringFieldType:
			size, err := reader.ReadU8()
			if err != nil {
				return nil, fmt.Errorf("%w: field `%s`: %w", dberr.ErrCorrupted, f.Name, err)
			}

			if int(size) > f.Width-1 {
				return nil, fmt.Errorf("%w: field `%s` stores length %d in a %d byte slot", dberr.ErrCorrupted, f.Name, size, f.Width)
			}

			if size == 0 {
				values = append(values, StringValue(""))
			} else {
				payload := make([]byte, size)
				if err := reader.ReadBytes(int(size), payload); err != nil {
					return nil, fmt.Errorf("%w: field `%s`: %w", dberr.ErrCorrupted, f.Name, err)
				}
				values = append(values, StringValue(string(payload)))
			}

			// fixed slot, the cursor always moves by the full width
			if err := reader.Skip(f.Width - 1 - int(size)); err != nil {
				return nil, fmt.Errorf("%w: field `%s`: %w", dberr.ErrCorrupted, f.Name, err)
			}

		case Integer64FieldType:
			n, err := reader.ReadI64()
			if err != nil {
				return nil, fmt.Errorf("%w: field `%s`: %w", dberr.ErrCorrupted, f.Name, err)
			}
			values = append(values, NumberValue(n))
		}
	}

	return values, nil
}
