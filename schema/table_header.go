package schema

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trueleo/scalardb/bits"
	"github.com/trueleo/scalardb/dberr"
)

// HeaderSpace is the reserved region at the start of the file holding the table header.
const HeaderSpace = 4096

const CurrentHeaderVersion = 1

const headerFrameSize = 4 // u32 payload length

// table file
//
// *--------------------------------*
// | payload length (u32)           |
// | header payload                 |
// | zero padding up to HeaderSpace |
// *--------------------------------*
// | page 0 (root)                  |
// *--------------------------------*
// | page 1 ... n                   |
// *--------------------------------*

type TableHeader struct {
	Version uint16
	Uid     uuid.UUID

	Name     string
	MaxPages uint32
	NumRows  uint64

	Schema *Schema
}

func NewTableHeader(name string, s *Schema, maxPages uint32) *TableHeader {
	return &TableHeader{
		Version:  CurrentHeaderVersion,
		Uid:      uuid.New(),
		Name:     name,
		MaxPages: maxPages,
		Schema:   s,
	}
}

// WriteTo serializes the header into buffer, which must be HeaderSpace bytes.
// The unused tail is zeroed.
func (header *TableHeader) WriteTo(buffer []byte) (int, error) {

	if len(buffer) < HeaderSpace {
		return 0, fmt.Errorf("%w: header buffer of %d bytes, need %d", dberr.ErrSerialization, len(buffer), HeaderSpace)
	}

	bw := bits.NewEncodeBuffer(make([]byte, 256), binary.NativeEndian)
	bw.EnableGrowing()

	bw.PutUint16(header.Version)
	bw.Write(header.Uid[:])

	if err := bw.PutString(header.Name); err != nil {
		return 0, fmt.Errorf("%w: table name: %w", dberr.ErrSerialization, err)
	}

	bw.PutUint32(header.MaxPages)
	bw.PutUint64(header.NumRows)

	fields := header.Schema.Fields()
	bw.PutUint16(uint16(len(fields)))

	for _, f := range fields {
		if err := bw.PutString(f.Name); err != nil {
			return 0, fmt.Errorf("%w: field name: %w", dberr.ErrSerialization, err)
		}
		bw.WriteByte(uint8(f.Type))
		bw.PutUint16(uint16(f.Size))
	}

	payload := bw.Bytes()
	if len(payload) > HeaderSpace-headerFrameSize {
		return 0, fmt.Errorf("%w: header payload of %d bytes exceeds %d", dberr.ErrSerialization, len(payload), HeaderSpace-headerFrameSize)
	}

	frame := bits.NewEncodeBuffer(buffer[:HeaderSpace], binary.NativeEndian)
	frame.PutUint32(uint32(len(payload)))
	frame.Write(payload)
	frame.EmptyBytes(HeaderSpace - frame.Position())

	return headerFrameSize + len(payload), nil
}

func (header *TableHeader) FromBytes(input []byte) (topErr error) {

	if len(input) < headerFrameSize {
		return fmt.Errorf("%w: header region of %d bytes", dberr.ErrSerialization, len(input))
	}

	payloadSize := int(binary.NativeEndian.Uint32(input[:headerFrameSize]))
	if payloadSize == 0 || payloadSize > len(input)-headerFrameSize || payloadSize > HeaderSpace-headerFrameSize {
		return fmt.Errorf("%w: invalid header payload length %d", dberr.ErrSerialization, payloadSize)
	}

	reader := bits.NewBytesReader(input[headerFrameSize:headerFrameSize+payloadSize], binary.NativeEndian)

	// every read below fails only on a truncated payload
	defer func() {
		if topErr != nil && !errors.Is(topErr, dberr.ErrSerialization) {
			topErr = fmt.Errorf("%w: %w", dberr.ErrSerialization, topErr)
		}
	}()

	header.Version, topErr = reader.ReadU16()
	if topErr != nil {
		return fmt.Errorf("unable to decode header version: %w", topErr)
	}

	if header.Version != CurrentHeaderVersion {
		return fmt.Errorf("%w: invalid version %d. Supported versions: %d", dberr.ErrSerialization, header.Version, CurrentHeaderVersion)
	}

	header.Uid, topErr = reader.ReadUUID()
	if topErr != nil {
		return fmt.Errorf("unable to decode table uid: %w", topErr)
	}

	header.Name, topErr = reader.ReadString()
	if topErr != nil {
		return fmt.Errorf("unable to decode table name: %w", topErr)
	}

	header.MaxPages, topErr = reader.ReadU32()
	if topErr != nil {
		return fmt.Errorf("unable to decode max pages: %w", topErr)
	}

	header.NumRows, topErr = reader.ReadU64()
	if topErr != nil {
		return fmt.Errorf("unable to decode row count: %w", topErr)
	}

	fieldCount, topErr := reader.ReadU16()
	if topErr != nil {
		return fmt.Errorf("unable to decode field count: %w", topErr)
	}

	fields := make([]Field, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		var f Field

		f.Name, topErr = reader.ReadString()
		if topErr != nil {
			return fmt.Errorf("unable to decode name of field %d: %w", i, topErr)
		}

		typ, err := reader.ReadU8()
		if err != nil {
			return fmt.Errorf("unable to decode type of field %d: %w", i, err)
		}
		f.Type = FieldType(typ)

		size, err := reader.ReadU16()
		if err != nil {
			return fmt.Errorf("unable to decode size of field %d: %w", i, err)
		}
		f.Size = int(size)

		fields = append(fields, f)
	}

	if reader.Position() != payloadSize {
		return fmt.Errorf("%w: %d trailing bytes in header payload", dberr.ErrSerialization, payloadSize-reader.Position())
	}

	header.Schema, topErr = New(fields...)
	if topErr != nil {
		return fmt.Errorf("%w: stored schema: %w", dberr.ErrSerialization, topErr)
	}

	return nil
}
