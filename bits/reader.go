package bits

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"
)

var (
	ErrEOF          = errors.New("end of buffer")
	ErrReadMismatch = errors.New("read size mismatch")
)

const MaxBinReaderBufferSize = 8

type BitsReader struct {
	readBuffer [MaxBinReaderBufferSize]byte

	buf   io.Reader
	order binary.ByteOrder
	pos   int
}

func NewReader(buf io.Reader, order binary.ByteOrder) *BitsReader {
	return &BitsReader{buf: buf, order: order}
}

// NewBytesReader reads from an in-memory slice, e.g. a page or a header region.
func NewBytesReader(data []byte, order binary.ByteOrder) *BitsReader {
	return NewReader(bytes.NewReader(data), order)
}

func (r *BitsReader) readNextBytesIntoReadBuffer(size int) error {
	readBytes, err := io.ReadFull(r.buf, r.readBuffer[:size])
	r.pos += readBytes

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrEOF
		}
		return err
	}

	return nil
}

// Position is the number of bytes consumed so far.
func (r *BitsReader) Position() int {
	return r.pos
}

func (r *BitsReader) ReadU8() (uint8, error) {
	err := r.readNextBytesIntoReadBuffer(1)

	if err != nil {
		return 0, err
	}

	return r.readBuffer[0], err
}

func (r *BitsReader) MustReadU8() uint8 {
	u, er := r.ReadU8()
	if er != nil {
		panic(er)
	}
	return u
}

func (r *BitsReader) ReadU16() (uint16, error) {

	err := r.readNextBytesIntoReadBuffer(2)

	if err != nil {
		return 0, err
	}

	return r.order.Uint16(r.readBuffer[:2]), nil
}

func (r *BitsReader) ReadU32() (uint32, error) {
	readErr := r.readNextBytesIntoReadBuffer(4)
	if readErr != nil {
		return 0, readErr
	}
	return r.order.Uint32(r.readBuffer[:4]), nil
}

func (r *BitsReader) ReadU64() (uint64, error) {

	readErr := r.readNextBytesIntoReadBuffer(8)
	if readErr != nil {
		return 0, readErr
	}

	return r.order.Uint64(r.readBuffer[:8]), nil
}

func (r *BitsReader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *BitsReader) ReadUUID() (result uuid.UUID, err error) {
	err = r.ReadBytes(16, result[:])
	return result, err
}

// ReadString reads a u16 length prefix followed by that many bytes.
func (r *BitsReader) ReadString() (string, error) {
	size, err := r.ReadU16()
	if err != nil {
		return "", err
	}

	out := make([]byte, size)
	if err := r.ReadBytes(int(size), out); err != nil {
		return "", err
	}

	return string(out), nil
}

func (r *BitsReader) ReadBytes(n int, out []byte) error {

	readBytes, err := io.ReadFull(r.buf, out[:n])
	r.pos += readBytes

	if readBytes != n {
		return ErrReadMismatch
	}

	return err
}

func (r *BitsReader) Skip(n int) error {
	skipped, err := io.CopyN(io.Discard, r.buf, int64(n))
	r.pos += int(skipped)

	if err != nil {
		return ErrEOF
	}
	return nil
}
