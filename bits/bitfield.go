package bits

import "math/bits"

// Bitfield is a set of page indices.
type Bitfield []uint64

func NewBitfield(size int) Bitfield {
	return make(Bitfield, (size+63)>>6)
}

func (b Bitfield) Len() int {
	return len(b) << 6
}

func (b Bitfield) Set(bit int) {
	word := bit >> 6 // bit / 64
	mask := uint64(1) << (bit & 63)
	b[word] |= mask
}

func (b Bitfield) Clear(bit int) {
	word := bit >> 6
	mask := uint64(1) << (bit & 63)
	b[word] &^= mask
}

func (b Bitfield) Get(bit int) uint64 {
	word := bit >> 6
	return (b[word] >> (bit & 63)) & 1
}

// TestAndSet sets bit and reports whether it was already set.
func (b Bitfield) TestAndSet(bit int) bool {
	was := b.Get(bit) == 1
	b.Set(bit)
	return was
}

// ToIndices appends the set bits in ascending order.
func (b Bitfield) ToIndices(out []uint32) []uint32 {
	for wi, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, uint32(wi*64+tz))
			w &= w - 1 // clear lowest set bit
		}
	}
	return out
}

func (b Bitfield) Any() bool {
	for _, w := range b {
		if w != 0 {
			return true
		}
	}
	return false
}

func (b Bitfield) Count() int {
	c := 0
	for _, w := range b {
		c += bits.OnesCount64(w)
	}
	return c
}

func (b Bitfield) Reset() {
	clear(b)
}
