package pager

import "errors"

var ErrNoFreeSlots = errors.New("no free slots")

// slotsPerChunk pages are allocated together the first time one of them is needed.
const slotsPerChunk = 64

// SlotArena hands out fixed size buffers carved from shared chunks.
// At most n buffers exist; chunks are allocated lazily.
type SlotArena struct {
	buffers [][]byte
	free    []uint32

	n       int
	used    int
	bufSize int
}

func NewSlotArena(n int, bufSize int) *SlotArena {
	return &SlotArena{
		buffers: make([][]byte, 0, min(n, slotsPerChunk)),
		n:       n,
		bufSize: bufSize,
	}
}

func (p *SlotArena) grow() {

	count := min(slotsPerChunk, p.n-len(p.buffers))
	arena := make([]byte, count*p.bufSize)

	for i := 0; i < count; i++ {
		start := i * p.bufSize
		end := start + p.bufSize
		p.buffers = append(p.buffers, arena[start:end:end]) // full slice expression
	}
}

// Get returns a zeroed buffer and its slot id.
func (p *SlotArena) Get() ([]byte, uint32, error) {

	if l := len(p.free); l > 0 {
		id := p.free[l-1]
		p.free = p.free[:l-1]
		p.used++

		clear(p.buffers[id])
		return p.buffers[id], id, nil
	}

	if p.used >= p.n {
		return nil, 0, ErrNoFreeSlots
	}

	if p.used == len(p.buffers) {
		p.grow()
	}

	id := uint32(p.used)
	p.used++

	return p.buffers[id], id, nil
}

func (p *SlotArena) Return(id uint32) {
	p.free = append(p.free, id)
	p.used--
}

func (p *SlotArena) Buffer(id uint32) []byte {
	return p.buffers[id]
}

func (p *SlotArena) Used() int {
	return p.used
}

func (p *SlotArena) Cap() int {
	return p.n
}
