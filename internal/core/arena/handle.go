package arena

import "fmt"

// Handle refers to a slot in a Pool. The low 32 bits hold the slot index and
// the high 32 bits its generation; releasing a slot bumps the generation so
// every outstanding handle to it goes stale.
type Handle uint64

// Nil is never returned by Pool.Acquire.
const Nil Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }
func (h Handle) IsNil() bool        { return h == Nil }

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index(), h.Generation())
}

// Pool hands out generational handles and recycles released slots.
type Pool struct {
	generations []uint32
	free        []uint32
	live        int
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 0, 256),
		free:        make([]uint32, 0, 64),
	}
}

// Acquire returns a live handle. Generations start at 1 so the zero Handle
// stays invalid.
func (p *Pool) Acquire() Handle {
	p.live++
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return makeHandle(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return makeHandle(idx, 1)
}

func (p *Pool) Alive(h Handle) bool {
	idx := h.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return h.Generation() != 0 && p.generations[idx] == h.Generation()
}

// Release invalidates h. Releasing a stale handle is a no-op.
func (p *Pool) Release(h Handle) bool {
	if !p.Alive(h) {
		return false
	}
	idx := h.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.free = append(p.free, idx)
	p.live--
	return true
}

func (p *Pool) Len() int { return p.live }
