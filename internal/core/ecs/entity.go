package ecs

// EntityID packs a 32-bit slot index (low bits) with a 32-bit generation
// (high bits). Destroying an entity bumps its slot generation, so stale IDs
// held by scripts or commands stop resolving.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

// EntityPool hands out entity IDs, recycling destroyed slots first.
// Index 0 is never issued, so the zero EntityID always means "no entity".
type EntityPool struct {
	generations []uint32
	free        []uint32
	nextIndex   uint32
	live        int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 1, 256),
		free:        make([]uint32, 0, 64),
		nextIndex:   1,
	}
}

func (p *EntityPool) Create() EntityID {
	p.live++
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy invalidates id. Destroying a stale or unknown ID is a no-op.
func (p *EntityPool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	idx := id.Index()
	p.generations[idx]++
	p.free = append(p.free, idx)
	p.live--
	return true
}

// Live returns the number of entities currently alive.
func (p *EntityPool) Live() int { return p.live }
