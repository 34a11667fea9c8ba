// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// PoolConfig configures a slot pool. The zero value is not usable;
// start from DefaultPoolConfig and override fields as needed.
type PoolConfig struct {
	// SlotSize is the usable payload size of each slot in bytes. > 0.
	SlotSize int
	// SlotCount is the fixed number of slots. > 0. The pool never grows.
	SlotCount int
	// Alignment is the payload alignment, a power of two >= 8.
	Alignment int
	// ZeroOnAlloc clears the payload before a handle is returned.
	ZeroOnAlloc bool
	// ZeroOnRelease clears the payload when a slot returns to the free list.
	ZeroOnRelease bool
	// Recorder, if non-nil, receives per-operation events.
	Recorder Recorder
}

// DefaultPoolConfig returns the default pool configuration:
// 64-byte slots, 1024 slots, alignment 8, no zeroing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		SlotSize:  64,
		SlotCount: 1024,
		Alignment: 8,
	}
}

// slotHeader carries the pool's authoritative view of one slot: the
// true generation and the free-list link. Headers live in a dense
// array parallel to the payload arena.
type slotHeader struct {
	next       atomix.Uint64 // free-list link; a Handle bit pattern, 0 when detached
	generation atomix.Uint64 // true generation, low 16 bits significant
	_          padShort
}

// Pool is a fixed-size arena of uniformly sized slots addressed by
// generation-checked handles.
//
// Alloc and Release drive a Treiber free-list whose head is itself a
// handle: the embedded generation makes every head CAS incarnation-
// unique, so the list needs no separate ABA tag. Every access
// re-evaluates handle validity against the slot's current generation;
// there is no cached validity.
//
// All operations are safe for concurrent use except ForEach.
type Pool struct {
	slotSize      int
	slotCount     int
	stride        int
	alignment     int
	zeroOnAlloc   bool
	zeroOnRelease bool
	rec           Recorder

	headers []slotHeader
	arena   []byte // aligned backing block, stride*slotCount bytes

	_        pad
	freeHead atomix.Uint64 // Handle of the top free slot
	_        pad
	slotsFree      atomix.Int64
	allocCount     atomix.Uint64
	releaseCount   atomix.Uint64
	anamnesisCount atomix.Uint64
	generationMax  atomix.Uint64
	_              pad
}

// NewPool creates a pool from cfg. Configuration faults are reported
// with the sentinel errors in errors.go; a returned pool is fully
// initialized with every slot on the free list at generation 0.
//
// The first Alloc on a fresh pool returns slot 0.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Alignment == 0 {
		cfg.Alignment = 8
	}
	if cfg.SlotSize <= 0 {
		return nil, ErrInvalidSlotSize
	}
	if cfg.SlotCount <= 0 {
		return nil, ErrInvalidSlotCount
	}
	if cfg.Alignment < 8 || cfg.Alignment&(cfg.Alignment-1) != 0 {
		return nil, ErrInvalidAlignment
	}
	// The 45-bit location field holds the 1-based slot number.
	if uint64(cfg.SlotCount) >= 1<<45 {
		return nil, ErrArenaTooLarge
	}

	stride := alignUp(alignUp(cfg.SlotSize, cfg.Alignment), 8)

	p := &Pool{
		slotSize:      cfg.SlotSize,
		slotCount:     cfg.SlotCount,
		stride:        stride,
		alignment:     cfg.Alignment,
		zeroOnAlloc:   cfg.ZeroOnAlloc,
		zeroOnRelease: cfg.ZeroOnRelease,
		rec:           cfg.Recorder,
		headers:       make([]slotHeader, cfg.SlotCount),
		arena:         alignedSlice(stride*cfg.SlotCount, cfg.Alignment),
	}

	// Thread every slot through the free list in reverse so the stack
	// top is slot 0. Construction is single-goroutine; plain stores.
	head := uint64(0)
	for i := p.slotCount - 1; i >= 0; i-- {
		p.headers[i].next.Store(head)
		head = uint64(EncodeHandle(0, locFromIndex(i), StateFree))
	}
	p.freeHead.Store(head)
	p.slotsFree.Store(int64(p.slotCount))

	return p, nil
}

// Alloc pops a slot from the free list and returns a LIVE handle
// minted with the slot's current generation. Returns the null handle
// when the pool is exhausted; exhaustion mutates no statistics.
func (p *Pool) Alloc() Handle {
	sw := spin.Wait{}
	var idx int
	var hdr *slotHeader
	for {
		head := Handle(p.freeHead.LoadAcquire())
		if head.IsNull() {
			return 0
		}
		idx = int(head.slotNumber()) - 1
		hdr = &p.headers[idx]
		next := hdr.next.LoadRelaxed()
		// The generation embedded in head makes this CAS fail if the
		// slot was popped and re-released since the load above.
		if p.freeHead.CompareAndSwapAcqRel(uint64(head), next) {
			break
		}
		sw.Once()
	}

	gen := uint16(hdr.generation.Load())
	for {
		max := p.generationMax.Load()
		if uint64(gen) <= max || p.generationMax.CompareAndSwap(max, uint64(gen)) {
			break
		}
	}
	hdr.next.StoreRelaxed(0)

	p.slotsFree.Add(-1)
	p.allocCount.Add(1)

	if p.zeroOnAlloc {
		clear(p.payload(idx))
	}
	if p.rec != nil {
		p.rec.Alloc(idx, gen)
	}
	return EncodeHandle(gen, locFromIndex(idx), StateLive)
}

// Release returns the slot behind h to the free list and advances its
// generation, invalidating every outstanding handle to the old
// incarnation. A handle the pool refuses (null, wrong state, location
// out of range, or generation mismatch) counts an anamnesis event and
// returns false.
func (p *Pool) Release(h Handle) bool {
	idx, ok := p.admit(h)
	if !ok {
		p.anamnesisCount.Add(1)
		return false
	}
	hdr := &p.headers[idx]

	newGen := (uint64(h.Generation()) + 1) & 0xFFFF
	hdr.generation.StoreRelease(newGen)

	if p.zeroOnRelease {
		clear(p.payload(idx))
	}

	free := uint64(EncodeHandle(uint16(newGen), locFromIndex(idx), StateFree))
	sw := spin.Wait{}
	for {
		head := p.freeHead.LoadAcquire()
		hdr.next.StoreRelaxed(head)
		if p.freeHead.CompareAndSwapAcqRel(head, free) {
			break
		}
		sw.Once()
	}

	p.slotsFree.Add(1)
	p.releaseCount.Add(1)
	if p.rec != nil {
		p.rec.Release(idx, h.Generation())
	}
	return true
}

// Get resolves h to its payload bytes. The returned slice has length
// SlotSize and is valid only while the handle's generation matches the
// slot. A refused handle returns nil and counts an anamnesis event.
func (p *Pool) Get(h Handle) []byte {
	idx, ok := p.admit(h)
	if !ok {
		p.anamnesisCount.Add(1)
		if p.rec != nil && idx >= 0 {
			p.rec.GetStale(idx, h.Generation())
		}
		return nil
	}
	if p.rec != nil {
		p.rec.GetValid(idx, h.Generation())
	}
	return p.payload(idx)
}

// Validate reports whether h would currently dereference. Equivalent
// to Get(h) != nil, including the anamnesis accounting on failure.
func (p *Pool) Validate(h Handle) bool {
	return p.Get(h) != nil
}

// SlotIndex returns the dense slot index h refers to, without touching
// generation state or counters. The second result is false when the
// location field does not name a slot of this pool.
func (p *Pool) SlotIndex(h Handle) (int, bool) {
	n := h.slotNumber()
	if n < 1 || n > uint64(p.slotCount) {
		return 0, false
	}
	return int(n - 1), true
}

// SlotSize returns the usable payload size of each slot.
func (p *Pool) SlotSize() int { return p.slotSize }

// SlotCount returns the fixed number of slots.
func (p *Pool) SlotCount() int { return p.slotCount }

// admit evaluates the acceptance predicate shared by Get, Validate and
// Release: LIVE state, in-range location, matching generation. The
// returned index is valid whenever it is >= 0, even if the generation
// check failed; -1 means the handle is null, not LIVE, or names no
// slot of this pool.
func (p *Pool) admit(h Handle) (int, bool) {
	if h.IsNull() || h.State() != StateLive {
		return -1, false
	}
	n := h.slotNumber()
	if n < 1 || n > uint64(p.slotCount) {
		return -1, false
	}
	idx := int(n - 1)
	if uint64(h.Generation()) != p.headers[idx].generation.LoadAcquire() {
		return idx, false
	}
	return idx, true
}

func (p *Pool) payload(idx int) []byte {
	off := idx * p.stride
	return p.arena[off : off+p.slotSize : off+p.slotSize]
}

// PoolStats is a snapshot of the pool's monotonic counters and gauges.
// Fields are read one at a time and may be mutually inconsistent by a
// small skew under concurrency.
type PoolStats struct {
	SlotCount      int    `json:"slot_count"`
	SlotsFree      int    `json:"slots_free"`
	SlotsLive      int    `json:"slots_live"`
	AllocCount     uint64 `json:"alloc_count"`
	ReleaseCount   uint64 `json:"release_count"`
	AnamnesisCount uint64 `json:"anamnesis_count"`
	GenerationMax  uint16 `json:"generation_max"`
}

// Stats assembles a counter snapshot field by field.
func (p *Pool) Stats() PoolStats {
	free := int(p.slotsFree.Load())
	return PoolStats{
		SlotCount:      p.slotCount,
		SlotsFree:      free,
		SlotsLive:      p.slotCount - free,
		AllocCount:     p.allocCount.Load(),
		ReleaseCount:   p.releaseCount.Load(),
		AnamnesisCount: p.anamnesisCount.Load(),
		GenerationMax:  uint16(p.generationMax.Load()),
	}
}

// ForEach visits every slot not on the free list, passing a freshly
// minted LIVE handle at the slot's current generation and the payload
// bytes. Visiting stops when fn returns false.
//
// ForEach is for debugging and inspection only. It is not safe to run
// concurrently with Alloc or Release; the free-list snapshot it takes
// would be stale. A cycle in the snapshot indicates corruption and
// terminates the walk.
func (p *Pool) ForEach(fn func(h Handle, payload []byte) bool) {
	free := make([]bool, p.slotCount)
	h := Handle(p.freeHead.Load())
	for !h.IsNull() {
		n := h.slotNumber()
		if n < 1 || n > uint64(p.slotCount) {
			break
		}
		idx := int(n - 1)
		if free[idx] {
			break
		}
		free[idx] = true
		h = Handle(p.headers[idx].next.Load())
	}

	for i := 0; i < p.slotCount; i++ {
		if free[i] {
			continue
		}
		gen := uint16(p.headers[i].generation.Load())
		if !fn(EncodeHandle(gen, locFromIndex(i), StateLive), p.payload(i)) {
			return
		}
	}
}

func alignUp(v, alignment int) int {
	return (v + alignment - 1) &^ (alignment - 1)
}

// alignedSlice returns a size-byte slice whose first element sits on
// an alignment boundary. Go's allocator only guarantees the natural
// alignment of the element type, so the block is over-allocated and
// re-sliced at the first aligned offset.
func alignedSlice(size, alignment int) []byte {
	raw := make([]byte, size+alignment-1)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(unsafe.SliceData(raw))) & uintptr(alignment-1)); rem != 0 {
		off = alignment - rem
	}
	return raw[off : off+size : off+size]
}
