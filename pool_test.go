// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam_test

import (
	"errors"
	"testing"
	"unsafe"

	"code.hybscloud.com/anam"
)

// =============================================================================
// Construction
// =============================================================================

func TestPoolConfigFaults(t *testing.T) {
	cases := []struct {
		name string
		cfg  anam.PoolConfig
		want error
	}{
		{"zero slot size", anam.PoolConfig{SlotSize: 0, SlotCount: 8}, anam.ErrInvalidSlotSize},
		{"zero slot count", anam.PoolConfig{SlotSize: 64, SlotCount: 0}, anam.ErrInvalidSlotCount},
		{"alignment below 8", anam.PoolConfig{SlotSize: 64, SlotCount: 8, Alignment: 4}, anam.ErrInvalidAlignment},
		{"alignment not pow2", anam.PoolConfig{SlotSize: 64, SlotCount: 8, Alignment: 24}, anam.ErrInvalidAlignment},
	}
	for _, c := range cases {
		p, err := anam.NewPool(c.cfg)
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v, want %v", c.name, err, c.want)
		}
		if p != nil {
			t.Fatalf("%s: pool must be nil on fault", c.name)
		}
	}
}

func TestPoolDefaults(t *testing.T) {
	p, err := anam.NewPool(anam.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	s := p.Stats()
	if s.SlotCount != 1024 || s.SlotsFree != 1024 || s.SlotsLive != 0 {
		t.Fatalf("fresh pool stats: %+v", s)
	}
	if p.SlotSize() != 64 {
		t.Fatalf("SlotSize: got %d, want 64", p.SlotSize())
	}
}

func TestPoolAlignment(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 48, SlotCount: 16, Alignment: 64})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for range 16 {
		h := p.Alloc()
		buf := p.Get(h)
		if buf == nil {
			t.Fatal("Get on fresh handle")
		}
		if addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf))); addr&63 != 0 {
			t.Fatalf("payload not 64-byte aligned: %#x", addr)
		}
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// TestPoolLifecycle walks the alloc/release/realloc cycle of one slot:
// the recycled slot comes back at the next generation and the stale
// handle is exposed on access.
func TestPoolLifecycle(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 64, SlotCount: 10})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	h1 := p.Alloc()
	if h1.IsNull() {
		t.Fatal("Alloc on fresh pool")
	}
	if h1.Generation() != 0 {
		t.Fatalf("first generation: got %d, want 0", h1.Generation())
	}
	if h1.State() != anam.StateLive {
		t.Fatalf("state: got %d, want LIVE", h1.State())
	}

	if !p.Release(h1) {
		t.Fatal("Release of live handle")
	}

	// LIFO free list: the same slot is reused next, one generation up.
	h2 := p.Alloc()
	if h2.Generation() != 1 {
		t.Fatalf("recycled generation: got %d, want 1", h2.Generation())
	}
	if h2.Location() != h1.Location() {
		t.Fatalf("recycled location: got %#x, want %#x", h2.Location(), h1.Location())
	}

	if p.Get(h1) != nil {
		t.Fatal("stale handle must not dereference")
	}
	if got := p.Stats().AnamnesisCount; got != 1 {
		t.Fatalf("anamnesis count: got %d, want 1", got)
	}
	if !p.Validate(h2) {
		t.Fatal("live handle must validate")
	}
}

// TestPoolExhaustion drains the pool completely; the failing alloc
// must not disturb statistics, and a single release reopens it.
func TestPoolExhaustion(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 64, SlotCount: 10})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	handles := make([]anam.Handle, 0, 10)
	for i := range 10 {
		h := p.Alloc()
		if h.IsNull() {
			t.Fatalf("Alloc(%d) on non-empty pool", i)
		}
		handles = append(handles, h)
	}

	if h := p.Alloc(); !h.IsNull() {
		t.Fatal("Alloc on exhausted pool must return null")
	}
	s := p.Stats()
	if s.AnamnesisCount != 0 {
		t.Fatalf("exhaustion must not count anamnesis: %d", s.AnamnesisCount)
	}
	if s.AllocCount != 10 || s.SlotsFree != 0 {
		t.Fatalf("stats after drain: %+v", s)
	}

	if !p.Release(handles[3]) {
		t.Fatal("Release")
	}
	h := p.Alloc()
	if h.IsNull() {
		t.Fatal("Alloc after release")
	}
	if h.Generation() != 1 {
		t.Fatalf("generation after recycle: got %d, want 1", h.Generation())
	}
}

// TestPoolSingleSlotCycle cycles a one-slot pool 100 times and checks
// generation accounting plus counterfeit rejection of every retired
// handle.
func TestPoolSingleSlotCycle(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 16, SlotCount: 1})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	const cycles = 100
	handles := make([]anam.Handle, 0, cycles)
	for i := range cycles {
		h := p.Alloc()
		if h.IsNull() {
			t.Fatalf("Alloc(%d)", i)
		}
		if got := h.Generation(); got != uint16(i) {
			t.Fatalf("cycle %d: generation %d", i, got)
		}
		handles = append(handles, h)
		if !p.Release(h) {
			t.Fatalf("Release(%d)", i)
		}
	}

	if got := p.Stats().GenerationMax; got != cycles-1 {
		t.Fatalf("generation max: got %d, want %d", got, cycles-1)
	}
	for i := range cycles - 1 {
		if p.Validate(handles[i]) {
			t.Fatalf("retired handle %d still validates", i)
		}
	}
	if got := p.Stats().SlotsFree; got != 1 {
		t.Fatalf("slots free after cycles: %d", got)
	}
}

// TestPoolAllocReleaseBalance: an alloc/release pair is a no-op on
// slots_free while the monotonic counters keep climbing.
func TestPoolAllocReleaseBalance(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 32, SlotCount: 4})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := range 12 {
		h := p.Alloc()
		if !p.Release(h) {
			t.Fatalf("Release(%d)", i)
		}
		if got := p.Stats().SlotsFree; got != 4 {
			t.Fatalf("iteration %d: slots free %d, want 4", i, got)
		}
	}
	s := p.Stats()
	if s.AllocCount != 12 || s.ReleaseCount != 12 {
		t.Fatalf("counter balance: %+v", s)
	}
	if s.GenerationMax != 11 {
		t.Fatalf("generation max: got %d, want 11", s.GenerationMax)
	}
}

// =============================================================================
// Counterfeit rejection
// =============================================================================

// TestPoolCounterfeitRejection: once released, a handle is refused by
// every operation until the slot's generation wraps.
func TestPoolCounterfeitRejection(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 64, SlotCount: 4})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	h := p.Alloc()
	if !p.Release(h) {
		t.Fatal("Release")
	}
	if p.Get(h) != nil {
		t.Fatal("Get on released handle")
	}
	if p.Release(h) {
		t.Fatal("double release must fail")
	}
	if p.Validate(h) {
		t.Fatal("released handle validates")
	}
	if got := p.Stats().AnamnesisCount; got != 3 {
		t.Fatalf("anamnesis count: got %d, want 3", got)
	}
}

func TestPoolRefusesForgedHandles(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 64, SlotCount: 4})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	live := p.Alloc()

	cases := []struct {
		name string
		h    anam.Handle
	}{
		{"null", 0},
		{"free state", anam.EncodeHandle(live.Generation(), live.Location(), anam.StateFree)},
		{"quarantine state", anam.EncodeHandle(live.Generation(), live.Location(), anam.StateQuarantine)},
		{"location beyond region", anam.EncodeHandle(0, uint64(5)<<3, anam.StateLive)},
		{"location far out", anam.EncodeHandle(0, 1<<40, anam.StateLive)},
		{"wrong generation", anam.EncodeHandle(live.Generation()+1, live.Location(), anam.StateLive)},
	}
	for _, c := range cases {
		if p.Get(c.h) != nil {
			t.Fatalf("%s: forged handle dereferenced", c.name)
		}
		if p.Release(c.h) {
			t.Fatalf("%s: forged handle released", c.name)
		}
	}
	if got := p.Stats().AnamnesisCount; got != uint64(2*len(cases)) {
		t.Fatalf("anamnesis count: got %d, want %d", got, 2*len(cases))
	}

	// The live handle is untouched by the probing above.
	if !p.Validate(live) {
		t.Fatal("live handle lost validity")
	}
}

// =============================================================================
// Handle uniqueness and generation monotonicity
// =============================================================================

func TestPoolHandleUniqueness(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 8, SlotCount: 16})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	seen := make(map[anam.Handle]bool)
	// Several full drain/refill rounds; every successful alloc must
	// mint a never-before-seen handle.
	for range 8 {
		batch := make([]anam.Handle, 0, 16)
		for {
			h := p.Alloc()
			if h.IsNull() {
				break
			}
			if seen[h] {
				t.Fatalf("duplicate handle %#x", uint64(h))
			}
			seen[h] = true
			batch = append(batch, h)
		}
		for _, h := range batch {
			if !p.Release(h) {
				t.Fatal("Release")
			}
		}
	}
}

// =============================================================================
// Zeroing policies
// =============================================================================

func TestPoolZeroOnAlloc(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 32, SlotCount: 1, ZeroOnAlloc: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	h := p.Alloc()
	buf := p.Get(h)
	for i := range buf {
		buf[i] = 0xAA
	}
	p.Release(h)

	h = p.Alloc()
	buf = p.Get(h)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not cleared on alloc: %#x", i, b)
		}
	}
}

func TestPoolZeroOnRelease(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 32, SlotCount: 1, ZeroOnRelease: true})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	h := p.Alloc()
	buf := p.Get(h)
	for i := range buf {
		buf[i] = 0xBB
	}
	p.Release(h)

	// No zero-on-alloc configured: surviving bytes would leak through.
	h = p.Alloc()
	buf = p.Get(h)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d survived release: %#x", i, b)
		}
	}
}

// =============================================================================
// Iteration and introspection
// =============================================================================

func TestPoolForEach(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 8, SlotCount: 5})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	live := map[anam.Handle]bool{
		p.Alloc(): true,
		p.Alloc(): true,
		p.Alloc(): true,
	}

	visited := 0
	p.ForEach(func(h anam.Handle, payload []byte) bool {
		if !live[h] {
			t.Fatalf("visited unexpected handle %#x", uint64(h))
		}
		if len(payload) != 8 {
			t.Fatalf("payload length %d", len(payload))
		}
		visited++
		return true
	})
	if visited != 3 {
		t.Fatalf("visited %d slots, want 3", visited)
	}

	// Early termination.
	visited = 0
	p.ForEach(func(anam.Handle, []byte) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("early stop visited %d, want 1", visited)
	}
}

func TestPoolSlotIndex(t *testing.T) {
	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 8, SlotCount: 3})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	// First alloc is slot 0, then 1, 2.
	for want := range 3 {
		h := p.Alloc()
		idx, ok := p.SlotIndex(h)
		if !ok || idx != want {
			t.Fatalf("SlotIndex: got (%d,%v), want (%d,true)", idx, ok, want)
		}
	}
	if _, ok := p.SlotIndex(0); ok {
		t.Fatal("SlotIndex of null handle")
	}
	if _, ok := p.SlotIndex(anam.EncodeHandle(0, uint64(9)<<3, anam.StateLive)); ok {
		t.Fatal("SlotIndex out of range")
	}
}

// =============================================================================
// Builder
// =============================================================================

func TestBuilderPool(t *testing.T) {
	p, err := anam.New(32).Size(128).Alignment(16).ZeroOnRelease().BuildPool()
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	if p.SlotCount() != 32 || p.SlotSize() != 128 {
		t.Fatalf("geometry: count %d size %d", p.SlotCount(), p.SlotSize())
	}

	if _, err := anam.New(0).BuildPool(); !errors.Is(err, anam.ErrInvalidSlotCount) {
		t.Fatalf("zero count: got %v", err)
	}
	if _, err := anam.New(8).Alignment(3).BuildPool(); !errors.Is(err, anam.ErrInvalidAlignment) {
		t.Fatalf("bad alignment: got %v", err)
	}
}
