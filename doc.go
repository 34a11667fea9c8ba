// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package anam provides handle-based concurrent memory primitives:
// a generational slot pool and a lock-free MPMC FIFO built on it.
//
// Raw pointers in lock-free data structures are forgeable: a slot
// freed and reallocated at the same address satisfies a pending CAS
// that should have failed (the ABA problem). This package replaces
// pointers with 64-bit handles that pack a per-slot generation counter
// next to the slot's location. Reuse advances the generation, so a
// stale handle can never compare equal to a fresh one — the CAS fails,
// the operation retries, and the event is counted instead of
// corrupting memory.
//
// # Handle Layout
//
// A handle is an opaque 64-bit word:
//
//	bit 63..48  generation (16 bits)
//	bit 47..3   location   (45 bits)
//	bit  2..0   state      (FREE=0, LIVE=1, QUARANTINE=2, LOCKED=4)
//
// The all-zero word is the null handle. Handles are minted by Alloc
// and validated afresh on every access; there is no cached validity.
//
// # Quick Start
//
// Pool:
//
//	p, err := anam.NewPool(anam.PoolConfig{SlotSize: 64, SlotCount: 1024})
//	if err != nil {
//	    // configuration fault
//	}
//
//	h := p.Alloc()            // null handle when exhausted
//	buf := p.Get(h)           // payload bytes, nil if h is stale
//	p.Release(h)              // generation advances; h is now counterfeit
//	p.Get(h)                  // nil — and PoolStats.AnamnesisCount ticks
//
// Queue:
//
//	q, err := anam.NewQueue(anam.QueueConfig{ItemSize: 8, Capacity: 4096})
//	if err != nil {
//	    // configuration fault
//	}
//
//	receipt := q.Push(item)   // null handle when full
//	out := make([]byte, 8)
//	ok := q.Pop(out)          // false when empty
//
// Builder form:
//
//	p, err := anam.New(1024).Size(64).ZeroOnRelease().BuildPool()
//	q, err := anam.New(4096).Size(8).BuildQueue()
//
// # Pool Semantics
//
// The pool owns a contiguous aligned arena of fixed-size slots and a
// Treiber free-list threaded through per-slot headers. A slot's
// generation increments on every release, so the sequence of handles
// minted for one slot is unique within the 16-bit wrap window (65536
// releases of the same slot). Validation rejects a handle when it is
// null, its state is not LIVE, its location falls outside the slot
// region, or its generation disagrees with the slot; each rejection
// increments the anamnesis counter.
//
// Alloc is wait-free apart from CAS retries on the free-list head;
// exhaustion returns the null handle without touching statistics.
//
// # Queue Semantics
//
// The queue is the Michael-Scott algorithm with handles in every
// position that classically holds a pointer: head, tail and each
// node's next link. Nodes come from a private pool sized capacity+1;
// one slot permanently holds the dummy sentinel. Successful pushes
// linearize at the CAS installing tail.next; successful pops at the
// CAS advancing head. The queue is FIFO for the set of successful
// operations. CAS retries forced by slot reuse are counted in
// QueueStats.ABAPrevented.
//
// Push returns the enqueue-time node handle as a receipt; Pop does not
// need it. Length is a cached counter: exact when quiescent,
// approximate under concurrency.
//
// # Error Handling
//
// Construction reports configuration faults through sentinel errors.
// Operations never panic and never block: exhaustion and empty
// conditions surface as a null handle or a false return, with
// monotonic counters recording every failure kind. The Enqueue and
// Dequeue veneers report the same conditions as [ErrWouldBlock],
// sourced from [code.hybscloud.com/iox] for ecosystem consistency:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(item)
//	    if err == nil {
//	        break
//	    }
//	    if anam.IsWouldBlock(err) {
//	        backoff.Wait()
//	        continue
//	    }
//	}
//
// # Statistics and Tracing
//
// PoolStats and QueueStats are field-by-field snapshots of monotonic
// counters; readers must tolerate off-by-one skew between fields. The
// Recorder interface exposes per-operation events (alloc, release,
// valid get, stale get) to external collectors; the subpackage
// code.hybscloud.com/anam/trace records them into binary per-writer
// ring buffers for offline entropy analysis.
//
// # Race Detection
//
// Go's race detector tracks explicit synchronization primitives but
// cannot observe happens-before relationships established through
// atomic operations on separate variables. Payload bytes here are
// protected by acquire-release ordering on handle words, which the
// detector does not model; concurrent tests that copy payloads are
// skipped under -race via the RaceEnabled constant. For lock-free
// correctness verification use stress testing without the detector or
// formal tools.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for CPU
// pause instructions in retry loops, and [code.hybscloud.com/iox] for
// semantic errors.
package anam
