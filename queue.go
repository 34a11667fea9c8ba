// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// QueueConfig configures a lock-free FIFO queue.
type QueueConfig struct {
	// ItemSize is the payload size of each queued item in bytes. > 0.
	ItemSize int
	// Capacity is the maximum number of queued items. > 0. The node
	// pool is sized Capacity+1; one slot permanently holds the dummy
	// sentinel.
	Capacity int
	// Recorder, if non-nil, receives events from the queue's node pool.
	Recorder Recorder
}

// DefaultQueueConfig returns the default queue configuration:
// 64-byte items, capacity 1024.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		ItemSize: 64,
		Capacity: 1024,
	}
}

// Queue is a Michael-Scott multi-producer multi-consumer FIFO whose
// node identity is a handle rather than an address.
//
// Every atomic field that holds a node reference in the classical
// algorithm holds a handle here. A CAS therefore compares the full
// (generation, location, state) triple: a node slot recycled between
// snapshot and CAS carries a different generation, the comparison
// fails bit-wise, and the operation retries. ABA is prevented
// structurally, without hazard pointers or epoch reclamation; retries
// caused this way are counted in ABAPrevented.
//
// head always refers to a live sentinel (the dummy). The first real
// item, if any, is reached through the dummy's next link. tail refers
// to the last-linked node or its predecessor and is helped forward by
// any observer that witnesses a non-null tail.next.
//
// Push and Pop are lock-free; no operation blocks or panics.
type Queue struct {
	itemSize int
	capacity int
	pool     *Pool
	next     []atomix.Uint64 // per-node queue links, parallel to the pool's slots

	_    pad
	head atomix.Uint64 // Handle of the dummy sentinel
	_    pad
	tail atomix.Uint64 // Handle of the last-linked node or its predecessor
	_    pad
	length       atomix.Int64
	pushCount    atomix.Uint64
	popCount     atomix.Uint64
	pushFails    atomix.Uint64
	popFails     atomix.Uint64
	abaPrevented atomix.Uint64
	_            pad
}

// NewQueue creates a queue from cfg. The queue owns a private pool of
// Capacity+1 node slots and allocates the dummy sentinel immediately.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.ItemSize <= 0 {
		return nil, ErrInvalidItemSize
	}
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	pool, err := NewPool(PoolConfig{
		SlotSize:  cfg.ItemSize,
		SlotCount: cfg.Capacity + 1,
		Recorder:  cfg.Recorder,
	})
	if err != nil {
		return nil, err
	}

	q := &Queue{
		itemSize: cfg.ItemSize,
		capacity: cfg.Capacity,
		pool:     pool,
		next:     make([]atomix.Uint64, cfg.Capacity+1),
	}

	dummy := q.allocNode(nil)
	// The pool was just created with Capacity+1 free slots; the first
	// alloc cannot fail.
	q.head.Store(uint64(dummy))
	q.tail.Store(uint64(dummy))

	return q, nil
}

// allocNode acquires a node slot, clears its link and copies data into
// the payload. Returns the null handle when the pool is exhausted.
func (q *Queue) allocNode(data []byte) Handle {
	h := q.pool.Alloc()
	if h.IsNull() {
		return 0
	}
	idx := int(h.slotNumber()) - 1
	q.next[idx].Store(0)
	if data != nil {
		copy(q.pool.payload(idx), data)
	}
	return h
}

// node dereferences a handle held in head, tail or a link field. A
// false ok means the slot behind the handle was recycled since the
// handle was snapshotted; callers count an ABA-prevention event and
// retry.
func (q *Queue) node(h Handle) (idx int, ok bool) {
	if q.pool.Get(h) == nil {
		return 0, false
	}
	return int(h.slotNumber()) - 1, true
}

// Push enqueues a copy of data (at most ItemSize bytes) and returns
// the handle of the node that carries it, as a receipt. The receipt is
// not needed for Pop. Returns the null handle and counts a push
// failure when the node pool is exhausted.
func (q *Queue) Push(data []byte) Handle {
	n := q.allocNode(data)
	if n.IsNull() {
		q.pushFails.Add(1)
		return 0
	}

	sw := spin.Wait{}
	for {
		tail := Handle(q.tail.LoadAcquire())
		if tail.IsNull() {
			// Closed queue: hand the node back and refuse.
			q.pool.Release(n)
			q.pushFails.Add(1)
			return 0
		}
		tidx, ok := q.node(tail)
		if !ok {
			q.abaPrevented.Add(1)
			sw.Once()
			continue
		}
		next := Handle(q.next[tidx].LoadAcquire())
		// Re-establish that the snapshot is still current before
		// acting on the link read through it.
		if uint64(tail) != q.tail.Load() {
			q.abaPrevented.Add(1)
			sw.Once()
			continue
		}
		if next.IsNull() {
			if q.next[tidx].CompareAndSwapAcqRel(0, uint64(n)) {
				// Linearization point. Help tail forward, then done;
				// failure means another observer already helped.
				q.tail.CompareAndSwapAcqRel(uint64(tail), uint64(n))
				break
			}
		} else {
			// tail lags; help it forward and retry.
			q.tail.CompareAndSwapAcqRel(uint64(tail), uint64(next))
		}
		sw.Once()
	}

	q.length.Add(1)
	q.pushCount.Add(1)
	return n
}

// Pop dequeues the oldest item into out. When out is non-nil it must
// have at least ItemSize bytes; the copy is committed only after the
// head CAS succeeds, so a racing retry never exposes bytes from a node
// that was recycled mid-read. A nil out discards the payload. Returns
// false and counts a pop failure when the queue is empty.
func (q *Queue) Pop(out []byte) bool {
	var scratch []byte
	if out != nil {
		scratch = make([]byte, q.itemSize)
	}

	sw := spin.Wait{}
	for {
		head := Handle(q.head.LoadAcquire())
		tail := Handle(q.tail.LoadAcquire())
		if head.IsNull() {
			q.popFails.Add(1)
			return false
		}
		hidx, ok := q.node(head)
		if !ok {
			q.abaPrevented.Add(1)
			sw.Once()
			continue
		}
		next := Handle(q.next[hidx].LoadAcquire())
		if uint64(head) != q.head.Load() {
			q.abaPrevented.Add(1)
			sw.Once()
			continue
		}

		if head == tail {
			if next.IsNull() {
				q.popFails.Add(1)
				return false
			}
			// tail lags behind a completed push; help it forward.
			q.tail.CompareAndSwapAcqRel(uint64(tail), uint64(next))
			sw.Once()
			continue
		}

		npay := q.pool.Get(next)
		if npay == nil {
			q.abaPrevented.Add(1)
			sw.Once()
			continue
		}
		if out != nil {
			copy(scratch, npay)
		}
		if q.head.CompareAndSwapAcqRel(uint64(head), uint64(next)) {
			// The popped node becomes the new dummy; the old dummy's
			// slot goes back to the pool with its generation advanced.
			q.pool.Release(head)
			if out != nil {
				copy(out, scratch)
			}
			q.length.Add(-1)
			q.popCount.Add(1)
			return true
		}
		sw.Once()
	}
}

// Peek copies the oldest item into out without removing it. Concurrent
// with a Pop it may return a value that is about to be consumed, but
// never a value that was never on the queue. Returns false when the
// queue is empty or a dereference raced with a recycle.
func (q *Queue) Peek(out []byte) bool {
	head := Handle(q.head.Load())
	hidx, ok := q.node(head)
	if !ok {
		return false
	}
	next := Handle(q.next[hidx].LoadAcquire())
	if next.IsNull() {
		return false
	}
	npay := q.pool.Get(next)
	if npay == nil {
		return false
	}
	if out != nil {
		copy(out, npay)
	}
	return true
}

// Empty reports whether the queue has no items. A dereference failure
// on the dummy is reported as empty.
func (q *Queue) Empty() bool {
	head := Handle(q.head.Load())
	hidx, ok := q.node(head)
	if !ok {
		return true
	}
	return Handle(q.next[hidx].Load()).IsNull()
}

// Len returns the cached item count: exact in quiescent states,
// approximate under concurrency.
func (q *Queue) Len() int {
	return int(q.length.Load())
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Enqueue adds a copy of data to the queue (non-blocking).
// Returns ErrWouldBlock when the queue is full.
func (q *Queue) Enqueue(data []byte) error {
	if q.Push(data).IsNull() {
		return ErrWouldBlock
	}
	return nil
}

// Dequeue removes the oldest item into out (non-blocking).
// Returns ErrWouldBlock when the queue is empty.
func (q *Queue) Dequeue(out []byte) error {
	if !q.Pop(out) {
		return ErrWouldBlock
	}
	return nil
}

// QueueStats is a snapshot of the queue's monotonic counters. Fields
// are read one at a time and may be mutually inconsistent by a small
// skew under concurrency.
type QueueStats struct {
	Capacity     int    `json:"capacity"`
	PushCount    uint64 `json:"push_count"`
	PopCount     uint64 `json:"pop_count"`
	PushFails    uint64 `json:"push_fails"`
	PopFails     uint64 `json:"pop_fails"`
	ABAPrevented uint64 `json:"aba_prevented"`
}

// Stats assembles a counter snapshot field by field.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Capacity:     q.capacity,
		PushCount:    q.pushCount.Load(),
		PopCount:     q.popCount.Load(),
		PushFails:    q.pushFails.Load(),
		PopFails:     q.popFails.Load(),
		ABAPrevented: q.abaPrevented.Load(),
	}
}

// PoolStats exposes the node pool's counters for observation; the
// tracing collaborator reads anamnesis and generation figures here.
func (q *Queue) PoolStats() PoolStats {
	return q.pool.Stats()
}

// Close drains every pending item, releases the terminal dummy and
// clears head and tail; the node pool stays readable through
// PoolStats. Close must not run concurrently with other
// operations; afterwards the queue permanently reports empty and
// refuses pushes.
func (q *Queue) Close() {
	for q.Pop(nil) {
	}
	head := Handle(q.head.Load())
	if !head.IsNull() {
		q.pool.Release(head)
	}
	q.head.Store(0)
	q.tail.Store(0)
}
