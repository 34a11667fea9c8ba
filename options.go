// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

// Options collects the configurable knobs shared by pools and queues.
type Options struct {
	// Geometry
	count     int // slot count (pool) or capacity (queue)
	size      int // slot size (pool) or item size (queue)
	alignment int

	// Policy
	zeroOnAlloc   bool
	zeroOnRelease bool

	// Collaborators
	recorder Recorder
}

// Builder creates pools and queues with fluent configuration.
//
// Example:
//
//	// A pool of 4096 cache-line slots, cleared on release
//	p, err := anam.New(4096).Size(64).ZeroOnRelease().BuildPool()
//
//	// A queue of 1024 16-byte items feeding a trace collector
//	q, err := anam.New(1024).Size(16).Record(collector).BuildQueue()
type Builder struct {
	opts Options
}

// New creates a builder for a pool of count slots or a queue of count
// items. Size defaults to 64 bytes and alignment to 8, matching
// DefaultPoolConfig and DefaultQueueConfig.
func New(count int) *Builder {
	return &Builder{opts: Options{
		count:     count,
		size:      64,
		alignment: 8,
	}}
}

// Size sets the slot size (BuildPool) or item size (BuildQueue) in bytes.
func (b *Builder) Size(n int) *Builder {
	b.opts.size = n
	return b
}

// Alignment sets the payload alignment for BuildPool. Must be a power
// of two >= 8; validated at build time. Queues ignore it.
func (b *Builder) Alignment(n int) *Builder {
	b.opts.alignment = n
	return b
}

// ZeroOnAlloc clears payload bytes before each allocation is handed out.
func (b *Builder) ZeroOnAlloc() *Builder {
	b.opts.zeroOnAlloc = true
	return b
}

// ZeroOnRelease clears payload bytes when a slot returns to the free list.
func (b *Builder) ZeroOnRelease() *Builder {
	b.opts.zeroOnRelease = true
	return b
}

// Record plugs a Recorder into the built pool, or into the private
// node pool of the built queue.
func (b *Builder) Record(r Recorder) *Builder {
	b.opts.recorder = r
	return b
}

// BuildPool creates a slot pool from the builder's configuration.
func (b *Builder) BuildPool() (*Pool, error) {
	return NewPool(PoolConfig{
		SlotSize:      b.opts.size,
		SlotCount:     b.opts.count,
		Alignment:     b.opts.alignment,
		ZeroOnAlloc:   b.opts.zeroOnAlloc,
		ZeroOnRelease: b.opts.zeroOnRelease,
		Recorder:      b.opts.recorder,
	})
}

// BuildQueue creates a lock-free FIFO from the builder's configuration.
// Only the count, size and recorder are used; the zeroing policies and
// the alignment do not apply to the queue's private node pool.
func (b *Builder) BuildQueue() (*Queue, error) {
	return NewQueue(QueueConfig{
		ItemSize: b.opts.size,
		Capacity: b.opts.count,
		Recorder: b.opts.recorder,
	})
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill a cache line after two 8-byte fields.
type padShort [64 - 16]byte
