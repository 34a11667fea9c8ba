// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package trace records pool events into binary per-writer ring
// buffers for offline analysis of slot reuse patterns.
//
// A Collector implements the anam.Recorder interface. Events are
// routed to one of a fixed set of writer stripes; each stripe owns a
// ring buffer and appends to its own trace_thread_NNN.bin file, so
// flushing one writer never stalls another. Buffers flush at 75% fill
// and on Close; if a flush cannot keep up, the ring drops its oldest
// entries and counts an overflow.
//
// The on-disk format is a flat sequence of 16-byte little-endian
// tuples (see Entry). ReadDir merges all files of a directory and
// sorts by timestamp; ReuseEntropy and OpStats summarize the merged
// stream.
package trace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/anam"
	"code.hybscloud.com/anam/internal/ticks"
)

var _ anam.Recorder = (*Collector)(nil)

// Collector routes pool events into striped ring buffers and persists
// them as binary trace files. It satisfies anam.Recorder; plug it into
// a pool or queue through the Recorder configuration field.
//
// All methods are safe for concurrent use.
type Collector struct {
	dir      string
	capacity uint32
	log      *slog.Logger

	stripes []stripe
	mask    uint32

	active atomix.Bool
}

// stripe is one writer: a ring buffer, its output file and a lock.
// Events for one slot always land in the same stripe, so per-slot
// operation order is preserved within a file.
type stripe struct {
	mu        sync.Mutex
	entries   []Entry
	head      uint32 // write position
	tail      uint32 // flush position
	id        uint8
	written   uint64
	overflows uint32
	scratch   []byte
}

// CollectorStats summarizes a collector's activity.
type CollectorStats struct {
	EntriesWritten uint64 `json:"entries_written"`
	Overflows      uint32 `json:"overflows"`
}

// NewCollector creates a collector from cfg and ensures the output
// directory exists. The number of writer stripes is the smallest power
// of two covering GOMAXPROCS, capped at 256 to fit the writer id byte.
func NewCollector(cfg Config) (*Collector, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, err
	}

	n := uint32(1)
	for n < uint32(runtime.GOMAXPROCS(0)) {
		n <<= 1
	}
	if n > 256 {
		n = 256
	}

	c := &Collector{
		dir:      cfg.OutputDir,
		capacity: cfg.BufferSize,
		log:      cfg.Logger,
		stripes:  make([]stripe, n),
		mask:     n - 1,
	}
	for i := range c.stripes {
		s := &c.stripes[i]
		s.entries = make([]Entry, cfg.BufferSize)
		s.id = uint8(i)
		s.scratch = make([]byte, 0, 4096)
	}
	c.active.Store(true)

	c.log.Info("trace: collector started",
		slog.String("dir", cfg.OutputDir),
		slog.Int("writers", int(n)),
		slog.Uint64("buffer_entries", uint64(cfg.BufferSize)))
	return c, nil
}

// Alloc records a successful allocation. Part of anam.Recorder.
func (c *Collector) Alloc(slot int, gen uint16) { c.record(OpAlloc, slot, gen) }

// Release records a slot release. Part of anam.Recorder.
func (c *Collector) Release(slot int, gen uint16) { c.record(OpRelease, slot, gen) }

// GetValid records an access with a matching generation. Part of anam.Recorder.
func (c *Collector) GetValid(slot int, gen uint16) { c.record(OpGetValid, slot, gen) }

// GetStale records an access with a stale generation. Part of anam.Recorder.
func (c *Collector) GetStale(slot int, gen uint16) { c.record(OpGetStale, slot, gen) }

// ValidateFail records an external validation failure (op code 4).
// Not emitted by pools; exposed for test drivers and external
// validators that share the trace stream.
func (c *Collector) ValidateFail(slot int, gen uint16) { c.record(OpValidateFail, slot, gen) }

func (c *Collector) record(op uint8, slot int, gen uint16) {
	if !c.active.LoadAcquire() {
		return
	}
	s := &c.stripes[uint32(slot)&c.mask]
	s.mu.Lock()

	if s.head-s.tail >= c.capacity {
		// A previous flush failed and the ring is full: drop the
		// oldest entry, ring buffer fashion.
		s.overflows++
		s.tail++
	}
	s.entries[s.head&(c.capacity-1)] = Entry{
		Timestamp:  ticks.Now(),
		SlotIndex:  uint32(slot),
		Generation: gen,
		Op:         op,
		WriterID:   s.id,
	}
	s.head++
	s.written++

	// Flush at 75% fill to keep headroom for bursts.
	if s.head-s.tail > c.capacity*3/4 {
		c.flushStripe(s)
	}
	s.mu.Unlock()
}

// flushStripe appends the unflushed window to the stripe's file.
// Caller holds s.mu. On failure the window is kept for the next
// attempt and the error is logged.
func (c *Collector) flushStripe(s *stripe) {
	count := s.head - s.tail
	if count == 0 {
		return
	}

	path := filepath.Join(c.dir, fmt.Sprintf("trace_thread_%03d.bin", s.id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		c.log.Error("trace: open failed", slog.String("path", path), slog.Any("err", err))
		return
	}

	buf := s.scratch[:0]
	var rec [EntrySize]byte
	mask := c.capacity - 1
	for i := s.tail; i != s.head; i++ {
		s.entries[i&mask].marshal(rec[:])
		buf = append(buf, rec[:]...)
	}
	s.scratch = buf[:0]

	if _, err := f.Write(buf); err != nil {
		c.log.Error("trace: write failed", slog.String("path", path), slog.Any("err", err))
		f.Close()
		return
	}
	if err := f.Close(); err != nil {
		c.log.Error("trace: close failed", slog.String("path", path), slog.Any("err", err))
		return
	}
	s.tail = s.head
}

// Flush forces every stripe's pending entries to disk.
func (c *Collector) Flush() {
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.Lock()
		c.flushStripe(s)
		s.mu.Unlock()
	}
}

// Close flushes all buffers and deactivates the collector. Events
// recorded after Close are dropped. Close is idempotent.
func (c *Collector) Close() {
	if !c.active.Load() {
		return
	}
	c.active.StoreRelease(false)
	c.Flush()
	stats := c.Stats()
	c.log.Info("trace: collector stopped",
		slog.Uint64("entries", stats.EntriesWritten),
		slog.Uint64("overflows", uint64(stats.Overflows)))
}

// Stats sums the per-stripe counters.
func (c *Collector) Stats() CollectorStats {
	var out CollectorStats
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.Lock()
		out.EntriesWritten += s.written
		out.Overflows += s.overflows
		s.mu.Unlock()
	}
	return out
}
