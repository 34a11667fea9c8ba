// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ReadFile loads every entry from one binary trace file. A trailing
// partial record (from a torn write) is ignored.
func ReadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n := len(raw) / EntrySize
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, unmarshalEntry(raw[i*EntrySize:]))
	}
	return entries, nil
}

// ReadDir merges every trace_thread_*.bin file in dir and sorts the
// result by timestamp, reconstructing a global operation order.
func ReadDir(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "trace_thread_*.bin"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("trace: no trace files in %s", dir)
	}
	sort.Strings(paths)

	var all []Entry
	for _, p := range paths {
		entries, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	// Stable: entries with equal timestamps keep their per-file order.
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return all, nil
}

// ReuseEntropy computes the normalized Shannon entropy of the slot
// distribution over allocation events.
//
// The LIFO free list reuses the most recently released slot first, so
// a single-threaded alloc/release loop concentrates on few slots (low
// entropy) while heavy contention spreads allocations across the pool
// (entropy approaching 1). The result is in [0, 1]: 0 means every
// allocation hit the same slot, 1 means a uniform spread over all
// numSlots slots. Returns 0 when there are no allocation events or
// numSlots < 2.
func ReuseEntropy(entries []Entry, numSlots int) float64 {
	if numSlots < 2 {
		return 0
	}
	counts := make(map[uint32]int)
	total := 0
	for _, e := range entries {
		if e.Op == OpAlloc {
			counts[e.SlotIndex]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h / math.Log2(float64(numSlots))
}

// Summary aggregates per-operation counts over a trace stream.
type Summary struct {
	TotalOps      int `json:"total_ops"`
	Allocs        int `json:"allocs"`
	Releases      int `json:"releases"`
	Gets          int `json:"gets"`
	StaleGets     int `json:"stale_gets"`
	ValidateFails int `json:"validate_fails"`
}

// StaleRate returns the fraction of accesses that presented a stale
// generation, in [0, 1]. Zero when no accesses were recorded.
func (s Summary) StaleRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.StaleGets) / float64(s.Gets)
}

// OpStats tallies a trace stream into a Summary.
func OpStats(entries []Entry) Summary {
	var s Summary
	s.TotalOps = len(entries)
	for _, e := range entries {
		switch e.Op {
		case OpAlloc:
			s.Allocs++
		case OpRelease:
			s.Releases++
		case OpGetValid:
			s.Gets++
		case OpGetStale:
			s.Gets++
			s.StaleGets++
		case OpValidateFail:
			s.ValidateFails++
		}
	}
	return s
}
