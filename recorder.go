// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

// Recorder receives per-operation events from a pool. It is the
// collaborator hook consumed by the tracing subsystem in
// code.hybscloud.com/anam/trace; any implementation may be plugged in
// through PoolConfig.Recorder or QueueConfig.Recorder.
//
// Implementations must be safe for concurrent use by multiple
// goroutines and must not block: events are emitted from lock-free
// hot paths. A nil recorder costs a single predictable branch per
// operation.
//
// Event arguments are the dense slot index and the generation the
// operation observed. GetStale fires when an access presents a handle
// whose claimed generation no longer matches the slot; in a correct
// program it never fires outside deliberate stale-handle probing.
type Recorder interface {
	Alloc(slot int, gen uint16)
	Release(slot int, gen uint16)
	GetValid(slot int, gen uint16)
	GetStale(slot int, gen uint16)
}
