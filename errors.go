// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

import (
	"errors"

	"code.hybscloud.com/iox"
)

// Configuration faults reported by NewPool, NewQueue and the Builder.
// Construction either succeeds completely or returns one of these;
// no operation on a constructed pool or queue ever panics.
var (
	ErrInvalidSlotSize  = errors.New("anam: slot size must be positive")
	ErrInvalidSlotCount = errors.New("anam: slot count must be positive")
	ErrInvalidAlignment = errors.New("anam: alignment must be a power of two >= 8")
	ErrInvalidItemSize  = errors.New("anam: item size must be positive")
	ErrInvalidCapacity  = errors.New("anam: capacity must be positive")
	ErrArenaTooLarge    = errors.New("anam: slot region exceeds the handle location field")
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue: the queue's node pool is exhausted (backpressure).
// For Dequeue: the queue is empty.
//
// ErrWouldBlock is a control flow signal, not a failure. The caller
// should retry later (with backoff or yield) rather than propagating
// the error. The handle-returning Push and the Pop primitives report
// the same conditions through a null handle and a false return; the
// exhaustion and empty counters behave identically on both surfaces.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
