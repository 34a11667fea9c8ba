// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam

// Producer is the enqueueing half of a queue. *Queue satisfies it.
//
// Enqueue stores a copy of data, so the caller may reuse the slice
// after the call returns. Returns nil on success, ErrWouldBlock when
// the queue is full.
type Producer interface {
	Enqueue(data []byte) error
}

// Consumer is the dequeueing half of a queue. *Queue satisfies it.
//
// Dequeue copies the oldest item into out, which must have at least
// ItemSize bytes. Returns nil on success, ErrWouldBlock when the
// queue is empty.
type Consumer interface {
	Dequeue(out []byte) error
}
