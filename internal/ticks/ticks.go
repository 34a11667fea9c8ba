// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ticks provides a monotonic timestamp source for trace
// entries. Values are nanoseconds since process start: comparable
// across goroutines, never affected by wall-clock adjustments, and
// cheap enough for hot paths.
package ticks

import "time"

var start = time.Now()

// Now returns the current monotonic tick count.
func Now() uint64 {
	return uint64(time.Since(start))
}
