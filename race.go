// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package anam

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent payload-copy tests: the detector
// cannot observe the happens-before edges established through handle
// CAS operations and reports false positives on the payload bytes.
const RaceEnabled = true
