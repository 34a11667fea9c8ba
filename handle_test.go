// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anam_test

import (
	"testing"

	"code.hybscloud.com/anam"
)

// TestHandleRoundTrip verifies that decoding and re-encoding a
// well-formed handle reproduces it bit-exactly.
func TestHandleRoundTrip(t *testing.T) {
	cases := []struct {
		gen   uint16
		loc   uint64
		state uint8
	}{
		{0, 8, anam.StateFree},
		{1, 8, anam.StateLive},
		{42, 0x1F8, anam.StateLive},
		{65535, 0x0000_FFFF_FFFF_FFF8, anam.StateLive},
		{7, 1 << 20, anam.StateQuarantine},
		{300, 1 << 40, anam.StateLocked},
	}
	for _, c := range cases {
		h := anam.EncodeHandle(c.gen, c.loc, c.state)
		if got := h.Generation(); got != c.gen {
			t.Fatalf("Generation: got %d, want %d", got, c.gen)
		}
		if got := h.Location(); got != c.loc {
			t.Fatalf("Location: got %#x, want %#x", got, c.loc)
		}
		if got := h.State(); got != c.state {
			t.Fatalf("State: got %d, want %d", got, c.state)
		}
		if again := anam.EncodeHandle(h.Generation(), h.Location(), h.State()); again != h {
			t.Fatalf("round trip: got %#x, want %#x", uint64(again), uint64(h))
		}
	}
}

// TestHandleLayout pins the normative bit layout.
func TestHandleLayout(t *testing.T) {
	h := anam.EncodeHandle(0xABCD, 0x0000_1234_5678_9AB8, anam.StateLive)
	want := anam.Handle(0xABCD_1234_5678_9AB9)
	if h != want {
		t.Fatalf("layout: got %#x, want %#x", uint64(h), uint64(want))
	}
}

// TestHandleMasking verifies the codec packs bits without validating:
// location bits outside 47..3 and state bits outside 2..0 are dropped.
func TestHandleMasking(t *testing.T) {
	h := anam.EncodeHandle(0, 0xFFFF_FFFF_FFFF_FFFF, 0xFF)
	if got := h.Location(); got != 0x0000_FFFF_FFFF_FFF8 {
		t.Fatalf("Location mask: got %#x", got)
	}
	if got := h.State(); got != 0x7 {
		t.Fatalf("State mask: got %#x", got)
	}
	if got := h.Generation(); got != 0 {
		t.Fatalf("Generation bleed: got %#x", got)
	}
}

// TestHandleNull verifies the all-zero word is the only null and that
// a zero-generation FREE handle of a real slot is not null.
func TestHandleNull(t *testing.T) {
	var h anam.Handle
	if !h.IsNull() {
		t.Fatal("zero handle must be null")
	}
	if anam.EncodeHandle(0, 0, anam.StateFree) != 0 {
		t.Fatal("encoding all-zero fields must produce the null handle")
	}
	if anam.EncodeHandle(0, 8, anam.StateFree).IsNull() {
		t.Fatal("a FREE handle with a location must not be null")
	}
}
