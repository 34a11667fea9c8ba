// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package trace

import "encoding/binary"

// Operation codes carried in Entry.Op. The numbering is part of the
// on-disk format and matches the analyzer's expectations.
const (
	OpAlloc        uint8 = 0 // successful allocation
	OpRelease      uint8 = 1 // slot released
	OpGetValid     uint8 = 2 // access with matching generation
	OpGetStale     uint8 = 3 // access with stale generation
	OpValidateFail uint8 = 4 // external validation failure (reserved)
)

// EntrySize is the fixed on-disk size of one trace entry in bytes.
const EntrySize = 16

// Entry is one recorded pool event. Entries are written to disk as
// 16-byte little-endian tuples:
//
//	offset 0   timestamp  u64
//	offset 8   slot index u32
//	offset 12  generation u16
//	offset 14  op type    u8
//	offset 15  writer id  u8
type Entry struct {
	Timestamp  uint64
	SlotIndex  uint32
	Generation uint16
	Op         uint8
	WriterID   uint8
}

// marshal encodes e into b, which must have at least EntrySize bytes.
func (e Entry) marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], e.Timestamp)
	binary.LittleEndian.PutUint32(b[8:12], e.SlotIndex)
	binary.LittleEndian.PutUint16(b[12:14], e.Generation)
	b[14] = e.Op
	b[15] = e.WriterID
}

// unmarshalEntry decodes one entry from b, which must have at least
// EntrySize bytes.
func unmarshalEntry(b []byte) Entry {
	return Entry{
		Timestamp:  binary.LittleEndian.Uint64(b[0:8]),
		SlotIndex:  binary.LittleEndian.Uint32(b[8:12]),
		Generation: binary.LittleEndian.Uint16(b[12:14]),
		Op:         b[14],
		WriterID:   b[15],
	}
}
