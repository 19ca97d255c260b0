// Package record defines the record identifier shared between heap-organized
// relations and the indexes built over them.
package record

import (
	"encoding/binary"
	"fmt"
)

// Size is the number of bytes a marshalled RecordID occupies.
const Size int64 = 8

// RecordID identifies a tuple in a heap file by the page that holds it and
// the slot within that page. It is opaque to indexes: never compared, only
// stored and returned.
type RecordID struct {
	PageNum uint32
	SlotNum uint32
}

// New constructs a RecordID from a page number and a slot number.
func New(pageNum uint32, slotNum uint32) RecordID {
	return RecordID{PageNum: pageNum, SlotNum: slotNum}
}

// Marshal serializes the RecordID into 8 bytes in the host's byte order.
func (rid RecordID) Marshal() []byte {
	data := make([]byte, Size)
	binary.NativeEndian.PutUint32(data[0:4], rid.PageNum)
	binary.NativeEndian.PutUint32(data[4:8], rid.SlotNum)
	return data
}

// Unmarshal deserializes a RecordID from 8 bytes.
func Unmarshal(data []byte) RecordID {
	return RecordID{
		PageNum: binary.NativeEndian.Uint32(data[0:4]),
		SlotNum: binary.NativeEndian.Uint32(data[4:8]),
	}
}

// String renders the RecordID as (page, slot).
func (rid RecordID) String() string {
	return fmt.Sprintf("(%d, %d)", rid.PageNum, rid.SlotNum)
}
