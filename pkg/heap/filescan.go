package heap

import (
	"errors"

	"wrendb/pkg/record"
)

// ErrEndOfFile signals that a FileScan has visited every record in the relation.
var ErrEndOfFile = errors.New("end of relation file")

// FileScan iterates over every record of a heap file in physical order.
// No page stays pinned between calls; the current record is cached.
type FileScan struct {
	hf      *HeapFile
	pagenum int64
	slot    int64
	rid     record.RecordID
	current []byte
}

// NewFileScan returns a FileScan positioned before the first record.
func NewFileScan(hf *HeapFile) *FileScan {
	return &FileScan{hf: hf, pagenum: headerPN + 1, slot: 0}
}

// ScanNext advances to the next record and returns its record id, or
// ErrEndOfFile once the relation is exhausted. The record's bytes are
// available through GetRecord until the next call.
func (fs *FileScan) ScanNext() (record.RecordID, error) {
	for fs.pagenum <= fs.hf.pager.GetNumPages() {
		page, err := fs.hf.pager.GetPage(fs.pagenum)
		if err != nil {
			return record.RecordID{}, err
		}
		bm := fs.hf.slotBitmap(page)
		if next, ok := bm.NextSet(uint(fs.slot)); ok && int64(next) < fs.hf.slotsPerPage {
			data, err := fs.hf.readSlot(page, int64(next))
			fs.hf.pager.PutPage(page)
			if err != nil {
				return record.RecordID{}, err
			}
			fs.rid = record.New(uint32(fs.pagenum), uint32(next))
			fs.current = data
			fs.slot = int64(next) + 1
			return fs.rid, nil
		}
		fs.hf.pager.PutPage(page)
		fs.pagenum++
		fs.slot = 0
	}
	return record.RecordID{}, ErrEndOfFile
}

// GetRecord returns the bytes of the record most recently returned by ScanNext.
func (fs *FileScan) GetRecord() []byte {
	return fs.current
}
