// Package heap implements heap-organized relations: files of fixed-size
// records stored in slotted pages behind the pager. Records are addressed by
// RecordID (page, slot) and are never moved once written; there is no delete.
package heap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"wrendb/pkg/pager"
	"wrendb/pkg/record"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash"
)

// The heap file's header lives on page 1.
const headerPN int64 = 1

const heapMagic uint32 = 0x48454150

// Header page layout.
const (
	magicOffset      int64 = 0
	recordSizeOffset int64 = 4
	numRecordsOffset int64 = 8
)

// Each slot stores the record bytes followed by an xxhash checksum of them,
// verified on every read.
const checksumSize int64 = 8

var (
	ErrBadRecordSize = errors.New("record size does not match the relation's record size")
	ErrNoSuchRecord  = errors.New("no record at the given record id")
	ErrCorruptRecord = errors.New("record failed checksum verification")
)

// HeapFile is a relation stored as a heap of fixed-size records.
type HeapFile struct {
	pager        *pager.Pager
	recordSize   int64
	slotSize     int64 // recordSize + checksum
	slotsPerPage int64
	bitmapBytes  int64
	numRecords   int64
}

// slotCounts computes how many slots of the given slot size fit on a data
// page alongside their occupancy bitmap.
func slotCounts(slotSize int64) (slots int64, bitmapBytes int64) {
	slots = (pager.Pagesize * 8) / (slotSize*8 + 1)
	for (slots+7)/8+slots*slotSize > pager.Pagesize {
		slots--
	}
	return slots, (slots + 7) / 8
}

// Create creates a fresh heap file at the given path with the given record
// size, truncating any existing file of the same name.
func Create(path string, recordSize int64) (*HeapFile, error) {
	if recordSize <= 0 || recordSize+checksumSize+1 > pager.Pagesize {
		return nil, fmt.Errorf("unsupported record size %d", recordSize)
	}
	p, err := pager.Create(path)
	if err != nil {
		return nil, err
	}
	headerPage, err := p.GetNewPage()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 16)
	binary.NativeEndian.PutUint32(buf[magicOffset:], heapMagic)
	binary.NativeEndian.PutUint32(buf[recordSizeOffset:], uint32(recordSize))
	binary.NativeEndian.PutUint64(buf[numRecordsOffset:], 0)
	headerPage.Update(buf, 0, int64(len(buf)))
	p.PutPage(headerPage)

	slots, bitmapBytes := slotCounts(recordSize + checksumSize)
	return &HeapFile{
		pager:        p,
		recordSize:   recordSize,
		slotSize:     recordSize + checksumSize,
		slotsPerPage: slots,
		bitmapBytes:  bitmapBytes,
	}, nil
}

// Open opens an existing heap file, reading its record size from the header.
func Open(path string) (*HeapFile, error) {
	p, err := pager.New(path)
	if err != nil {
		return nil, err
	}
	if p.GetNumPages() < 1 {
		p.Close()
		return nil, fmt.Errorf("%s is not a heap file", path)
	}
	headerPage, err := p.GetPage(headerPN)
	if err != nil {
		p.Close()
		return nil, err
	}
	data := headerPage.GetData()
	magic := binary.NativeEndian.Uint32(data[magicOffset:])
	recordSize := int64(binary.NativeEndian.Uint32(data[recordSizeOffset:]))
	numRecords := int64(binary.NativeEndian.Uint64(data[numRecordsOffset:]))
	p.PutPage(headerPage)
	if magic != heapMagic {
		p.Close()
		return nil, fmt.Errorf("%s is not a heap file", path)
	}

	slots, bitmapBytes := slotCounts(recordSize + checksumSize)
	return &HeapFile{
		pager:        p,
		recordSize:   recordSize,
		slotSize:     recordSize + checksumSize,
		slotsPerPage: slots,
		bitmapBytes:  bitmapBytes,
		numRecords:   numRecords,
	}, nil
}

// Name returns the relation's name: the base name of its backing file.
func (hf *HeapFile) Name() string {
	return filepath.Base(hf.pager.GetFileName())
}

// RecordSize returns the fixed byte width of this relation's records.
func (hf *HeapFile) RecordSize() int64 {
	return hf.recordSize
}

// NumRecords returns the number of records stored in the relation.
func (hf *HeapFile) NumRecords() int64 {
	return hf.numRecords
}

// GetPager returns the pager backing this heap file.
func (hf *HeapFile) GetPager() *pager.Pager {
	return hf.pager
}

// Close flushes all changes to disk.
func (hf *HeapFile) Close() error {
	return hf.pager.Close()
}

// slotBitmap builds a bitset view of a data page's slot-occupancy bitmap.
func (hf *HeapFile) slotBitmap(page *pager.Page) *bitset.BitSet {
	bm := bitset.New(uint(hf.slotsPerPage))
	data := page.GetData()
	for i := int64(0); i < hf.slotsPerPage; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			bm.Set(uint(i))
		}
	}
	return bm
}

// markSlot sets a slot's occupancy bit on the page.
func (hf *HeapFile) markSlot(page *pager.Page, slot int64) {
	b := page.GetData()[slot/8] | (1 << (slot % 8))
	page.Update([]byte{b}, slot/8, 1)
}

// slotPos returns the page offset of the given slot.
func (hf *HeapFile) slotPos(slot int64) int64 {
	return hf.bitmapBytes + slot*hf.slotSize
}

// InsertRecord appends a record to the relation, returning its record id.
// Records only ever fill forward: the last data page is the only one that
// can have free slots.
func (hf *HeapFile) InsertRecord(data []byte) (record.RecordID, error) {
	if int64(len(data)) != hf.recordSize {
		return record.RecordID{}, ErrBadRecordSize
	}

	var page *pager.Page
	var slot int64
	var err error
	if hf.pager.GetNumPages() > headerPN {
		page, err = hf.pager.GetPage(hf.pager.GetNumPages())
		if err != nil {
			return record.RecordID{}, err
		}
		bm := hf.slotBitmap(page)
		if free, ok := bm.NextClear(0); ok && int64(free) < hf.slotsPerPage {
			slot = int64(free)
		} else {
			// Last page is full; start a new one.
			hf.pager.PutPage(page)
			page = nil
		}
	}
	if page == nil {
		page, err = hf.pager.GetNewPage()
		if err != nil {
			return record.RecordID{}, err
		}
		// Frames are recycled, so a fresh page must be zeroed.
		page.Update(make([]byte, pager.Pagesize), 0, pager.Pagesize)
		slot = 0
	}

	// Write the record, its checksum, and the occupancy bit.
	pos := hf.slotPos(slot)
	page.Update(data, pos, hf.recordSize)
	sum := make([]byte, checksumSize)
	binary.NativeEndian.PutUint64(sum, xxhash.Sum64(data))
	page.Update(sum, pos+hf.recordSize, checksumSize)
	hf.markSlot(page, slot)
	rid := record.New(uint32(page.GetPageNum()), uint32(slot))
	hf.pager.PutPage(page)

	// Bump the record count on the header page.
	hf.numRecords++
	headerPage, err := hf.pager.GetPage(headerPN)
	if err != nil {
		return record.RecordID{}, err
	}
	cnt := make([]byte, 8)
	binary.NativeEndian.PutUint64(cnt, uint64(hf.numRecords))
	headerPage.Update(cnt, numRecordsOffset, 8)
	hf.pager.PutPage(headerPage)

	return rid, nil
}

// GetRecord returns a checksum-verified copy of the record at the given id.
func (hf *HeapFile) GetRecord(rid record.RecordID) ([]byte, error) {
	pn := int64(rid.PageNum)
	slot := int64(rid.SlotNum)
	if pn <= headerPN || pn > hf.pager.GetNumPages() || slot >= hf.slotsPerPage {
		return nil, ErrNoSuchRecord
	}
	page, err := hf.pager.GetPage(pn)
	if err != nil {
		return nil, err
	}
	defer hf.pager.PutPage(page)
	if !hf.slotBitmap(page).Test(uint(slot)) {
		return nil, ErrNoSuchRecord
	}
	return hf.readSlot(page, slot)
}

// readSlot copies the record out of a slot, verifying its checksum.
// The slot's occupancy bit must be set.
func (hf *HeapFile) readSlot(page *pager.Page, slot int64) ([]byte, error) {
	pos := hf.slotPos(slot)
	data := page.GetData()[pos : pos+hf.recordSize]
	sum := binary.NativeEndian.Uint64(page.GetData()[pos+hf.recordSize : pos+hf.slotSize])
	if xxhash.Sum64(data) != sum {
		return nil, ErrCorruptRecord
	}
	out := make([]byte, hf.recordSize)
	copy(out, data)
	return out, nil
}
