package btree

import (
	"wrendb/pkg/pager"
	"wrendb/pkg/record"
)

// On-page node layouts. There is no node-type tag on disk: the descent code
// knows a page's role from its position and its parent's level, so every
// header byte goes to payload.
//
// Leaf:     occupancy u32 | right-sibling u32 | keys [K_leaf]T | rids [K_leaf]RecordID
// Interior: level u32     | occupancy u32     | keys [K_int]T  | children [K_int+1]u32
const (
	leafOccupancyOffset int64 = 0
	leafSiblingOffset   int64 = 4
	leafHeaderSize      int64 = 8

	interiorLevelOffset     int64 = 0
	interiorOccupancyOffset int64 = 4
	interiorHeaderSize      int64 = 8

	// Child page numbers are stored as u32, like every page pointer on disk.
	childPtrSize int64 = 4
)

// LeafEntryCapacity returns K_leaf(T): the most ⟨key, rid⟩ pairs a leaf of
// the given key type can hold on one page.
func LeafEntryCapacity(t KeyType) int64 {
	return (pager.Pagesize - leafHeaderSize) / (t.Size() + record.Size)
}

// InteriorKeyCapacity returns K_int(T): the most separator keys an interior
// node of the given key type can hold, leaving room for K_int+1 children.
func InteriorKeyCapacity(t KeyType) int64 {
	return (pager.Pagesize - interiorHeaderSize - childPtrSize) / (t.Size() + childPtrSize)
}
