package btree

import (
	"encoding/binary"
	"sort"

	"wrendb/pkg/pager"
	"wrendb/pkg/record"
)

// leafNode is a typed view of a pinned page holding a leaf: an ordered run
// of ⟨key, rid⟩ entries plus the right-sibling link that chains leaves into
// the range-scan list.
type leafNode struct {
	page           *pager.Page
	keyType        KeyType
	numKeys        int64 // occupancy
	rightSiblingPN int64 // 0 marks the end of the chain
}

// leafView interprets a pinned page as a leaf node.
func leafView(page *pager.Page, keyType KeyType) *leafNode {
	data := page.GetData()
	return &leafNode{
		page:           page,
		keyType:        keyType,
		numKeys:        int64(binary.NativeEndian.Uint32(data[leafOccupancyOffset:])),
		rightSiblingPN: int64(binary.NativeEndian.Uint32(data[leafSiblingOffset:])),
	}
}

// initLeafPage zeroes a freshly allocated page and views it as an empty leaf.
func initLeafPage(page *pager.Page, keyType KeyType) *leafNode {
	zeroPage(page)
	return leafView(page, keyType)
}

// capacity returns K_leaf for this leaf's key type.
func (node *leafNode) capacity() int64 {
	return LeafEntryCapacity(node.keyType)
}

// keyPos returns the page offset of the ith key.
func (node *leafNode) keyPos(index int64) int64 {
	return leafHeaderSize + index*node.keyType.Size()
}

// ridPos returns the page offset of the ith record id.
func (node *leafNode) ridPos(index int64) int64 {
	return leafHeaderSize + node.capacity()*node.keyType.Size() + index*record.Size
}

// getKeyAt returns the key stored at the given index. The returned slice
// aliases the page buffer and is only valid while the page stays pinned
// and unmodified.
func (node *leafNode) getKeyAt(index int64) []byte {
	pos := node.keyPos(index)
	return node.page.GetData()[pos : pos+node.keyType.Size()]
}

// updateKeyAt writes the key at the given index.
func (node *leafNode) updateKeyAt(index int64, key []byte) {
	node.page.Update(key, node.keyPos(index), node.keyType.Size())
}

// getRIDAt returns the record id stored at the given index.
func (node *leafNode) getRIDAt(index int64) record.RecordID {
	pos := node.ridPos(index)
	return record.Unmarshal(node.page.GetData()[pos : pos+record.Size])
}

// updateRIDAt writes the record id at the given index.
func (node *leafNode) updateRIDAt(index int64, rid record.RecordID) {
	node.page.Update(rid.Marshal(), node.ridPos(index), record.Size)
}

// updateNumKeys updates the occupancy field in the node struct and the page.
func (node *leafNode) updateNumKeys(newNumKeys int64) {
	node.numKeys = newNumKeys
	data := make([]byte, 4)
	binary.NativeEndian.PutUint32(data, uint32(newNumKeys))
	node.page.Update(data, leafOccupancyOffset, 4)
}

// setRightSibling sets the right-sibling pagenum of the leaf, returning the
// old right sibling.
func (node *leafNode) setRightSibling(siblingPN int64) int64 {
	oldSiblingPN := node.rightSiblingPN
	node.rightSiblingPN = siblingPN
	data := make([]byte, 4)
	binary.NativeEndian.PutUint32(data, uint32(siblingPN))
	node.page.Update(data, leafSiblingOffset, 4)
	return oldSiblingPN
}

// search returns the first index whose key compares greater than the given
// key, or greater-or-equal when strict is false. If no key qualifies,
// returns numKeys.
func (node *leafNode) search(key []byte, strict bool) int64 {
	minIndex := sort.Search(
		int(node.numKeys),
		func(idx int) bool {
			cmp := node.keyType.Compare(node.getKeyAt(int64(idx)), key)
			if strict {
				return cmp > 0
			}
			return cmp >= 0
		},
	)
	return int64(minIndex)
}

// insert places a new entry into a non-full leaf, keeping the key array
// sorted. A duplicate key lands after all existing equal keys.
func (node *leafNode) insert(key []byte, rid record.RecordID) {
	insertPos := node.search(key, true)
	// Shift entries one slot right to open the gap.
	for i := node.numKeys - 1; i >= insertPos; i-- {
		node.updateKeyAt(i+1, node.getKeyAt(i))
		node.updateRIDAt(i+1, node.getRIDAt(i))
	}
	node.updateKeyAt(insertPos, key)
	node.updateRIDAt(insertPos, rid)
	node.updateNumKeys(node.numKeys + 1)
}

// clearFrom zeroes the key and rid arrays from the given index to capacity.
func (node *leafNode) clearFrom(index int64) {
	zeroRange(node.page, node.keyPos(index), (node.capacity()-index)*node.keyType.Size())
	zeroRange(node.page, node.ridPos(index), (node.capacity()-index)*record.Size)
}

// splitInsert handles an insertion into a full leaf: it allocates a sibling,
// redistributes the merged entries around the midpoint, relinks the sibling
// chain, and returns the promoted separator (the new leaf's first key).
// The cut is positional, so when duplicates of the separator straddle it,
// some keys equal to the separator stay in this (left) leaf.
func (node *leafNode) splitInsert(key []byte, rid record.RecordID) (split, error) {
	p := node.page.GetPager()
	newPage, err := p.GetNewPage()
	if err != nil {
		return split{}, err
	}
	defer p.PutPage(newPage)
	newNode := initLeafPage(newPage, node.keyType)

	// The K existing entries merged with the new one form a stream of K+1;
	// the first ceil((K+1)/2) stay here, the rest move to the new leaf.
	insertPos := node.search(key, true)
	total := node.numKeys + 1
	left := (total + 1) / 2
	mergedKey := func(i int64) []byte {
		switch {
		case i < insertPos:
			return node.getKeyAt(i)
		case i == insertPos:
			return key
		}
		return node.getKeyAt(i - 1)
	}
	mergedRID := func(i int64) record.RecordID {
		switch {
		case i < insertPos:
			return node.getRIDAt(i)
		case i == insertPos:
			return rid
		}
		return node.getRIDAt(i - 1)
	}

	// Fill the new leaf first, while this leaf's entries are still intact.
	for i := left; i < total; i++ {
		newNode.updateKeyAt(i-left, mergedKey(i))
		newNode.updateRIDAt(i-left, mergedRID(i))
	}
	newNode.updateNumKeys(total - left)

	// Now rewrite this leaf's tail in place. Walking down reads every
	// merged source slot before it is overwritten.
	for i := left - 1; i >= insertPos; i-- {
		node.updateKeyAt(i, mergedKey(i))
		node.updateRIDAt(i, mergedRID(i))
	}
	node.updateNumKeys(left)
	node.clearFrom(left)

	// Relink the sibling chain around the new leaf.
	prevSiblingPN := node.setRightSibling(newPage.GetPageNum())
	newNode.setRightSibling(prevSiblingPN)

	sep := append([]byte(nil), newNode.getKeyAt(0)...)
	return split{
		isSplit: true,
		key:     sep,
		rightPN: newPage.GetPageNum(),
	}, nil
}
