package btree

import (
	"encoding/binary"
	"sort"

	"wrendb/pkg/pager"
)

// interiorNode is a typed view of a pinned page holding an interior node:
// separator keys and the child page numbers they partition. level==1 means
// the children are leaves; level>1 means they are interior nodes.
type interiorNode struct {
	page    *pager.Page
	keyType KeyType
	level   int64
	numKeys int64 // occupancy; valid children are numKeys+1 when numKeys>0
}

// interiorView interprets a pinned page as an interior node.
func interiorView(page *pager.Page, keyType KeyType) *interiorNode {
	data := page.GetData()
	return &interiorNode{
		page:    page,
		keyType: keyType,
		level:   int64(binary.NativeEndian.Uint32(data[interiorLevelOffset:])),
		numKeys: int64(binary.NativeEndian.Uint32(data[interiorOccupancyOffset:])),
	}
}

// initInteriorPage zeroes a freshly allocated page and views it as an empty
// interior node of the given level.
func initInteriorPage(page *pager.Page, keyType KeyType, level int64) *interiorNode {
	zeroPage(page)
	node := interiorView(page, keyType)
	node.updateLevel(level)
	return node
}

// capacity returns K_int for this node's key type.
func (node *interiorNode) capacity() int64 {
	return InteriorKeyCapacity(node.keyType)
}

// keyPos returns the page offset of the ith separator key.
func (node *interiorNode) keyPos(index int64) int64 {
	return interiorHeaderSize + index*node.keyType.Size()
}

// childPos returns the page offset of the ith child page number.
func (node *interiorNode) childPos(index int64) int64 {
	return interiorHeaderSize + node.capacity()*node.keyType.Size() + index*childPtrSize
}

// getKeyAt returns the separator key at the given index. The returned slice
// aliases the page buffer.
func (node *interiorNode) getKeyAt(index int64) []byte {
	pos := node.keyPos(index)
	return node.page.GetData()[pos : pos+node.keyType.Size()]
}

// updateKeyAt writes the separator key at the given index.
func (node *interiorNode) updateKeyAt(index int64, key []byte) {
	node.page.Update(key, node.keyPos(index), node.keyType.Size())
}

// getChildAt returns the child page number at the given index.
func (node *interiorNode) getChildAt(index int64) int64 {
	pos := node.childPos(index)
	return int64(binary.NativeEndian.Uint32(node.page.GetData()[pos : pos+childPtrSize]))
}

// updateChildAt writes the child page number at the given index.
func (node *interiorNode) updateChildAt(index int64, pagenum int64) {
	data := make([]byte, childPtrSize)
	binary.NativeEndian.PutUint32(data, uint32(pagenum))
	node.page.Update(data, node.childPos(index), childPtrSize)
}

// updateNumKeys updates the occupancy field in the node struct and the page.
func (node *interiorNode) updateNumKeys(newNumKeys int64) {
	node.numKeys = newNumKeys
	data := make([]byte, 4)
	binary.NativeEndian.PutUint32(data, uint32(newNumKeys))
	node.page.Update(data, interiorOccupancyOffset, 4)
}

// updateLevel updates the level field in the node struct and the page.
func (node *interiorNode) updateLevel(level int64) {
	node.level = level
	data := make([]byte, 4)
	binary.NativeEndian.PutUint32(data, uint32(level))
	node.page.Update(data, interiorLevelOffset, 4)
}

// search returns the first index whose separator compares greater than the
// given key, or greater-or-equal when strict is false. If no separator
// qualifies, returns numKeys.
func (node *interiorNode) search(key []byte, strict bool) int64 {
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

// childForKey returns the page number of the child to descend into when
// inserting the given key. A key equal to a separator descends to the
// separator's right.
func (node *interiorNode) childForKey(key []byte) int64 {
	return node.getChildAt(node.search(key, true))
}

// childForScan returns the page number of the child a scan's descent takes
// for its low bound. An inclusive bound equal to a separator descends to the
// separator's left, since entries equal to the separator can sit in the left
// subtree when duplicates straddled a split; the leaf chain walk picks up
// the rest.
func (node *interiorNode) childForScan(low []byte, strict bool) int64 {
	return node.getChildAt(node.search(low, strict))
}

// clearFrom zeroes the key array from keyIndex to capacity and the child
// array from keyIndex+1 to capacity+1.
func (node *interiorNode) clearFrom(keyIndex int64) {
	zeroRange(node.page, node.keyPos(keyIndex), (node.capacity()-keyIndex)*node.keyType.Size())
	zeroRange(node.page, node.childPos(keyIndex+1), (node.capacity()-keyIndex)*childPtrSize)
}

// insertSplit absorbs a child's split into this node, inserting the promoted
// separator and its right child. If this node is itself full, it splits in
// turn and the returned split cascades upward.
func (node *interiorNode) insertSplit(childSplit split) (split, error) {
	insertPos := node.search(childSplit.key, true)
	if node.numKeys < node.capacity() {
		// Shift separators right.
		for i := node.numKeys - 1; i >= insertPos; i-- {
			node.updateKeyAt(i+1, node.getKeyAt(i))
		}
		// Shift children right.
		for i := node.numKeys; i > insertPos; i-- {
			node.updateChildAt(i+1, node.getChildAt(i))
		}
		node.updateKeyAt(insertPos, childSplit.key)
		node.updateChildAt(insertPos+1, childSplit.rightPN)
		node.updateNumKeys(node.numKeys + 1)
		return split{}, nil
	}
	return node.splitInsert(childSplit, insertPos)
}

// splitInsert splits a full interior node around an incoming separator.
// Unlike a leaf split, the middle key moves up: it is promoted to the parent
// and removed from this level, and its right-hand child becomes children[0]
// of the new right node.
func (node *interiorNode) splitInsert(childSplit split, insertPos int64) (split, error) {
	p := node.page.GetPager()
	newPage, err := p.GetNewPage()
	if err != nil {
		return split{}, err
	}
	defer p.PutPage(newPage)
	newNode := initInteriorPage(newPage, node.keyType, node.level)

	// Materialize the merged stream of K+1 keys and K+2 children; the page
	// is about to be rewritten, so the keys are copied out.
	count := node.numKeys
	keys := make([][]byte, 0, count+1)
	children := make([]int64, 0, count+2)
	children = append(children, node.getChildAt(0))
	for i := int64(0); i < count; i++ {
		if i == insertPos {
			keys = append(keys, childSplit.key)
			children = append(children, childSplit.rightPN)
		}
		keys = append(keys, append([]byte(nil), node.getKeyAt(i)...))
		children = append(children, node.getChildAt(i+1))
	}
	if insertPos == count {
		keys = append(keys, childSplit.key)
		children = append(children, childSplit.rightPN)
	}

	// The first floor(K/2) keys stay here, the key at the midpoint is
	// promoted, and the rest move to the new node.
	mid := count / 2
	for i := mid + 1; i < int64(len(keys)); i++ {
		newNode.updateKeyAt(i-mid-1, keys[i])
		newNode.updateChildAt(i-mid-1, children[i])
	}
	newNode.updateChildAt(int64(len(keys))-mid-1, children[len(children)-1])
	newNode.updateNumKeys(int64(len(keys)) - mid - 1)

	for i := int64(0); i < mid; i++ {
		node.updateKeyAt(i, keys[i])
		node.updateChildAt(i, children[i])
	}
	node.updateChildAt(mid, children[mid])
	node.updateNumKeys(mid)
	node.clearFrom(mid)

	return split{
		isSplit: true,
		key:     keys[mid],
		rightPN: newPage.GetPageNum(),
	}, nil
}
