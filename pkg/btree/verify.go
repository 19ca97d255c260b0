package btree

import (
	"fmt"

	"wrendb/pkg/pager"
)

// leafInfo records what a tree walk saw at one leaf, for checking the
// sibling chain afterwards.
type leafInfo struct {
	pn        int64
	min, max  []byte
	siblingPN int64
}

// CheckInvariants walks the whole tree and verifies its structural
// invariants: sorted keys, separator bounds, uniform height, occupancy
// bounds, an intact left-to-right leaf chain, and a header that names the
// true root. Returns nil if the tree is well-formed.
func (index *BTreeIndex) CheckInvariants() error {
	// The header must name the current root.
	headerPage, err := index.pager.GetPage(headerPN)
	if err != nil {
		return err
	}
	meta, err := readIndexHeader(headerPage)
	index.pager.PutPage(headerPage)
	if err != nil {
		return err
	}
	if meta.rootPN != index.rootPN {
		return fmt.Errorf("header names root page %d, but the root is page %d", meta.rootPN, index.rootPN)
	}

	rootPage, err := index.pager.GetPage(index.rootPN)
	if err != nil {
		return err
	}
	root := interiorView(rootPage, index.keyType)
	bootstrapped := root.numKeys == 0
	empty := bootstrapped && root.getChildAt(0) == pager.NoPage
	index.pager.PutPage(rootPage)
	if empty {
		return nil
	}

	var leaves []leafInfo
	if _, _, _, err := index.checkNode(index.rootPN, false, true, bootstrapped, &leaves); err != nil {
		return err
	}

	// The sibling chain must visit the leaves in walk order and terminate.
	for i, leaf := range leaves {
		if i+1 < len(leaves) {
			next := leaves[i+1]
			if leaf.siblingPN != next.pn {
				return fmt.Errorf("leaf %d links to sibling %d, want %d", leaf.pn, leaf.siblingPN, next.pn)
			}
			if index.keyType.Compare(leaf.max, next.min) > 0 {
				return fmt.Errorf("leaf %d ends past the start of leaf %d", leaf.pn, next.pn)
			}
		} else if leaf.siblingPN != pager.NoPage {
			return fmt.Errorf("last leaf %d links to sibling %d, want none", leaf.pn, leaf.siblingPN)
		}
	}
	return nil
}

// checkNode verifies the subtree rooted at pn and returns its height along
// with the smallest and largest keys it holds. allowUnderfull covers the
// pre-split bootstrap state, where the root's sole leaf may hold fewer than
// half its capacity.
func (index *BTreeIndex) checkNode(pn int64, isLeaf, isRoot, allowUnderfull bool, leaves *[]leafInfo) (height int64, min, max []byte, err error) {
	page, err := index.pager.GetPage(pn)
	if err != nil {
		return 0, nil, nil, err
	}
	defer index.pager.PutPage(page)

	if isLeaf {
		node := leafView(page, index.keyType)
		if node.numKeys == 0 {
			return 0, nil, nil, fmt.Errorf("leaf %d is empty", pn)
		}
		halfFull := (node.capacity() + 1) / 2
		if !allowUnderfull && node.numKeys < halfFull {
			return 0, nil, nil, fmt.Errorf("leaf %d holds %d entries, want at least %d", pn, node.numKeys, halfFull)
		}
		if node.numKeys > node.capacity() {
			return 0, nil, nil, fmt.Errorf("leaf %d holds %d entries, over capacity %d", pn, node.numKeys, node.capacity())
		}
		for i := int64(0); i+1 < node.numKeys; i++ {
			if index.keyType.Compare(node.getKeyAt(i), node.getKeyAt(i+1)) > 0 {
				return 0, nil, nil, fmt.Errorf("leaf %d keys out of order at index %d", pn, i)
			}
		}
		min = append([]byte(nil), node.getKeyAt(0)...)
		max = append([]byte(nil), node.getKeyAt(node.numKeys-1)...)
		*leaves = append(*leaves, leafInfo{pn: pn, min: min, max: max, siblingPN: node.rightSiblingPN})
		return 0, min, max, nil
	}

	node := interiorView(page, index.keyType)
	if node.level < 1 {
		return 0, nil, nil, fmt.Errorf("interior %d has level %d", pn, node.level)
	}
	if !isRoot {
		if node.numKeys < node.capacity()/2 {
			return 0, nil, nil, fmt.Errorf("interior %d holds %d keys, want at least %d", pn, node.numKeys, node.capacity()/2)
		}
		if node.numKeys > node.capacity() {
			return 0, nil, nil, fmt.Errorf("interior %d holds %d keys, over capacity %d", pn, node.numKeys, node.capacity())
		}
	}
	for i := int64(0); i+1 < node.numKeys; i++ {
		if index.keyType.Compare(node.getKeyAt(i), node.getKeyAt(i+1)) > 0 {
			return 0, nil, nil, fmt.Errorf("interior %d separators out of order at index %d", pn, i)
		}
	}

	childIsLeaf := node.level == 1
	childCount := node.numKeys + 1
	var childHeight int64
	for i := int64(0); i < childCount; i++ {
		childPN := node.getChildAt(i)
		if childPN == pager.NoPage {
			return 0, nil, nil, fmt.Errorf("interior %d is missing child %d", pn, i)
		}
		h, cmin, cmax, err := index.checkNode(childPN, childIsLeaf, false, allowUnderfull && isRoot, leaves)
		if err != nil {
			return 0, nil, nil, err
		}
		if !childIsLeaf {
			// Levels must step down by exactly one.
			childPage, err := index.pager.GetPage(childPN)
			if err != nil {
				return 0, nil, nil, err
			}
			childLevel := interiorView(childPage, index.keyType).level
			index.pager.PutPage(childPage)
			if childLevel != node.level-1 {
				return 0, nil, nil, fmt.Errorf("interior %d at level %d has child %d at level %d", pn, node.level, childPN, childLevel)
			}
		}
		if i == 0 {
			childHeight = h
			min = cmin
		} else if h != childHeight {
			return 0, nil, nil, fmt.Errorf("interior %d has children of unequal height", pn)
		}
		if i == childCount-1 {
			max = cmax
		}
		// Separator bounds: keys through child i sit between the
		// surrounding separators. Bounds are inclusive on both sides:
		// a leaf split can leave keys equal to the promoted separator in
		// the left child.
		if i > 0 && index.keyType.Compare(cmin, node.getKeyAt(i-1)) < 0 {
			return 0, nil, nil, fmt.Errorf("interior %d: child %d starts below separator %d", pn, i, i-1)
		}
		if i < node.numKeys && index.keyType.Compare(cmax, node.getKeyAt(i)) > 0 {
			return 0, nil, nil, fmt.Errorf("interior %d: child %d ends above separator %d", pn, i, i)
		}
	}
	return childHeight + 1, min, max, nil
}
