package btree

import (
	"fmt"
	"io"

	"wrendb/pkg/pager"
)

// Print will pretty-print all nodes in the tree. The root is always an
// interior node.
func (index *BTreeIndex) Print(w io.Writer) {
	index.printNode(w, index.rootPN, false, "", "")
}

// PrintPage will pretty-print the node with the given page number. Whether
// the page is a leaf cannot be read off the page itself, so the caller says.
func (index *BTreeIndex) PrintPage(w io.Writer, pagenum int64, isLeaf bool) {
	index.printNode(w, pagenum, isLeaf, "", "")
}

func (index *BTreeIndex) printNode(w io.Writer, pagenum int64, isLeaf bool, firstPrefix string, prefix string) {
	page, err := index.pager.GetPage(pagenum)
	if err != nil {
		fmt.Fprintf(w, "%v<unreadable page %v: %v>\n", firstPrefix, pagenum, err)
		return
	}
	defer index.pager.PutPage(page)

	if isLeaf {
		node := leafView(page, index.keyType)
		fmt.Fprintf(w, "%v[%v] Leaf size: %v\n", firstPrefix, pagenum, node.numKeys)
		for i := int64(0); i < node.numKeys; i++ {
			fmt.Fprintf(w, "%v |--> (%v, %v)\n",
				prefix, index.keyType.FormatKey(node.getKeyAt(i)), node.getRIDAt(i))
		}
		if node.rightSiblingPN != pager.NoPage {
			fmt.Fprintf(w, "%v |--+\n", prefix)
			fmt.Fprintf(w, "%v    | right sibling @ [%v]\n", prefix, node.rightSiblingPN)
			fmt.Fprintf(w, "%v    v\n", prefix)
		}
		return
	}

	node := interiorView(page, index.keyType)
	var isRoot string
	if pagenum == index.rootPN {
		isRoot = " (root)"
	}
	fmt.Fprintf(w, "%v[%v] Interior%v level: %v size: %v\n",
		firstPrefix, pagenum, isRoot, node.level, node.numKeys+1)
	if node.numKeys == 0 && node.getChildAt(0) == pager.NoPage {
		return
	}
	nextFirstPrefix := prefix + " |--> "
	nextPrefix := prefix + " |    "
	for i := int64(0); i <= node.numKeys; i++ {
		fmt.Fprintf(w, "%v\n", nextPrefix)
		index.printNode(w, node.getChildAt(i), node.level == 1, nextFirstPrefix, nextPrefix)
		if i != node.numKeys {
			fmt.Fprintf(w, "\n%v[KEY] %v\n", nextPrefix, index.keyType.FormatKey(node.getKeyAt(i)))
		}
	}
}
