package btree

import (
	"wrendb/pkg/pager"
)

// split carries the result of a node split up the insertion path: the
// separator key promoted into the parent and the page number of the new
// right sibling.
type split struct {
	isSplit bool
	key     []byte // promoted separator (owned copy, not a page alias)
	rightPN int64
}

// zeroPage resets every byte of a page. Pager frames are recycled, so pages
// must be zeroed before being reinterpreted as fresh nodes.
func zeroPage(page *pager.Page) {
	page.Update(make([]byte, pager.Pagesize), 0, pager.Pagesize)
}

// zeroRange zeroes size bytes of a page starting at offset.
func zeroRange(page *pager.Page, offset int64, size int64) {
	if size <= 0 {
		return
	}
	page.Update(make([]byte, size), offset, size)
}
