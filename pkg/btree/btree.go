// Package btree implements a disk-backed B+ tree index over one attribute of
// a heap-organized relation. The tree maps typed keys to the record ids of
// the tuples holding them, and supports insertion, point lookups, and
// forward range scans over the sibling-linked leaf level. Every page access
// round-trips through the pager's pin/unpin discipline.
package btree

import (
	"errors"
	"fmt"
	"path/filepath"

	"wrendb/pkg/heap"
	"wrendb/pkg/pager"
	"wrendb/pkg/record"
)

// BTreeIndex is an index over one attribute of a relation, backed by its own
// index file. Page 1 of the file is the header; every other page is a leaf
// or interior node of the configured key type.
type BTreeIndex struct {
	pager          *pager.Pager // The pager used to store the B+Tree's data.
	relationName   string
	attrByteOffset int64
	keyType        KeyType
	rootPN         int64      // The pagenum of the current root node.
	scan           *scanState // In-progress range scan, or nil.
}

// OpenIndex builds an index over the given attribute of a relation. The
// index file is created in dir (overwriting any previous index of the same
// name) and bulk-loaded by scanning the relation. Returns the index and the
// derived index file name, "<relation>.<offset>".
func OpenIndex(rel *heap.HeapFile, attrByteOffset int64, keyType KeyType, dir string) (*BTreeIndex, string, error) {
	if !keyType.Valid() {
		return nil, "", fmt.Errorf("unknown key type %d", uint32(keyType))
	}
	if attrByteOffset < 0 || attrByteOffset+keyType.Size() > rel.RecordSize() {
		return nil, "", fmt.Errorf("attribute at offset %d of width %d does not fit a %d-byte record",
			attrByteOffset, keyType.Size(), rel.RecordSize())
	}
	indexName := fmt.Sprintf("%s.%d", rel.Name(), attrByteOffset)

	p, err := pager.Create(filepath.Join(dir, indexName))
	if err != nil {
		return nil, "", err
	}

	// Page 1: header. Page 2: the initial root, an empty interior node
	// whose children will be leaves.
	headerPage, err := p.GetNewPage()
	if err != nil {
		p.Close()
		return nil, "", err
	}
	rootPage, err := p.GetNewPage()
	if err != nil {
		p.PutPage(headerPage)
		p.Close()
		return nil, "", err
	}
	initInteriorPage(rootPage, keyType, 1)
	rootPN := rootPage.GetPageNum()
	p.PutPage(rootPage)

	index := &BTreeIndex{
		pager:          p,
		relationName:   rel.Name(),
		attrByteOffset: attrByteOffset,
		keyType:        keyType,
		rootPN:         rootPN,
	}
	writeIndexHeader(headerPage, indexMeta{
		relationName:   index.relationName,
		attrByteOffset: attrByteOffset,
		keyType:        keyType,
		rootPN:         rootPN,
	})
	p.PutPage(headerPage)

	// Bulk load: scan the relation and insert every tuple's key.
	fs := heap.NewFileScan(rel)
	for {
		rid, err := fs.ScanNext()
		if errors.Is(err, heap.ErrEndOfFile) {
			break
		}
		if err != nil {
			return nil, "", err
		}
		rec := fs.GetRecord()
		key := rec[attrByteOffset : attrByteOffset+keyType.Size()]
		if err := index.Insert(key, rid); err != nil {
			return nil, "", err
		}
	}
	return index, indexName, nil
}

// LoadIndex reopens a persisted index file, reading its configuration from
// the header page.
func LoadIndex(filename string) (*BTreeIndex, error) {
	p, err := pager.New(filename)
	if err != nil {
		return nil, err
	}
	if p.GetNumPages() < 2 {
		p.Close()
		return nil, fmt.Errorf("%s is not an index file", filename)
	}
	headerPage, err := p.GetPage(headerPN)
	if err != nil {
		p.Close()
		return nil, err
	}
	meta, err := readIndexHeader(headerPage)
	p.PutPage(headerPage)
	if err != nil {
		p.Close()
		return nil, err
	}
	return &BTreeIndex{
		pager:          p,
		relationName:   meta.relationName,
		attrByteOffset: meta.attrByteOffset,
		keyType:        meta.keyType,
		rootPN:         meta.rootPN,
	}, nil
}

// GetName returns the base file name of the file backing this index's pager.
func (index *BTreeIndex) GetName() string {
	return filepath.Base(index.pager.GetFileName())
}

// GetPager returns this index's pager.
func (index *BTreeIndex) GetPager() *pager.Pager {
	return index.pager
}

// KeyType returns the key type this index was built over.
func (index *BTreeIndex) KeyType() KeyType {
	return index.keyType
}

// Close ends any in-progress scan, flushes all changes to disk, and releases
// the index file.
func (index *BTreeIndex) Close() error {
	if index.scan != nil {
		index.EndScan()
	}
	return index.pager.Close()
}

// Insert adds a ⟨key, rid⟩ entry to the index. The key must be exactly the
// configured type's width. Duplicate keys with distinct record ids are kept.
func (index *BTreeIndex) Insert(key []byte, rid record.RecordID) error {
	if int64(len(key)) != index.keyType.Size() {
		return fmt.Errorf("key is %d bytes, want %d", len(key), index.keyType.Size())
	}

	rootPage, err := index.pager.GetPage(index.rootPN)
	if err != nil {
		return err
	}
	root := interiorView(rootPage, index.keyType)
	rootLevel := root.level

	// First-insert bootstrap: the freshly created root has no children.
	// Hang a single leaf off children[0] without touching the root's keys.
	if root.numKeys == 0 && root.getChildAt(0) == pager.NoPage {
		leafPage, err := index.pager.GetNewPage()
		if err != nil {
			index.pager.PutPage(rootPage)
			return err
		}
		leaf := initLeafPage(leafPage, index.keyType)
		leaf.insert(key, rid)
		root.updateChildAt(0, leafPage.GetPageNum())
		index.pager.PutPage(leafPage)
		index.pager.PutPage(rootPage)
		return nil
	}
	index.pager.PutPage(rootPage)

	result, err := index.insertRec(index.rootPN, false, key, rid)
	if err != nil || !result.isSplit {
		return err
	}

	// The root split: grow the tree by installing a new root above it.
	newRootPage, err := index.pager.GetNewPage()
	if err != nil {
		return err
	}
	newRoot := initInteriorPage(newRootPage, index.keyType, rootLevel+1)
	newRoot.updateKeyAt(0, result.key)
	newRoot.updateChildAt(0, index.rootPN)
	newRoot.updateChildAt(1, result.rightPN)
	newRoot.updateNumKeys(1)
	newRootPN := newRootPage.GetPageNum()
	index.pager.PutPage(newRootPage)

	index.rootPN = newRootPN
	return index.writeRootPointer()
}

// insertRec descends to the leaf that owns the key, inserts there, and on
// the way back up absorbs or further propagates any split. The page at each
// level is unpinned before descending and re-pinned only if a split comes
// back.
func (index *BTreeIndex) insertRec(pagenum int64, isLeaf bool, key []byte, rid record.RecordID) (split, error) {
	page, err := index.pager.GetPage(pagenum)
	if err != nil {
		return split{}, err
	}

	if isLeaf {
		leaf := leafView(page, index.keyType)
		var result split
		if leaf.numKeys < leaf.capacity() {
			leaf.insert(key, rid)
		} else {
			result, err = leaf.splitInsert(key, rid)
		}
		index.pager.PutPage(page)
		return result, err
	}

	node := interiorView(page, index.keyType)
	childPN := node.childForKey(key)
	childIsLeaf := node.level == 1
	index.pager.PutPage(page)

	childResult, err := index.insertRec(childPN, childIsLeaf, key, rid)
	if err != nil || !childResult.isSplit {
		return split{}, err
	}

	page, err = index.pager.GetPage(pagenum)
	if err != nil {
		return split{}, err
	}
	node = interiorView(page, index.keyType)
	result, err := node.insertSplit(childResult)
	index.pager.PutPage(page)
	return result, err
}

// writeRootPointer records the current root page number on the header page.
func (index *BTreeIndex) writeRootPointer() error {
	headerPage, err := index.pager.GetPage(headerPN)
	if err != nil {
		return err
	}
	writeIndexHeader(headerPage, indexMeta{
		relationName:   index.relationName,
		attrByteOffset: index.attrByteOffset,
		keyType:        index.keyType,
		rootPN:         index.rootPN,
	})
	return index.pager.PutPage(headerPage)
}
