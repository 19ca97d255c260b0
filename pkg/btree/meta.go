package btree

import (
	"encoding/binary"
	"fmt"

	"wrendb/pkg/pager"
)

// The index header lives on page 1 of the index file. It records which
// relation and attribute the index is over and where the current root is.
const headerPN int64 = 1

// relationNameSize is the fixed width of the header's relation-name buffer.
const relationNameSize = 20

// Header page layout.
const (
	metaNameOffset   int64 = 0
	metaAttrOffset   int64 = relationNameSize
	metaTypeOffset   int64 = relationNameSize + 4
	metaRootPNOffset int64 = relationNameSize + 8
)

// indexMeta mirrors the header page's fields in memory.
type indexMeta struct {
	relationName   string
	attrByteOffset int64
	keyType        KeyType
	rootPN         int64
}

// writeIndexHeader serializes the header onto a pinned header page.
func writeIndexHeader(page *pager.Page, meta indexMeta) {
	buf := make([]byte, metaRootPNOffset+4)
	copy(buf[metaNameOffset:metaNameOffset+relationNameSize], meta.relationName)
	binary.NativeEndian.PutUint32(buf[metaAttrOffset:], uint32(meta.attrByteOffset))
	binary.NativeEndian.PutUint32(buf[metaTypeOffset:], uint32(meta.keyType))
	binary.NativeEndian.PutUint32(buf[metaRootPNOffset:], uint32(meta.rootPN))
	page.Update(buf, 0, int64(len(buf)))
}

// readIndexHeader deserializes the header from a pinned header page.
func readIndexHeader(page *pager.Page) (indexMeta, error) {
	data := page.GetData()
	meta := indexMeta{
		relationName:   string(cstring(data[metaNameOffset : metaNameOffset+relationNameSize])),
		attrByteOffset: int64(binary.NativeEndian.Uint32(data[metaAttrOffset:])),
		keyType:        KeyType(binary.NativeEndian.Uint32(data[metaTypeOffset:])),
		rootPN:         int64(binary.NativeEndian.Uint32(data[metaRootPNOffset:])),
	}
	if !meta.keyType.Valid() {
		return indexMeta{}, fmt.Errorf("index header holds unknown key type %d", uint32(meta.keyType))
	}
	if meta.rootPN == pager.NoPage {
		return indexMeta{}, fmt.Errorf("index header holds no root page")
	}
	return meta, nil
}
