package btree

import (
	"errors"
	"fmt"

	"wrendb/pkg/pager"
	"wrendb/pkg/record"
)

// Operator is a range-scan comparison operator. The low bound takes GT or
// GTE; the high bound takes LT or LTE.
type Operator uint8

const (
	LT Operator = iota
	LTE
	GTE
	GT
)

func (op Operator) String() string {
	switch op {
	case LT:
		return "<"
	case LTE:
		return "<="
	case GTE:
		return ">="
	case GT:
		return ">"
	}
	return fmt.Sprintf("Operator(%d)", uint8(op))
}

// ParseOperator maps an operator's text form to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "<":
		return LT, nil
	case "<=":
		return LTE, nil
	case ">=":
		return GTE, nil
	case ">":
		return GT, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

var (
	// ErrBadOperator is returned by StartScan when the low operator is not
	// GT/GTE or the high operator is not LT/LTE.
	ErrBadOperator = errors.New("bad scan operator")
	// ErrBadRange is returned by StartScan when low exceeds high.
	ErrBadRange = errors.New("bad scan range: low bound exceeds high bound")
	// ErrNoMatch is returned by StartScan when no key satisfies the range.
	ErrNoMatch = errors.New("no key in the scan range")
	// ErrNotStarted is returned by ScanNext and EndScan without an active scan.
	ErrNotStarted = errors.New("no scan in progress")
	// ErrScanComplete is returned by ScanNext once the range is exhausted.
	ErrScanComplete = errors.New("scan complete")
)

// scanState tracks an in-progress range scan. Between StartScan and the
// scan's end exactly one leaf page stays pinned: the one under the cursor.
type scanState struct {
	high     []byte
	highOp   Operator
	leafPage *pager.Page
	leaf     *leafNode
	idx      int64
	done     bool // set once the cursor ran off the high bound or the chain
}

// StartScan begins a range scan over [low, high] under the given operators,
// positioning a cursor on the first qualifying entry. Any scan already in
// progress is ended first. Fails with ErrBadOperator or ErrBadRange on a
// malformed predicate and ErrNoMatch when no entry qualifies.
func (index *BTreeIndex) StartScan(low []byte, lowOp Operator, high []byte, highOp Operator) error {
	if index.scan != nil {
		index.EndScan()
	}
	if lowOp != GT && lowOp != GTE {
		return ErrBadOperator
	}
	if highOp != LT && highOp != LTE {
		return ErrBadOperator
	}
	if int64(len(low)) != index.keyType.Size() || int64(len(high)) != index.keyType.Size() {
		return fmt.Errorf("scan bounds must be %d bytes", index.keyType.Size())
	}
	if index.keyType.Compare(low, high) > 0 {
		return ErrBadRange
	}

	// Descend along the low bound until we pin the first candidate leaf.
	page, err := index.pager.GetPage(index.rootPN)
	if err != nil {
		return err
	}
	for {
		node := interiorView(page, index.keyType)
		if node.numKeys == 0 && node.getChildAt(0) == pager.NoPage {
			// Empty tree.
			index.pager.PutPage(page)
			return ErrNoMatch
		}
		childPN := node.childForScan(low, lowOp == GT)
		childIsLeaf := node.level == 1
		index.pager.PutPage(page)
		page, err = index.pager.GetPage(childPN)
		if err != nil {
			return err
		}
		if childIsLeaf {
			break
		}
	}

	// Find the first entry satisfying the low bound, walking the sibling
	// chain if this leaf holds nothing qualifying.
	leaf := leafView(page, index.keyType)
	for {
		idx := leaf.search(low, lowOp == GT)
		if idx < leaf.numKeys {
			index.scan = &scanState{
				high:     append([]byte(nil), high...),
				highOp:   highOp,
				leafPage: page,
				leaf:     leaf,
				idx:      idx,
			}
			return nil
		}
		nextPN := leaf.rightSiblingPN
		index.pager.PutPage(page)
		if nextPN == pager.NoPage {
			return ErrNoMatch
		}
		page, err = index.pager.GetPage(nextPN)
		if err != nil {
			return err
		}
		leaf = leafView(page, index.keyType)
	}
}

// ScanNext emits the record id under the cursor and advances it, following
// the leaf chain as leaves are exhausted. Fails with ErrNotStarted if no
// scan is active and ErrScanComplete once the previous call emitted the last
// in-range entry.
func (index *BTreeIndex) ScanNext() (record.RecordID, error) {
	s := index.scan
	if s == nil {
		return record.RecordID{}, ErrNotStarted
	}
	if s.done {
		return record.RecordID{}, ErrScanComplete
	}

	// Check the high bound before emitting.
	cmp := index.keyType.Compare(s.leaf.getKeyAt(s.idx), s.high)
	if (s.highOp == LT && cmp >= 0) || (s.highOp == LTE && cmp > 0) {
		index.releaseScanLeaf(s)
		return record.RecordID{}, ErrScanComplete
	}

	rid := s.leaf.getRIDAt(s.idx)
	s.idx++
	if s.idx >= s.leaf.numKeys {
		// Step to the next leaf, or mark the chain exhausted.
		nextPN := s.leaf.rightSiblingPN
		index.releaseScanLeaf(s)
		if nextPN != pager.NoPage {
			page, err := index.pager.GetPage(nextPN)
			if err != nil {
				return record.RecordID{}, err
			}
			s.leafPage = page
			s.leaf = leafView(page, index.keyType)
			s.idx = 0
			s.done = false
		}
	}
	return rid, nil
}

// EndScan closes the active scan, releasing the pinned leaf if any. Fails
// with ErrNotStarted if no scan is active.
func (index *BTreeIndex) EndScan() error {
	s := index.scan
	if s == nil {
		return ErrNotStarted
	}
	if s.leafPage != nil {
		index.pager.PutPage(s.leafPage)
	}
	index.scan = nil
	return nil
}

// releaseScanLeaf unpins the scan's current leaf and marks the scan done
// until a successor leaf is installed.
func (index *BTreeIndex) releaseScanLeaf(s *scanState) {
	if s.leafPage != nil {
		index.pager.PutPage(s.leafPage)
		s.leafPage = nil
		s.leaf = nil
	}
	s.done = true
}
