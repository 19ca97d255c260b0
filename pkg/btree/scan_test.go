package btree_test

import (
	"errors"
	"strings"
	"testing"

	"wrendb/pkg/btree"
)

func TestBTreeScanOperators(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()

	for _, k := range []int32{10, 20, 30} {
		insertEntry(t, index, intKey(k), ridFor(int64(k)))
	}
	if t.Failed() {
		t.FailNow()
	}

	// Exclusive bounds on both sides keep only the middle key.
	rids := collectScan(t, index, intKey(10), btree.GT, intKey(30), btree.LT)
	if len(rids) != 1 || rids[0] != ridFor(20) {
		t.Errorf("Exclusive scan returned %v, want just the middle entry", rids)
	}

	// Inclusive bounds return everything.
	rids = collectScan(t, index, intKey(10), btree.GTE, intKey(30), btree.LTE)
	if len(rids) != 3 {
		t.Errorf("Inclusive scan returned %d entries, want 3", len(rids))
	}

	// An empty range above the largest key matches nothing.
	err := index.StartScan(intKey(30), btree.GT, intKey(30), btree.LTE)
	if !errors.Is(err, btree.ErrNoMatch) {
		t.Errorf("Scan past the largest key started with err %v, want ErrNoMatch", err)
		if err == nil {
			index.EndScan()
		}
	}
}

func TestBTreeScanValidation(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()
	insertEntry(t, index, intKey(1), ridFor(1))

	// Operators on the wrong side of the range are rejected.
	if err := index.StartScan(intKey(0), btree.LT, intKey(5), btree.LTE); !errors.Is(err, btree.ErrBadOperator) {
		t.Errorf("Low-side LT started with err %v, want ErrBadOperator", err)
	}
	if err := index.StartScan(intKey(0), btree.GTE, intKey(5), btree.GT); !errors.Is(err, btree.ErrBadOperator) {
		t.Errorf("High-side GT started with err %v, want ErrBadOperator", err)
	}

	// A low bound above the high bound is rejected.
	if err := index.StartScan(intKey(5), btree.GTE, intKey(0), btree.LTE); !errors.Is(err, btree.ErrBadRange) {
		t.Errorf("Inverted range started with err %v, want ErrBadRange", err)
	}
}

func TestBTreeScanBoundaries(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()

	for i := int64(0); i < 100; i++ {
		insertEntry(t, index, intKey(int32(i)), ridFor(i))
	}
	if t.Failed() {
		t.FailNow()
	}

	// The smallest key is returned iff the low bound is inclusive.
	rids := collectScan(t, index, intKey(0), btree.GTE, intKey(0), btree.LTE)
	if len(rids) != 1 || rids[0] != ridFor(0) {
		t.Errorf("Inclusive scan at the smallest key returned %v, want its single entry", rids)
	}
	rids = collectScan(t, index, intKey(0), btree.GT, intKey(0), btree.LTE)
	if len(rids) != 0 {
		t.Errorf("Exclusive scan at the smallest key returned %v, want nothing", rids)
	}

	// A strict low bound at the largest key either refuses to start or
	// completes without emitting.
	err := index.StartScan(intKey(99), btree.GT, intKey(1000), btree.LTE)
	if err == nil {
		if _, err := index.ScanNext(); !errors.Is(err, btree.ErrScanComplete) {
			t.Errorf("Scan above the largest key emitted an entry (err %v)", err)
		}
		index.EndScan()
	} else if !errors.Is(err, btree.ErrNoMatch) {
		t.Errorf("Scan above the largest key started with err %v, want ErrNoMatch", err)
	}
}

func TestBTreeScanLifecycle(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()

	// No scan is active yet.
	if _, err := index.ScanNext(); !errors.Is(err, btree.ErrNotStarted) {
		t.Errorf("ScanNext without a scan returned err %v, want ErrNotStarted", err)
	}
	if err := index.EndScan(); !errors.Is(err, btree.ErrNotStarted) {
		t.Errorf("EndScan without a scan returned err %v, want ErrNotStarted", err)
	}

	for _, k := range []int32{1, 2, 3} {
		insertEntry(t, index, intKey(k), ridFor(int64(k)))
	}

	// Exhaust a scan: the call after the last entry completes, and the
	// completed scan can still be ended exactly once.
	if err := index.StartScan(intKey(1), btree.GTE, intKey(3), btree.LTE); err != nil {
		t.Fatal("Failed to start scan:", err)
	}
	seen := 0
	for {
		_, err := index.ScanNext()
		if errors.Is(err, btree.ErrScanComplete) {
			break
		}
		if err != nil {
			t.Fatal("Scan failed partway:", err)
		}
		seen++
	}
	if seen != 3 {
		t.Errorf("Scan emitted %d entries before completing, want 3", seen)
	}
	if _, err := index.ScanNext(); !errors.Is(err, btree.ErrScanComplete) {
		t.Errorf("ScanNext after completion returned err %v, want ErrScanComplete", err)
	}
	if err := index.EndScan(); err != nil {
		t.Errorf("EndScan after completion returned err %v, want success", err)
	}
	if err := index.EndScan(); !errors.Is(err, btree.ErrNotStarted) {
		t.Errorf("Second EndScan returned err %v, want ErrNotStarted", err)
	}
}

func TestBTreeScanEmptyIndex(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()

	checkInvariants(t, index)
	if err := index.StartScan(intKey(0), btree.GTE, intKey(100), btree.LTE); !errors.Is(err, btree.ErrNoMatch) {
		t.Errorf("Scan of an empty index started with err %v, want ErrNoMatch", err)
	}
}

func TestBTreeScanDuplicatesAcrossSplits(t *testing.T) {
	index := setupEmptyIndex(t, btree.Integer)
	defer index.Close()

	// Enough copies of one key to force leaf splits, so equal keys end up
	// on both sides of a separator equal to them.
	total := btree.LeafEntryCapacity(btree.Integer) + 50
	for i := int64(0); i < total; i++ {
		insertEntry(t, index, intKey(7), ridFor(i))
	}
	insertEntry(t, index, intKey(3), ridFor(total))
	insertEntry(t, index, intKey(9), ridFor(total+1))
	if t.Failed() {
		t.FailNow()
	}
	checkInvariants(t, index)

	// A point scan must reach every copy, including those left of the
	// separator.
	rids := collectScan(t, index, intKey(7), btree.GTE, intKey(7), btree.LTE)
	if int64(len(rids)) != total {
		t.Fatalf("Point scan returned %d entries, want %d", len(rids), total)
	}
	seen := make(map[int64]bool, total)
	for _, rid := range rids {
		for i := int64(0); i < total; i++ {
			if rid == ridFor(i) {
				if seen[i] {
					t.Fatalf("Point scan returned rid %v twice", rid)
				}
				seen[i] = true
				break
			}
		}
	}
	if int64(len(seen)) != total {
		t.Fatalf("Point scan covered %d distinct entries, want %d", len(seen), total)
	}
}

func TestBTreeStringKeys(t *testing.T) {
	index := setupEmptyIndex(t, btree.String)
	defer index.Close()

	// One key per letter: "aaaaaaaaaa" through "zzzzzzzzzz".
	for c := byte('a'); c <= 'z'; c++ {
		key := stringKey(strings.Repeat(string(c), 10))
		insertEntry(t, index, key, ridFor(int64(c)))
	}
	if t.Failed() {
		t.FailNow()
	}
	checkInvariants(t, index)

	// With C-string ordering, "p" sorts before "pppppppppp", so a high
	// bound of "p" keeps the m/n/o keys only.
	rids := collectScan(t, index, stringKey("m"), btree.GTE, stringKey("p"), btree.LTE)
	if len(rids) != 3 {
		t.Fatalf("Scan to high bound %q returned %d entries, want 3", "p", len(rids))
	}
	for j, rid := range rids {
		if want := ridFor(int64('m' + byte(j))); rid != want {
			t.Errorf("Scan entry %d has rid %v, want %v", j, rid, want)
		}
	}

	// Raising the high bound to the p key itself includes it.
	rids = collectScan(t, index, stringKey("m"), btree.GTE, stringKey(strings.Repeat("p", 10)), btree.LTE)
	if len(rids) != 4 {
		t.Fatalf("Scan through the p key returned %d entries, want 4", len(rids))
	}
}

func TestBTreeDoubleKeys(t *testing.T) {
	index := setupEmptyIndex(t, btree.Double)
	defer index.Close()

	numInserts := int64(3000)
	for i := int64(0); i < numInserts; i++ {
		insertEntry(t, index, doubleKey(float64(i)/2), ridFor(i))
	}
	if t.Failed() {
		t.FailNow()
	}
	checkInvariants(t, index)

	// [100.0, 200.0] covers i = 200..400 inclusive.
	rids := collectScan(t, index, doubleKey(100), btree.GTE, doubleKey(200), btree.LTE)
	if len(rids) != 201 {
		t.Fatalf("Range scan returned %d entries, want 201", len(rids))
	}
	for j, rid := range rids {
		if want := ridFor(200 + int64(j)); rid != want {
			t.Fatalf("Scan entry %d has rid %v, want %v", j, rid, want)
		}
	}

	// Half-open bounds drop the endpoints.
	rids = collectScan(t, index, doubleKey(100), btree.GT, doubleKey(200), btree.LT)
	if len(rids) != 199 {
		t.Fatalf("Exclusive range scan returned %d entries, want 199", len(rids))
	}
}
