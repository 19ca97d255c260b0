// wrendb_stress builds several independent indexes at once and verifies
// them. Each index stays single-threaded; the parallelism is across index
// files, one goroutine per index.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"wrendb/pkg/btree"
	"wrendb/pkg/heap"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"
)

// streamKey derives a deterministic pseudo-random int32 attribute for row
// j of stream i, so runs are reproducible for a given seed.
func streamKey(seed uint64, stream int, j int64) int32 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(stream))
	binary.LittleEndian.PutUint64(buf[16:], uint64(j))
	return int32(murmur3.Sum64(buf[:]))
}

func intKey(v int32) []byte {
	key := make([]byte, 4)
	binary.NativeEndian.PutUint32(key, uint32(v))
	return key
}

// buildAndVerify creates a relation of rows pseudo-random tuples, builds an
// integer index over it, and checks the tree's invariants and entry count.
func buildAndVerify(dir string, stream int, rows int64, seed uint64) error {
	relName := fmt.Sprintf("stress%d", stream)
	rel, err := heap.Create(filepath.Join(dir, relName), 16)
	if err != nil {
		return err
	}
	defer rel.Close()
	for j := int64(0); j < rows; j++ {
		rec := make([]byte, 16)
		binary.NativeEndian.PutUint32(rec, uint32(streamKey(seed, stream, j)))
		if _, err := rel.InsertRecord(rec); err != nil {
			return err
		}
	}

	index, indexName, err := btree.OpenIndex(rel, 0, btree.Integer, dir)
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.CheckInvariants(); err != nil {
		return fmt.Errorf("%s: %w", indexName, err)
	}

	// A full-range scan must see every inserted tuple.
	err = index.StartScan(intKey(math.MinInt32), btree.GTE, intKey(math.MaxInt32), btree.LTE)
	if err != nil {
		return fmt.Errorf("%s: %w", indexName, err)
	}
	var count int64
	for {
		if _, err := index.ScanNext(); err != nil {
			if errors.Is(err, btree.ErrScanComplete) {
				break
			}
			return fmt.Errorf("%s: %w", indexName, err)
		}
		count++
	}
	if err := index.EndScan(); err != nil {
		return fmt.Errorf("%s: %w", indexName, err)
	}
	if count != rows {
		return fmt.Errorf("%s: scan saw %d entries, want %d", indexName, count, rows)
	}
	return nil
}

func main() {
	var indexesFlag = flag.Int("indexes", 4, "number of indexes to build concurrently")
	var rowsFlag = flag.Int64("rows", 10000, "rows per relation")
	var dirFlag = flag.String("dir", "", "data folder (defaults to a temp dir)")
	var seedFlag = flag.Uint64("seed", 42, "key stream seed")
	flag.Parse()

	dir := *dirFlag
	if dir == "" {
		tmp, err := os.MkdirTemp("", "wrendb-stress-*")
		if err != nil {
			log.Fatal(err)
		}
		dir = tmp
	}

	var g errgroup.Group
	for i := 0; i < *indexesFlag; i++ {
		i := i
		g.Go(func() error {
			return buildAndVerify(dir, i, *rowsFlag, *seedFlag)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("built and verified %d indexes of %d rows each in %s\n", *indexesFlag, *rowsFlag, dir)
}
