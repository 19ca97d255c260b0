package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"wrendb/pkg/btree"
	"wrendb/pkg/repl"
)

// DatabaseRepl creates a REPL exposing the catalog's operations.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateRelation(db, payload)
	}, "Create a relation. usage: create <relation> <recordsize>")

	r.AddCommand("load", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleLoad(db, payload)
	}, "Append n integer-keyed rows to a relation. usage: load <relation> <n>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleInsert(db, payload)
	}, "Insert one row with the given integer attribute. usage: insert <relation> <int>")

	r.AddCommand("index", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateIndex(db, payload)
	}, "Build an index over an attribute. usage: index <relation> <offset> <int|double|string>")

	r.AddCommand("lookup", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleLookup(db, payload)
	}, "Find the records holding a key. usage: lookup <relation.offset> <key>")

	r.AddCommand("scan", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleScan(db, payload)
	}, "Range-scan an index. usage: scan <relation.offset> <low> <lowop> <high> <highop>")

	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePretty(db, payload)
	}, "Print out the internal tree representation. usage: pretty <relation.offset>")

	r.AddCommand("last", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleLast(db, payload)
	}, "Show the n most recent DDL trace-log lines. usage: last <n>")

	r.AddCommand("backup", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleBackup(db, payload)
	}, "Snapshot the data directory. usage: backup <dir>")

	return r
}

// intRecord builds a record of the relation's width with an int32 attribute
// at offset 0, which is what load/insert synthesize.
func intRecord(recordSize int64, attr int32) []byte {
	rec := make([]byte, recordSize)
	binary.NativeEndian.PutUint32(rec, uint32(attr))
	return rec
}

// Handle create relation.
func HandleCreateRelation(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: create <relation> <recordsize>
	if len(fields) != 3 {
		return "", fmt.Errorf("usage: create <relation> <recordsize>")
	}
	recordSize, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", fmt.Errorf("create error: %v", err)
	}
	if _, err = d.CreateRelation(fields[1], recordSize); err != nil {
		return "", err
	}
	return fmt.Sprintf("relation %s created.\n", fields[1]), nil
}

// Handle load.
func HandleLoad(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: load <relation> <n>
	if len(fields) != 3 {
		return "", fmt.Errorf("usage: load <relation> <n>")
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil || n < 0 {
		return "", fmt.Errorf("load error: bad row count %q", fields[2])
	}
	rel, err := d.GetRelation(fields[1])
	if err != nil {
		return "", fmt.Errorf("load error: %v", err)
	}
	if rel.RecordSize() < 4 {
		return "", fmt.Errorf("load error: records of %s are too small for an int attribute", fields[1])
	}
	start := rel.NumRecords()
	for i := 0; i < n; i++ {
		if _, err := rel.InsertRecord(intRecord(rel.RecordSize(), int32(start)+int32(i))); err != nil {
			return "", fmt.Errorf("load error: %v", err)
		}
	}
	return fmt.Sprintf("loaded %d rows into %s.\n", n, fields[1]), nil
}

// Handle insert.
func HandleInsert(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: insert <relation> <int>
	if len(fields) != 3 {
		return "", fmt.Errorf("usage: insert <relation> <int>")
	}
	attr, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return "", fmt.Errorf("insert error: %v", err)
	}
	rel, err := d.GetRelation(fields[1])
	if err != nil {
		return "", fmt.Errorf("insert error: %v", err)
	}
	if rel.RecordSize() < 4 {
		return "", fmt.Errorf("insert error: records of %s are too small for an int attribute", fields[1])
	}
	rid, err := rel.InsertRecord(intRecord(rel.RecordSize(), int32(attr)))
	if err != nil {
		return "", fmt.Errorf("insert error: %v", err)
	}
	return fmt.Sprintf("inserted record %v.\n", rid), nil
}

// Handle create index.
func HandleCreateIndex(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: index <relation> <offset> <type>
	if len(fields) != 4 {
		return "", fmt.Errorf("usage: index <relation> <offset> <int|double|string>")
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", fmt.Errorf("index error: %v", err)
	}
	keyType, err := btree.ParseKeyType(fields[3])
	if err != nil {
		return "", fmt.Errorf("index error: %v", err)
	}
	_, indexName, err := d.CreateIndex(fields[1], offset, keyType)
	if err != nil {
		return "", fmt.Errorf("index error: %v", err)
	}
	return fmt.Sprintf("index %s built.\n", indexName), nil
}

// scanRange runs a whole scan and formats the matching record ids.
func scanRange(index *btree.BTreeIndex, low []byte, lowOp btree.Operator, high []byte, highOp btree.Operator) (string, error) {
	err := index.StartScan(low, lowOp, high, highOp)
	if errors.Is(err, btree.ErrNoMatch) {
		return "no matching records.\n", nil
	}
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	count := 0
	for {
		rid, err := index.ScanNext()
		if errors.Is(err, btree.ErrScanComplete) {
			break
		}
		if err != nil {
			index.EndScan()
			return "", err
		}
		fmt.Fprintf(&sb, "%v\n", rid)
		count++
	}
	if err := index.EndScan(); err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "%d matching records.\n", count)
	return sb.String(), nil
}

// Handle lookup.
func HandleLookup(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: lookup <relation.offset> <key>
	if len(fields) != 3 {
		return "", fmt.Errorf("usage: lookup <relation.offset> <key>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", fmt.Errorf("lookup error: %v", err)
	}
	key, err := index.KeyType().EncodeKey(fields[2])
	if err != nil {
		return "", fmt.Errorf("lookup error: %v", err)
	}
	return scanRange(index, key, btree.GTE, key, btree.LTE)
}

// Handle scan.
func HandleScan(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: scan <relation.offset> <low> <lowop> <high> <highop>
	if len(fields) != 6 {
		return "", fmt.Errorf("usage: scan <relation.offset> <low> <lowop> <high> <highop>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", fmt.Errorf("scan error: %v", err)
	}
	low, err := index.KeyType().EncodeKey(fields[2])
	if err != nil {
		return "", fmt.Errorf("scan error: %v", err)
	}
	lowOp, err := btree.ParseOperator(fields[3])
	if err != nil {
		return "", fmt.Errorf("scan error: %v", err)
	}
	high, err := index.KeyType().EncodeKey(fields[4])
	if err != nil {
		return "", fmt.Errorf("scan error: %v", err)
	}
	highOp, err := btree.ParseOperator(fields[5])
	if err != nil {
		return "", fmt.Errorf("scan error: %v", err)
	}
	return scanRange(index, low, lowOp, high, highOp)
}

// Handle pretty.
func HandlePretty(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: pretty <relation.offset>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: pretty <relation.offset>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", fmt.Errorf("pretty error: %v", err)
	}
	var sb strings.Builder
	index.Print(&sb)
	return sb.String(), nil
}

// Handle last.
func HandleLast(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: last <n>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: last <n>")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return "", fmt.Errorf("last error: bad line count %q", fields[1])
	}
	lines, err := d.TailLog(n)
	if err != nil {
		return "", fmt.Errorf("last error: %v", err)
	}
	return strings.Join(lines, "\n"), nil
}

// Handle backup.
func HandleBackup(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: backup <dir>
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: backup <dir>")
	}
	if err := d.Backup(fields[1]); err != nil {
		return "", fmt.Errorf("backup error: %v", err)
	}
	return fmt.Sprintf("backed up to %s.\n", fields[1]), nil
}
