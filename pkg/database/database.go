// Package database ties the storage layers together: a data directory
// holding heap-organized relations and the B+ tree indexes built over them,
// plus the REPL commands that drive both.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"wrendb/pkg/btree"
	"wrendb/pkg/config"
	"wrendb/pkg/heap"

	"github.com/icza/backscanner"
	"github.com/otiai10/copy"
)

// Database owns a data folder of relations and indexes.
type Database struct {
	basepath  string
	relations map[string]*heap.HeapFile
	indexes   map[string]*btree.BTreeIndex
	logFile   *os.File // DDL trace log
}

var alphanumeric = regexp.MustCompile(`\W`)

// Open opens a database given a data folder, creating the folder and its
// trace log as needed.
func Open(folder string) (*Database, error) {
	// Ensure folder is of the form */
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	// Make the data directory.
	err := os.MkdirAll(folder, 0775)
	if err != nil {
		return nil, err
	}
	logFile, err := os.OpenFile(filepath.Join(folder, config.LogFileName),
		os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &Database{
		basepath:  folder,
		relations: make(map[string]*heap.HeapFile),
		indexes:   make(map[string]*btree.BTreeIndex),
		logFile:   logFile,
	}, nil
}

// Close closes every relation and index, then the trace log.
func (db *Database) Close() (err error) {
	for _, index := range db.indexes {
		curErr := index.Close()
		if err == nil {
			err = curErr
		}
	}
	for _, rel := range db.relations {
		curErr := rel.Close()
		if err == nil {
			err = curErr
		}
	}
	curErr := db.logFile.Close()
	if err == nil {
		err = curErr
	}
	return err
}

// GetBasePath returns the basepath of the database.
func (db *Database) GetBasePath() string {
	return db.basepath
}

// traceDDL appends one line describing a DDL operation to the trace log.
func (db *Database) traceDDL(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(db.logFile, "%s %s\n", time.Now().Format(time.RFC3339), line)
	db.logFile.Sync()
}

// CreateRelation creates a new heap relation with the given fixed record size.
func (db *Database) CreateRelation(name string, recordSize int64) (*heap.HeapFile, error) {
	// Ensure the relation name is alphanumeric.
	if alphanumeric.MatchString(name) {
		return nil, errors.New("relation name must be alphanumeric")
	}
	if _, exists := db.relations[name]; exists {
		return nil, errors.New("relation already exists")
	}
	path := filepath.Join(db.basepath, name)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.New("relation already exists")
	}
	rel, err := heap.Create(path, recordSize)
	if err != nil {
		return nil, err
	}
	db.relations[name] = rel
	db.traceDDL("create relation %s recordsize %d", name, recordSize)
	return rel, nil
}

// GetRelation returns a relation by name, opening it from disk if needed.
func (db *Database) GetRelation(name string) (*heap.HeapFile, error) {
	if rel, ok := db.relations[name]; ok {
		return rel, nil
	}
	path := filepath.Join(db.basepath, name)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New("relation not found")
	}
	rel, err := heap.Open(path)
	if err != nil {
		return nil, err
	}
	db.relations[name] = rel
	return rel, nil
}

// CreateIndex builds a B+ tree index over one attribute of a relation,
// bulk-loading it from the relation's current contents. Returns the index
// and its derived name, "<relation>.<offset>".
func (db *Database) CreateIndex(relName string, attrByteOffset int64, keyType btree.KeyType) (*btree.BTreeIndex, string, error) {
	rel, err := db.GetRelation(relName)
	if err != nil {
		return nil, "", err
	}
	// A stale handle for the same index must be closed before the build
	// truncates its file, or its dirty pages would land in the new file.
	staleName := fmt.Sprintf("%s.%d", rel.Name(), attrByteOffset)
	if old, ok := db.indexes[staleName]; ok {
		old.Close()
		delete(db.indexes, staleName)
	}
	index, indexName, err := btree.OpenIndex(rel, attrByteOffset, keyType, db.basepath)
	if err != nil {
		return nil, "", err
	}
	db.indexes[indexName] = index
	db.traceDDL("create index %s on %s offset %d type %s", indexName, relName, attrByteOffset, keyType)
	return index, indexName, nil
}

// GetIndex returns an index by its "<relation>.<offset>" name, loading it
// from disk if needed.
func (db *Database) GetIndex(name string) (*btree.BTreeIndex, error) {
	if index, ok := db.indexes[name]; ok {
		return index, nil
	}
	path := filepath.Join(db.basepath, name)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New("index not found")
	}
	index, err := btree.LoadIndex(path)
	if err != nil {
		return nil, err
	}
	db.indexes[name] = index
	return index, nil
}

// Backup snapshots the whole data directory into dest. Open files are
// flushed first so the copy sees current bytes.
func (db *Database) Backup(dest string) error {
	for _, index := range db.indexes {
		index.GetPager().FlushAllPages()
	}
	for _, rel := range db.relations {
		rel.GetPager().FlushAllPages()
	}
	return copy.Copy(strings.TrimSuffix(db.basepath, "/"), dest)
}

// TailLog returns up to n most recent trace-log lines, newest first.
func (db *Database) TailLog(n int) ([]string, error) {
	fstats, err := db.logFile.Stat()
	if err != nil {
		return nil, err
	}
	scanner := backscanner.New(db.logFile, int(fstats.Size()))
	lines := make([]string, 0, n)
	for len(lines) < n {
		line, _, err := scanner.Line()
		if err != nil {
			// Reached the start of the log.
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
