package database_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wrendb/pkg/btree"
	"wrendb/pkg/database"
)

func setupDatabase(t *testing.T) *database.Database {
	t.Helper()
	t.Parallel()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatal("Failed to open database:", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseCreateAndIndex(t *testing.T) {
	db := setupDatabase(t)

	if _, err := db.CreateRelation("emp", 16); err != nil {
		t.Fatal("Failed to create relation:", err)
	}
	if _, err := db.CreateRelation("emp", 16); err == nil {
		t.Error("Duplicate relation creation succeeded, want error")
	}
	if _, err := db.CreateRelation("bad name", 16); err == nil {
		t.Error("Non-alphanumeric relation name accepted, want error")
	}

	// Load rows and build an index through the REPL handlers, then query it.
	if _, err := database.HandleLoad(db, "load emp 500"); err != nil {
		t.Fatal("Failed to load rows:", err)
	}
	out, err := database.HandleCreateIndex(db, "index emp 0 int")
	if err != nil {
		t.Fatal("Failed to build index:", err)
	}
	if !strings.Contains(out, "emp.0") {
		t.Errorf("Index build reported %q, want the derived name emp.0", out)
	}

	index, err := db.GetIndex("emp.0")
	if err != nil {
		t.Fatal("Failed to get index:", err)
	}
	if err := index.CheckInvariants(); err != nil {
		t.Error("Built index violates invariants:", err)
	}

	out, err = database.HandleScan(db, "scan emp.0 100 >= 199 <=")
	if err != nil {
		t.Fatal("Failed to scan:", err)
	}
	if !strings.Contains(out, "100 matching records.") {
		t.Errorf("Scan reported %q, want 100 matching records", out)
	}

	out, err = database.HandleLookup(db, "lookup emp.0 42")
	if err != nil {
		t.Fatal("Failed to lookup:", err)
	}
	if !strings.Contains(out, "1 matching records.") {
		t.Errorf("Lookup reported %q, want a single match", out)
	}
}

func TestDatabaseTraceLog(t *testing.T) {
	db := setupDatabase(t)

	if _, err := db.CreateRelation("emp", 8); err != nil {
		t.Fatal("Failed to create relation:", err)
	}
	if _, _, err := db.CreateIndex("emp", 0, btree.Integer); err != nil {
		t.Fatal("Failed to create index:", err)
	}

	// The newest line describes the index build, the one before it the
	// relation creation.
	lines, err := db.TailLog(10)
	if err != nil {
		t.Fatal("Failed to tail the trace log:", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Trace log holds %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "create index emp.0") {
		t.Errorf("Newest trace line is %q, want the index build", lines[0])
	}
	if !strings.Contains(lines[1], "create relation emp") {
		t.Errorf("Older trace line is %q, want the relation creation", lines[1])
	}
}

func TestDatabaseBackup(t *testing.T) {
	db := setupDatabase(t)

	if _, err := db.CreateRelation("emp", 8); err != nil {
		t.Fatal("Failed to create relation:", err)
	}
	if _, err := database.HandleLoad(db, "load emp 50"); err != nil {
		t.Fatal("Failed to load rows:", err)
	}
	if _, _, err := db.CreateIndex("emp", 0, btree.Integer); err != nil {
		t.Fatal("Failed to create index:", err)
	}

	dest := filepath.Join(t.TempDir(), "snapshot")
	if err := db.Backup(dest); err != nil {
		t.Fatal("Failed to back up:", err)
	}
	for _, name := range []string{"emp", "emp.0"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("Backup is missing %s: %s", name, err)
		}
	}
}
