package index

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-index-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRow(number, family, category string, version int, title string) RecordRow {
	return RecordRow{
		Number:   number,
		Family:   family,
		Category: category,
		Version:  version,
		Title:    title,
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := openTestDB(t)

	row := testRow("T0000001-v2", "T0000001", "T", 2, "Noise Budget")
	row.Authors = []string{"Ada Lovelace"}
	row.Keywords = []string{"noise"}
	row.Checksum = "abc"
	if err := db.UpsertRecord(row, "Noise Budget body", nil); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	got, err := db.GetRecord("T0000001-v2")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Title != "Noise Budget" || got.Family != "T0000001" || got.Version != 2 {
		t.Errorf("row = %+v", got)
	}
	if len(got.Authors) != 1 || got.Authors[0] != "Ada Lovelace" {
		t.Errorf("authors = %v", got.Authors)
	}

	// Upsert with the same number replaces.
	row.Title = "Noise Budget v2"
	if err := db.UpsertRecord(row, "updated", nil); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetRecord("T0000001-v2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Noise Budget v2" {
		t.Errorf("title after upsert = %q", got.Title)
	}
}

func TestGetRecordMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRecord("T0999999-v1"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestListRecords(t *testing.T) {
	db := openTestDB(t)
	rows := []RecordRow{
		testRow("T0000001-v1", "T0000001", "T", 1, "Alpha"),
		testRow("T0000001-v2", "T0000001", "T", 2, "Alpha v2"),
		testRow("G0000002-v1", "G0000002", "G", 1, "Beta"),
	}
	for _, r := range rows {
		if err := db.UpsertRecord(r, r.Title, nil); err != nil {
			t.Fatal(err)
		}
	}

	all, total, err := db.ListRecords(10, 0, "", "")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("total = %d, rows = %d", total, len(all))
	}
	// Default order is family then version.
	if all[0].Number != "G0000002-v1" || all[2].Number != "T0000001-v2" {
		t.Errorf("order = %v, %v, %v", all[0].Number, all[1].Number, all[2].Number)
	}

	tOnly, total, err := db.ListRecords(10, 0, "T", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(tOnly) != 2 {
		t.Errorf("category filter: total = %d, rows = %d", total, len(tOnly))
	}

	page, total, err := db.ListRecords(1, 1, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 {
		t.Errorf("pagination: total = %d, rows = %d", total, len(page))
	}
}

func TestDeleteRecordDropsLinksWithLastRevision(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertRecord(testRow("T0000001-v1", "T0000001", "T", 1, "Alpha"), "", []string{"G0000002"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRecord(testRow("T0000001-v2", "T0000001", "T", 2, "Alpha"), "", []string{"G0000002"}); err != nil {
		t.Fatal(err)
	}

	// One revision remains, so the family's edges survive.
	if err := db.DeleteRecord("T0000001-v2"); err != nil {
		t.Fatal(err)
	}
	refs, err := db.Referencing("G0000002")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != "T0000001" {
		t.Errorf("referencing after partial delete = %v", refs)
	}

	// Deleting the last revision drops the edges too.
	if err := db.DeleteRecord("T0000001-v1"); err != nil {
		t.Fatal(err)
	}
	refs, err = db.Referencing("G0000002")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("referencing after full delete = %v", refs)
	}

	// Deleting an unknown number is not an error.
	if err := db.DeleteRecord("T0999999-v9"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestGraph(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertRecord(testRow("T0000001-v1", "T0000001", "T", 1, "Old Title"), "", nil); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRecord(testRow("T0000001-v2", "T0000001", "T", 2, "New Title"), "", []string{"G0000002"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRecord(testRow("G0000002-v1", "G0000002", "G", 1, "Beta"), "", nil); err != nil {
		t.Fatal(err)
	}

	nodes, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("nodes = %v", nodes)
	}
	// The node title comes from the highest catalogued version.
	for _, n := range nodes {
		if n.Family == "T0000001" && n.Title != "New Title" {
			t.Errorf("family node title = %q", n.Title)
		}
	}
	if len(links) != 1 || links[0].Source != "T0000001" || links[0].Target != "G0000002" {
		t.Errorf("links = %v", links)
	}
}

func TestSearch(t *testing.T) {
	db := openTestDB(t)
	row := testRow("T0000001-v1", "T0000001", "T", 1, "Suspension thermal noise")
	if err := db.UpsertRecord(row, "Suspension thermal noise estimates", nil); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRecord(testRow("G0000002-v1", "G0000002", "G", 1, "Unrelated"), "nothing here", nil); err != nil {
		t.Fatal(err)
	}

	hits, err := db.Search("thermal", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Number != "T0000001-v1" {
		t.Errorf("hits = %v", hits)
	}
}

func writeRecord(t *testing.T, store *archive.Store, number, title string, related ...string) {
	t.Helper()
	n, err := docnum.Parse(number)
	if err != nil {
		t.Fatal(err)
	}
	record := &models.Record{Number: n, Title: title}
	for _, ref := range related {
		rn, err := docnum.Parse(ref)
		if err != nil {
			t.Fatal(err)
		}
		record.Related = append(record.Related, rn)
	}
	if err := store.Write(record); err != nil {
		t.Fatal(err)
	}
}

func TestSync(t *testing.T) {
	db := openTestDB(t)
	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	writeRecord(t, store, "T0000001-v1", "Alpha", "G0000002")
	writeRecord(t, store, "T0000001-v2", "Alpha v2", "G0000002")
	writeRecord(t, store, "G0000002-v1", "Beta")

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_, total, err := db.ListRecords(10, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("catalogued = %d", total)
	}
	refs, err := db.Referencing("G0000002")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != "T0000001" {
		t.Errorf("referencing = %v", refs)
	}

	// A second sync with an entry removed from disk drops it from the
	// catalog.
	dir, err := store.RevisionDir(mustNumber(t, "T0000001-v2"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := db.GetRecord("T0000001-v2"); err == nil {
		t.Error("stale revision still catalogued")
	}
	if _, err := db.GetRecord("T0000001-v1"); err != nil {
		t.Errorf("surviving revision dropped: %v", err)
	}
}

func mustNumber(t *testing.T, text string) docnum.Number {
	t.Helper()
	n, err := docnum.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return n
}
