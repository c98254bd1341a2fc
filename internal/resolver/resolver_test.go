package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/testutil"
)

func TestResolveVersionedPrefersArchive(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	gw.AddRecord(&models.Record{Number: testutil.MustParse(t, "T0123456-v2"), Title: "remote"})
	r := New(store, gw, nil)

	number := testutil.MustParse(t, "T0123456-v2")

	// First resolution goes to the host and archives the result.
	record, err := r.Resolve(context.Background(), number, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if record.Title != "remote" {
		t.Errorf("title = %q", record.Title)
	}
	if !store.Exists(number) {
		t.Error("record not archived after fetch")
	}

	// Second resolution is served locally.
	if _, err := r.Resolve(context.Background(), number, Options{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := gw.Fetches["T0123456-v2"]; got != 1 {
		t.Errorf("host fetches = %d, want 1", got)
	}
}

func TestResolveForceRefetches(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	number := testutil.MustParse(t, "T0123456-v2")
	gw.AddRecord(&models.Record{Number: number, Title: "remote"})
	r := New(store, gw, nil)

	if err := store.Write(&models.Record{Number: number, Title: "stale"}); err != nil {
		t.Fatal(err)
	}

	record, err := r.Resolve(context.Background(), number, Options{Force: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if record.Title != "remote" {
		t.Errorf("title = %q, want remote copy", record.Title)
	}
	if got := gw.Fetches["T0123456-v2"]; got != 1 {
		t.Errorf("host fetches = %d, want 1", got)
	}
}

func TestResolveUnversionedAsksHost(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	gw.AddRecord(&models.Record{Number: testutil.MustParse(t, "T0123456-v1"), Title: "one"})
	gw.AddRecord(&models.Record{Number: testutil.MustParse(t, "T0123456-v3"), Title: "three"})
	r := New(store, gw, nil)

	// Archive holds an older revision; without PreferLocal the host decides
	// what latest means.
	if err := store.Write(&models.Record{Number: testutil.MustParse(t, "T0123456-v1"), Title: "one"}); err != nil {
		t.Fatal(err)
	}

	record, err := r.Resolve(context.Background(), testutil.MustParse(t, "T0123456"), Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if record.Number.String() != "T0123456-v3" {
		t.Errorf("resolved %s, want host latest", record.Number)
	}
	if !store.Exists(testutil.MustParse(t, "T0123456-v3")) {
		t.Error("latest revision not archived")
	}
}

func TestResolveUnversionedPreferLocal(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	gw.AddRecord(&models.Record{Number: testutil.MustParse(t, "T0123456-v3"), Title: "three"})
	r := New(store, gw, nil)

	if err := store.Write(&models.Record{Number: testutil.MustParse(t, "T0123456-v1"), Title: "one"}); err != nil {
		t.Fatal(err)
	}

	record, err := r.Resolve(context.Background(), testutil.MustParse(t, "T0123456"), Options{PreferLocal: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if record.Number.String() != "T0123456-v1" {
		t.Errorf("resolved %s, want local latest", record.Number)
	}
	if got := gw.Fetches["T0123456"]; got != 0 {
		t.Errorf("host fetches = %d, want 0", got)
	}
}

func TestResolveUnversionedPreferLocalEmptyArchive(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	gw.AddRecord(&models.Record{Number: testutil.MustParse(t, "T0123456-v2"), Title: "two"})
	r := New(store, gw, nil)

	// Nothing archived, so PreferLocal falls through to the host.
	record, err := r.Resolve(context.Background(), testutil.MustParse(t, "T0123456"), Options{PreferLocal: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if record.Number.String() != "T0123456-v2" {
		t.Errorf("resolved %s", record.Number)
	}
}

func TestResolveRemoteFailure(t *testing.T) {
	_, store := testutil.TestArchive(t)
	gw := testutil.NewFakeGateway()
	r := New(store, gw, nil)

	_, err := r.Resolve(context.Background(), testutil.MustParse(t, "T0999999"), Options{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}
