package blob

import (
	"testing"
	"time"
)

func TestTablePutGetDelete(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Get("s1"); ok {
		t.Fatalf("expected empty table to miss")
	}
	b := New([]byte("tag"), 0)
	tbl.Put("s1", b)
	got, ok := tbl.Get("s1")
	if !ok || got != b {
		t.Fatalf("expected to retrieve the inserted blob")
	}
	tbl.Delete("s1")
	if _, ok := tbl.Get("s1"); ok {
		t.Fatalf("expected deleted entry to be gone")
	}
}

func TestTablePruneRemovesExpiredOnly(t *testing.T) {
	tbl := NewTable()
	fresh := New([]byte("fresh"), 0)
	stale := New([]byte("stale"), 0)
	stale.timeToDie = time.Now().Add(-time.Second)
	tbl.Put("fresh", fresh)
	tbl.Put("stale", stale)

	reaped := tbl.Prune(time.Now())
	if len(reaped) != 1 || reaped[0] != "stale" {
		t.Fatalf("expected only 'stale' to be reaped, got %v", reaped)
	}
	if _, ok := tbl.Get("fresh"); !ok {
		t.Fatalf("fresh session should survive pruning")
	}
	if _, ok := tbl.Get("stale"); ok {
		t.Fatalf("stale session should have been removed")
	}
}

func TestTableLen(t *testing.T) {
	tbl := NewTable()
	tbl.Put("a", New([]byte("a"), 0))
	tbl.Put("b", New([]byte("b"), 0))
	if tbl.Len() != 2 {
		t.Fatalf("len = %d, want 2", tbl.Len())
	}
}
