package cachestore

import (
	"testing"
)

type rec struct {
	ID  string
	Val int
}

func TestReadEmptyNeverNil(t *testing.T) {
	s := New[rec]()
	got := s.Read("missing")
	if got == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %d records", len(got))
	}
}

func TestWriteThenRead(t *testing.T) {
	s := New[rec]()
	s.Write("k", []rec{{ID: "a"}, {ID: "b"}})

	got := s.Read("k")
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	e, ok := s.ReadEntry("k")
	if !ok {
		t.Fatalf("expected entry")
	}
	if e.FetchedAt.IsZero() {
		t.Fatalf("expected FetchedAt to be stamped")
	}
}

func TestWriteNilStoresEmpty(t *testing.T) {
	s := New[rec]()
	s.Write("k", nil)
	got := s.Read("k")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

// Old data must stay readable until the replacement write lands.
func TestStaleDataSurvivesUntilNextWrite(t *testing.T) {
	s := New[rec]()
	s.Write("k", []rec{{ID: "a"}})

	// a refresh has started; nothing is written yet
	if got := s.Read("k"); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected previous snapshot, got %v", got)
	}

	s.Write("k", []rec{{ID: "b"}, {ID: "c"}})
	if got := s.Read("k"); len(got) != 2 {
		t.Fatalf("expected replaced snapshot, got %v", got)
	}
}

func TestAppendDedupesByID(t *testing.T) {
	s := New[rec]()
	s.Write("k", []rec{{ID: "a", Val: 1}})

	added := s.Append("k", []rec{{ID: "a", Val: 9}, {ID: "b", Val: 2}}, func(r rec) string { return r.ID })
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	got := s.Read("k")
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Val != 1 {
		t.Fatalf("append must not overwrite existing record")
	}
}

func TestAppendIgnoresUnknownKey(t *testing.T) {
	s := New[rec]()
	added := s.Append("nope", []rec{{ID: "a"}}, func(r rec) string { return r.ID })
	if added != 0 {
		t.Fatalf("expected 0 added for unknown key, got %d", added)
	}
	if s.Len() != 0 {
		t.Fatalf("append must not create entries")
	}
}

func TestEvictLRUOnMaxKeys(t *testing.T) {
	s := New[rec](WithMaxKeys(2))
	s.Write("old", []rec{{ID: "1"}})
	s.Write("mid", []rec{{ID: "2"}})

	// touch "old" so "mid" becomes least recently used
	s.Read("old")

	s.Write("new", []rec{{ID: "3"}})
	if s.Len() != 2 {
		t.Fatalf("expected 2 keys after eviction, got %d", s.Len())
	}
	if _, ok := s.ReadEntry("mid"); ok {
		t.Fatalf("expected mid to be evicted")
	}
	if _, ok := s.ReadEntry("old"); !ok {
		t.Fatalf("expected old to survive")
	}
}

func TestRewriteExistingKeyDoesNotEvict(t *testing.T) {
	s := New[rec](WithMaxKeys(2))
	s.Write("a", []rec{{ID: "1"}})
	s.Write("b", []rec{{ID: "2"}})
	s.Write("a", []rec{{ID: "3"}})
	if s.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", s.Len())
	}
	if _, ok := s.ReadEntry("b"); !ok {
		t.Fatalf("rewriting an existing key must not evict others")
	}
}
