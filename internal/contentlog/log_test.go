package contentlog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/YuvaAi/promoforge/internal/platform"
)

func newTestLog(t *testing.T) *BoltLog {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l, err := NewBoltLog(db)
	if err != nil {
		t.Fatalf("NewBoltLog() error = %v", err)
	}
	return l
}

func TestAppendDefaults(t *testing.T) {
	l := newTestLog(t)

	err := l.Append("u1", Entry{Content: "hello", Platform: platform.Facebook, Status: "published"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := l.List("u1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID == "" {
		t.Error("ID not generated")
	}
	if e.UserID != "u1" {
		t.Errorf("UserID = %q", e.UserID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestListNewestFirst(t *testing.T) {
	l := newTestLog(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := l.Append("u1", Entry{
			Content:   fmt.Sprintf("post %d", i),
			Status:    "published",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := l.List("u1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	if entries[0].Content != "post 4" || entries[4].Content != "post 0" {
		t.Errorf("order = [%s ... %s], want newest first", entries[0].Content, entries[4].Content)
	}
}

func TestListLimit(t *testing.T) {
	l := newTestLog(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := l.Append("u1", Entry{
			Content:   fmt.Sprintf("post %d", i),
			Status:    "published",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := l.List("u1", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Content != "post 4" {
		t.Errorf("entries[0] = %q, want most recent", entries[0].Content)
	}
}

func TestListScopedToUser(t *testing.T) {
	l := newTestLog(t)

	if err := l.Append("u1", Entry{Content: "mine", Status: "published"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append("u2", Entry{Content: "theirs", Status: "published"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := l.List("u1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "mine" {
		t.Errorf("entries = %+v, want only u1's entry", entries)
	}
}

func TestListEmptyUser(t *testing.T) {
	l := newTestLog(t)

	entries, err := l.List("nobody", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}
