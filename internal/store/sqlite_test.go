package store

import (
	"testing"

	"github.com/Dmedina-coder/SuperGramola/internal/shared"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewSQLiteStore(db)
}

func TestSQLiteStore(t *testing.T) {
	t.Run("Get Set Delete", func(t *testing.T) {
		s := newTestSQLiteStore(t)

		if _, ok, err := s.Get("missing"); err != nil || ok {
			t.Errorf("expected missing key absent, got ok=%v err=%v", ok, err)
		}

		if err := s.Set("k", "v"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		v, ok, err := s.Get("k")
		if err != nil || !ok || v != "v" {
			t.Errorf("expected v, got %q (ok=%v, err=%v)", v, ok, err)
		}

		// Upsert replaces the value.
		if err := s.Set("k", "v2"); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if v, _, _ := s.Get("k"); v != "v2" {
			t.Errorf("expected v2 after upsert, got %q", v)
		}

		if err := s.Delete("k"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, ok, _ := s.Get("k"); ok {
			t.Error("expected key gone after delete")
		}
		if err := s.Delete("k"); err != nil {
			t.Errorf("deleting absent key failed: %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newTestSQLiteStore(t)
		s.Set("a", "1")
		s.Set("b", "2")

		if err := s.Clear(); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if _, ok, _ := s.Get("a"); ok {
			t.Error("expected store empty after clear")
		}
	})

	t.Run("Backs A SessionStore", func(t *testing.T) {
		ss := NewSessionStore(newTestSQLiteStore(t))

		ss.SetEmail("bar@example.com")
		ss.SetSelectedPlaylist("p1", "Friday")

		if email, ok := ss.Email(); !ok || email != "bar@example.com" {
			t.Errorf("expected stored email, got %q (ok=%v)", email, ok)
		}
		if pid, pname, _, _ := ss.Selection(); pid != "p1" || pname != "Friday" {
			t.Errorf("selection did not round-trip: %q %q", pid, pname)
		}
	})
}
