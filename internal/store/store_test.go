package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesSchema(t *testing.T) {
	s := openTestStore(t)

	version, err := s.getSchemaVersion()
	if err != nil {
		t.Fatalf("getSchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.SetSetting("noise_threshold", "0.3"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	s1.Close()

	// Reopening an existing database must not rerun migrations or lose data
	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	val, err := s2.GetSetting("noise_threshold")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "0.3" {
		t.Errorf("setting = %q, want 0.3", val)
	}
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)

	// Unset key reads as empty, not an error
	val, err := s.GetSetting("missing")
	if err != nil {
		t.Fatalf("GetSetting(missing) failed: %v", err)
	}
	if val != "" {
		t.Errorf("unset setting = %q, want empty", val)
	}

	if err := s.SetSetting("blur_threshold_blurry", "100"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("similarity_threshold", "0.3"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	// Upsert replaces
	if err := s.SetSetting("blur_threshold_blurry", "120"); err != nil {
		t.Fatalf("SetSetting(update) failed: %v", err)
	}
	val, err = s.GetSetting("blur_threshold_blurry")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "120" {
		t.Errorf("updated setting = %q, want 120", val)
	}

	all, err := s.AllSettings()
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("settings count = %d, want 2", len(all))
	}
	if all["similarity_threshold"] != "0.3" {
		t.Errorf("similarity_threshold = %q, want 0.3", all["similarity_threshold"])
	}
}

func TestSaveLoadSessions(t *testing.T) {
	s := openTestStore(t)

	doc1 := []byte(`{"id":"sess-1","created_at":"2024-06-01T12:00:00Z","total_photos":10}`)
	doc2 := []byte(`{"id":"sess-2","created_at":"2024-06-02T12:00:00Z","total_photos":20}`)

	if err := s.SaveSession("fp-1", doc1); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := s.SaveSession("fp-2", doc2); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	docs, err := s.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("loaded %d sessions, want 2", len(docs))
	}
	if string(docs["fp-1"]) != string(doc1) {
		t.Errorf("fp-1 document = %s, want %s", docs["fp-1"], doc1)
	}
}

func TestSaveSessionUpsert(t *testing.T) {
	s := openTestStore(t)

	old := []byte(`{"id":"sess-1","created_at":"2024-06-01T12:00:00Z"}`)
	newer := []byte(`{"id":"sess-2","created_at":"2024-06-03T12:00:00Z"}`)

	if err := s.SaveSession("fp-1", old); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := s.SaveSession("fp-1", newer); err != nil {
		t.Fatalf("SaveSession(upsert) failed: %v", err)
	}

	docs, err := s.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("loaded %d sessions, want 1", len(docs))
	}
	if string(docs["fp-1"]) != string(newer) {
		t.Errorf("document = %s, want the newer one", docs["fp-1"])
	}
}

func TestSaveSessionRejectsInvalidDocument(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveSession("fp-1", []byte("{broken")); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestDeleteSession(t *testing.T) {
	s := openTestStore(t)

	doc := []byte(`{"id":"sess-1","created_at":"2024-06-01T12:00:00Z"}`)
	if err := s.SaveSession("fp-1", doc); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	if err := s.DeleteSession("fp-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	docs, err := s.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("loaded %d sessions after delete, want 0", len(docs))
	}

	// Deleting a missing fingerprint is a no-op
	if err := s.DeleteSession("fp-1"); err != nil {
		t.Errorf("repeat DeleteSession failed: %v", err)
	}
}
