package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSaveReadDelete(t *testing.T) {
	store := New(t.TempDir(), zap.NewNop())

	path, err := store.Save("document.jpg", []byte("payload"), "user-1", "verification-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !store.Exists(path) {
		t.Fatal("expected saved file to exist")
	}

	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Exists(path) {
		t.Fatal("expected file to be gone")
	}
}

func TestDeletePrunesEmptyParents(t *testing.T) {
	base := t.TempDir()
	store := New(base, zap.NewNop())

	path, err := store.Save("document.jpg", []byte("payload"), "user-1", "verification-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "user-1")); !os.IsNotExist(err) {
		t.Fatalf("expected empty parent directories to be pruned, got %v", err)
	}
	if _, err := os.Stat(base); err != nil {
		t.Fatalf("base directory must survive pruning: %v", err)
	}
}

func TestDeleteKeepsNonEmptyParents(t *testing.T) {
	base := t.TempDir()
	store := New(base, zap.NewNop())

	first, err := store.Save("a.jpg", []byte("a"), "user-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save("b.jpg", []byte("b"), "user-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "user-1")); err != nil {
		t.Fatalf("expected populated parent to survive: %v", err)
	}
}

func TestDeleteMissingFileIsNoop(t *testing.T) {
	store := New(t.TempDir(), zap.NewNop())
	if err := store.Delete(filepath.Join(t.TempDir(), "missing.jpg")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
	if err := store.Delete(""); err != nil {
		t.Fatalf("expected nil for empty path, got %v", err)
	}
}
