package core

import (
	"path/filepath"
	"testing"

	"github.com/icplabs/subaccount-sweeper/internal/testutil"
)

func TestInMemoryStoreSetGetDelete(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("expected 1, got %s", v)
	}
	if err := s.Delete([]byte("a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get([]byte("a")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryStoreIteratorOrderAndPrefix(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.Set([]byte("tx:b"), []byte("2"))
	_ = s.Set([]byte("tx:a"), []byte("1"))
	_ = s.Set([]byte("other:z"), []byte("9"))

	it := s.Iterator([]byte("tx:"))
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys under tx: prefix, got %v", keys)
	}
	if keys[0] != "tx:a" || keys[1] != "tx:b" {
		t.Fatalf("expected sorted order, got %v", keys)
	}
}

func TestFileKVStorePersistsAcrossReopen(t *testing.T) {
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	defer sandbox.Cleanup()
	path := sandbox.Path("wal.jsonl")

	s1, err := NewFileKVStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s1.Delete([]byte("gone")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := NewFileKVStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, err := s2.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(v) != "v" {
		t.Fatalf("expected v, got %s", v)
	}
}

func TestFileKVStoreReplaysDeletes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.jsonl")

	s1, err := NewFileKVStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s1.Set([]byte("k"), []byte("v"))
	_ = s1.Delete([]byte("k"))
	_ = s1.Close()

	s2, err := NewFileKVStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if _, err := s2.Get([]byte("k")); err != ErrNotFound {
		t.Fatalf("expected key to remain deleted after replay, got %v", err)
	}
}
