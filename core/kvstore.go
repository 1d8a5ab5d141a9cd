package core

// kvstore.go adapts the KVStore/Iterator/InMemoryStore trio from
// cross_chain.go into the durable-cell abstraction this engine builds its
// transaction store and registry on top of. A FileKVStore variant appends a
// JSON line per mutation and replays it on open, the same WAL-then-rebuild
// shape ledger.go uses for block persistence.

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// KVStore is the durable-cell capability this engine requires of its
// storage backend.
type KVStore interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Iterator(prefix []byte) Iterator
}

// Iterator walks keys sharing a prefix in ascending lexical order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

//---------------------------------------------------------------------
// In-memory implementation
//---------------------------------------------------------------------

// InMemoryStore is a process-local KVStore, suitable for tests and for a
// single-process deployment that tolerates losing state on restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

func (s *InMemoryStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[string(key)] = cp
	return nil
}

func (s *InMemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *InMemoryStore) Iterator(prefix []byte) Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys [][]byte
	for k := range s.data {
		kb := []byte(k)
		if bytes.HasPrefix(kb, prefix) {
			keys = append(keys, kb)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[string(k)]
	}

	return &sliceIterator{keys: keys, values: values, index: -1}
}

type sliceIterator struct {
	keys   [][]byte
	values [][]byte
	index  int
}

func (it *sliceIterator) Next() bool {
	it.index++
	return it.index < len(it.keys)
}

func (it *sliceIterator) Key() []byte   { return it.keys[it.index] }
func (it *sliceIterator) Value() []byte { return it.values[it.index] }
func (it *sliceIterator) Error() error  { return nil }
func (it *sliceIterator) Close() error  { return nil }

//---------------------------------------------------------------------
// File-backed implementation (WAL + in-memory index, per common_structs'
// former ledger.go persistence design)
//---------------------------------------------------------------------

type walRecord struct {
	Key     []byte `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// FileKVStore persists every mutation as a newline-delimited JSON record and
// rebuilds its in-memory index by replaying the file on open.
type FileKVStore struct {
	*InMemoryStore
	path string
	mu   sync.Mutex
	file *os.File
	log  *zap.Logger
}

// NewFileKVStore opens (creating if absent) the WAL file at path, replays
// it, and returns a ready-to-use store.
func NewFileKVStore(path string, log *zap.Logger) (*FileKVStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mem := NewInMemoryStore()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}

	if err := replayWAL(path, mem); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("kvstore: replay %s: %w", path, err)
	}

	log.Info("kvstore: opened", zap.String("path", path), zap.Int("entries", len(mem.data)))
	return &FileKVStore{InMemoryStore: mem, path: path, file: f, log: log}, nil
}

func replayWAL(path string, mem *InMemoryStore) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec walRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("corrupt wal line: %w", err)
		}
		if rec.Deleted {
			delete(mem.data, string(rec.Key))
		} else {
			mem.data[string(rec.Key)] = rec.Value
		}
	}
	return sc.Err()
}

func (s *FileKVStore) append(rec walRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = s.file.Write(b)
	return err
}

func (s *FileKVStore) Set(key, value []byte) error {
	if err := s.append(walRecord{Key: key, Value: value}); err != nil {
		return fmt.Errorf("kvstore: wal write: %w", err)
	}
	return s.InMemoryStore.Set(key, value)
}

func (s *FileKVStore) Delete(key []byte) error {
	if err := s.append(walRecord{Key: key, Deleted: true}); err != nil {
		return fmt.Errorf("kvstore: wal write: %w", err)
	}
	return s.InMemoryStore.Delete(key)
}

// Close flushes and closes the underlying WAL file.
func (s *FileKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
