package core

// store.go implements the durable transaction store, keyed by
// (token, block_index) rather than the legacy global running counter —
// the preferred redesign recorded in spec.md's design notes. It wraps a
// KVStore exactly as AccountManager wraps a Ledger in
// account_and_balance_operations.go.

import (
	"encoding/json"
	"fmt"
	"sync"
)

const txKeyPrefix = "tx:"

func txStoreKey(k TxKey) []byte {
	return []byte(fmt.Sprintf("%s%s", txKeyPrefix, k))
}

// legacyStoredTransaction is the pre-redesign wire shape: it lacked
// TokenType/TokenLedger because the original canister only ever tracked
// ICP. Decoding falls back to this shape so a store opened against older
// data keeps working (spec.md design note "Dual-shape record").
type legacyStoredTransaction struct {
	BlockIndex  uint64
	Operation   Operation
	Transfer    Transfer
	Hash        string
	Subaccount  Subaccount
	SweepStatus SweepStatus
	SweepedAt   int64
}

// TransactionStore records every matched deposit and tracks its sweep
// status.
type TransactionStore struct {
	mu    sync.RWMutex
	store KVStore
}

// NewTransactionStore constructs a store over the given KVStore.
func NewTransactionStore(store KVStore) *TransactionStore {
	return &TransactionStore{store: store}
}

// Put inserts or overwrites the stored transaction for its key.
func (s *TransactionStore) Put(tx StoredTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(tx)
}

func (s *TransactionStore) put(tx StoredTransaction) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	key := TxKey{Token: tx.TokenType, BlockIndex: tx.BlockIndex}
	if err := s.store.Set(txStoreKey(key), raw); err != nil {
		return fmt.Errorf("store: persist: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts tx unless a record already exists for its
// (token, block index) key, in which case the re-observation is silently
// skipped and the existing record is left untouched (spec.md §4.3's
// insert_if_absent idempotency requirement — re-processing an already
// matched block, e.g. via an overlapping poll tick or an archive replay,
// must not clobber a sweep status a prior cycle already advanced).
// Reports whether the record was newly inserted.
func (s *TransactionStore) InsertIfAbsent(tx StoredTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := TxKey{Token: tx.TokenType, BlockIndex: tx.BlockIndex}
	if _, err := s.store.Get(txStoreKey(key)); err == nil {
		return false, nil
	}
	if err := s.put(tx); err != nil {
		return false, err
	}
	return true, nil
}

// Get retrieves a stored transaction by its (token, block index) key.
func (s *TransactionStore) Get(key TxKey) (StoredTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.store.Get(txStoreKey(key))
	if err != nil {
		return StoredTransaction{}, ErrNotFound
	}
	return decodeStoredTransaction(raw, key.Token)
}

func decodeStoredTransaction(raw []byte, fallbackToken TokenType) (StoredTransaction, error) {
	var tx StoredTransaction
	if err := json.Unmarshal(raw, &tx); err == nil && tx.TokenLedger != nil {
		return tx, nil
	}

	var legacy legacyStoredTransaction
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return StoredTransaction{}, fmt.Errorf("store: decode: %w", err)
	}
	return StoredTransaction{
		TokenType:   fallbackToken,
		TokenLedger: Principal{},
		BlockIndex:  legacy.BlockIndex,
		Operation:   legacy.Operation,
		Transfer:    legacy.Transfer,
		Hash:        legacy.Hash,
		Subaccount:  legacy.Subaccount,
		SweepStatus: legacy.SweepStatus,
		SweepedAt:   legacy.SweepedAt,
	}, nil
}

// GetByHash scans for a stored transaction matching hash. Linear, but the
// operation table only calls it from operator tooling paths, not the poll
// loop.
func (s *TransactionStore) GetByHash(hash string) (StoredTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.store.Iterator([]byte(txKeyPrefix))
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		if tx.Hash == hash {
			return tx, true
		}
	}
	return StoredTransaction{}, false
}

// GetByIndex scans for a stored transaction matching blockIndex, regardless
// of which token ledger produced it. The store's durable key is
// (token, block_index), but spec.md §4.7's refund operation and the
// original canister's refund(transaction_index) both identify a
// transaction by its block index alone, so this resolves that lookup the
// same linear way GetByHash does.
func (s *TransactionStore) GetByIndex(blockIndex uint64) (StoredTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.store.Iterator([]byte(txKeyPrefix))
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		if tx.BlockIndex == blockIndex {
			return tx, true
		}
	}
	return StoredTransaction{}, false
}

// SetSweepStatus updates only the sweep status and timestamp of a stored
// transaction, leaving the rest of the record untouched.
func (s *TransactionStore) SetSweepStatus(key TxKey, status SweepStatus, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Get(txStoreKey(key))
	if err != nil {
		return ErrNotFound
	}
	tx, err := decodeStoredTransaction(raw, key.Token)
	if err != nil {
		return err
	}
	tx.SweepStatus = status
	tx.SweepedAt = at

	out, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	return s.store.Set(txStoreKey(key), out)
}

// ListByStatus returns every stored transaction with the given status, in
// the order the underlying store's iterator yields them (byte order of the
// "tx:<token>:<decimal block index>" keys for the in-memory and
// file-backed stores, so e.g. block 10 precedes block 9).
func (s *TransactionStore) ListByStatus(status SweepStatus) []StoredTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredTransaction
	it := s.store.Iterator([]byte(txKeyPrefix))
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		if tx.SweepStatus == status {
			out = append(out, tx)
		}
	}
	return out
}

// All returns every stored transaction in the store's iteration order: byte
// order of the "tx:<token>:<decimal block index>" keys, which is not
// numeric block order once indices differ in length.
func (s *TransactionStore) All() []StoredTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredTransaction
	it := s.store.Iterator([]byte(txKeyPrefix))
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// List returns the last min(len, limit) stored transactions in iteration
// order, matching list_transactions' default-limit-100 behaviour.
func (s *TransactionStore) List(limit int) []StoredTransaction {
	if limit <= 0 {
		limit = 100
	}
	all := s.All()
	if len(all) <= limit {
		return all
	}
	return all[len(all)-limit:]
}

// RangeClear removes every stored transaction whose block index is
// <= upToIndex OR whose created-at timestamp is <= upToTs (the two
// predicates combine with OR, not AND, per spec.md §4.3); a nil bound is
// never satisfied. A zero upToTs is the "unset" sentinel and clears
// nothing via that predicate. Returns the surviving set.
func (s *TransactionStore) RangeClear(upToIndex *uint64, upToTs *uint64) ([]StoredTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.store.Iterator([]byte(txKeyPrefix))
	var keys [][]byte
	var txs []StoredTransaction
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		keys = append(keys, append([]byte{}, it.Key()...))
		txs = append(txs, tx)
	}

	var surviving []StoredTransaction
	for i, tx := range txs {
		clearByIndex := upToIndex != nil && tx.BlockIndex <= *upToIndex
		clearByTs := upToTs != nil && *upToTs != 0 && tx.Transfer.CreatedAtTime <= *upToTs
		if clearByIndex || clearByTs {
			if err := s.store.Delete(keys[i]); err != nil {
				return nil, fmt.Errorf("store: delete: %w", err)
			}
			continue
		}
		surviving = append(surviving, tx)
	}
	return surviving, nil
}

// OldestBlockIndex returns the smallest stored block index, and false if
// the store is empty.
func (s *TransactionStore) OldestBlockIndex() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.store.Iterator([]byte(txKeyPrefix))
	var oldest uint64
	found := false
	for it.Next() {
		tx, err := decodeStoredTransaction(it.Value(), TokenICP)
		if err != nil {
			continue
		}
		if !found || tx.BlockIndex < oldest {
			oldest = tx.BlockIndex
			found = true
		}
	}
	return oldest, found
}

// Count returns the total number of stored transactions.
func (s *TransactionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.store.Iterator([]byte(txKeyPrefix))
	n := 0
	for it.Next() {
		n++
	}
	return n
}
