package core

// registry.go implements the subaccount registry: a mutex-guarded manager
// wrapping a KVStore, in the same style as account_and_balance_operations.go's
// AccountManager wrapping a Ledger. Deposit subaccounts are derived the way
// wallet.go derives HD addresses — a deterministic function of a
// monotonically increasing index, not randomness.

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

const registryKeyPrefix = "registry:fp:"

// SubaccountRegistry maps fingerprints of account identifiers back to the
// (nonce, subaccount) pair that produced them, and tracks the next nonce to
// hand out.
type SubaccountRegistry struct {
	mu    sync.Mutex
	store KVStore
	owner Principal
	next  uint64
}

// NewSubaccountRegistry constructs a registry over store for the given
// ledger owner principal, seeding the next nonce from any previously
// persisted entries.
func NewSubaccountRegistry(store KVStore, owner Principal) *SubaccountRegistry {
	r := &SubaccountRegistry{store: store, owner: owner, next: 0}
	it := store.Iterator([]byte(registryKeyPrefix))
	for it.Next() {
		var rec RegisteredSubaccount
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			continue
		}
		if rec.Nonce >= r.next {
			r.next = rec.Nonce + 1
		}
	}
	return r
}

func fingerprint(id AccountIdentifier) uint64 {
	h := fnv.New64a()
	h.Write(id[:])
	return h.Sum64()
}

func fingerprintKey(fp uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], fp)
	return append([]byte(registryKeyPrefix), b[:]...)
}

// Issue allocates the next subaccount for the owner principal, persists the
// mapping, and returns the registration record.
func (r *SubaccountRegistry) Issue(memo string) (RegisteredSubaccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next > math.MaxUint32 {
		return RegisteredSubaccount{}, fmt.Errorf("%w: subaccount nonce space exhausted", ErrInvalidInput)
	}

	nonce := r.next
	sub := DeriveSubaccount(nonce)
	accountID := NewAccountIdentifier(r.owner, sub)

	rec := RegisteredSubaccount{
		Nonce:      nonce,
		Subaccount: sub,
		AccountID:  accountID,
		Memo:       memo,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return RegisteredSubaccount{}, fmt.Errorf("registry: marshal: %w", err)
	}
	if err := r.store.Set(fingerprintKey(fingerprint(accountID)), raw); err != nil {
		return RegisteredSubaccount{}, fmt.Errorf("registry: persist: %w", err)
	}

	r.next = nonce + 1
	return rec, nil
}

// Lookup resolves an account identifier to its registration, re-deriving
// the candidate's account identifier and comparing it byte-for-byte before
// trusting a fingerprint hit — the equality hardening spec.md's open
// question on fingerprint collisions recommends.
func (r *SubaccountRegistry) Lookup(id AccountIdentifier) (RegisteredSubaccount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.store.Get(fingerprintKey(fingerprint(id)))
	if err != nil {
		return RegisteredSubaccount{}, false
	}
	var rec RegisteredSubaccount
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RegisteredSubaccount{}, false
	}
	if NewAccountIdentifier(r.owner, rec.Subaccount) != id {
		return RegisteredSubaccount{}, false
	}
	return rec, true
}

// GetByNonce re-derives the registration for a previously issued nonce,
// failing InvalidInput if nonce has not yet been handed out by Issue
// (spec.md §8 "get_subaccountid(n) with n >= last_nonce fails").
func (r *SubaccountRegistry) GetByNonce(nonce uint64) (RegisteredSubaccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nonce >= r.next {
		return RegisteredSubaccount{}, fmt.Errorf("%w: Index out of bounds", ErrInvalidInput)
	}
	sub := DeriveSubaccount(nonce)
	return RegisteredSubaccount{
		Nonce:      nonce,
		Subaccount: sub,
		AccountID:  NewAccountIdentifier(r.owner, sub),
	}, nil
}

// GetByAccountID is an alias for Lookup, named to match spec.md §4.2's
// operation table entry.
func (r *SubaccountRegistry) GetByAccountID(id AccountIdentifier) (RegisteredSubaccount, bool) {
	return r.Lookup(id)
}

// SeedNonce sets the next nonce to hand out, for the init(starting_nonce)
// operation (spec.md §4.10, §6). It only takes effect while the registry
// is still untouched — nothing issued yet and nothing persisted to resume
// from — so that re-running init on an upgrade can never rewind a nonce
// counter that has already advanced past it.
func (r *SubaccountRegistry) SeedNonce(nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next == 0 {
		r.next = nonce
	}
}

// NextNonce reports the nonce that will be handed out by the next Issue
// call, for diagnostics and the Status() operation.
func (r *SubaccountRegistry) NextNonce() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Count returns the number of subaccounts issued so far.
func (r *SubaccountRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.store.Iterator([]byte(registryKeyPrefix))
	n := 0
	for it.Next() {
		n++
	}
	return n
}
