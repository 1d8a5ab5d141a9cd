package core

import "testing"

func TestRegistryIssueAndLookup(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1, 2, 3}
	reg := NewSubaccountRegistry(store, owner)

	rec, err := reg.Issue("user-42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.Nonce != 0 {
		t.Fatalf("expected first nonce to be 0, got %d", rec.Nonce)
	}

	got, ok := reg.Lookup(rec.AccountID)
	if !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if got.Nonce != rec.Nonce || got.Subaccount != rec.Subaccount {
		t.Fatalf("lookup mismatch: %+v vs %+v", got, rec)
	}
}

func TestRegistryLookupMissReturnsFalse(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewSubaccountRegistry(store, Principal{1})
	_, ok := reg.Lookup(AccountIdentifier{0xFF})
	if ok {
		t.Fatalf("expected lookup miss for unregistered identifier")
	}
}

func TestRegistryNonceIncrementsAcrossIssues(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewSubaccountRegistry(store, Principal{1})

	first, _ := reg.Issue("a")
	second, _ := reg.Issue("b")
	if second.Nonce != first.Nonce+1 {
		t.Fatalf("expected monotonically increasing nonce, got %d then %d", first.Nonce, second.Nonce)
	}
	if reg.NextNonce() != second.Nonce+1 {
		t.Fatalf("expected next nonce to be %d, got %d", second.Nonce+1, reg.NextNonce())
	}
	if reg.Count() != 2 {
		t.Fatalf("expected count 2, got %d", reg.Count())
	}
}

func TestRegistrySeedsNonceFromExistingStore(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1}
	first := NewSubaccountRegistry(store, owner)
	_, _ = first.Issue("a")
	_, _ = first.Issue("b")

	second := NewSubaccountRegistry(store, owner)
	if second.NextNonce() != first.NextNonce() {
		t.Fatalf("expected reopened registry to resume at %d, got %d", first.NextNonce(), second.NextNonce())
	}
}

func TestRegistrySeedNonceSetsStartingPoint(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewSubaccountRegistry(store, Principal{1})

	reg.SeedNonce(42)
	if reg.NextNonce() != 42 {
		t.Fatalf("expected seeded nonce to be 42, got %d", reg.NextNonce())
	}

	rec, err := reg.Issue("a")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.Nonce != 42 {
		t.Fatalf("expected first issue after seeding to use nonce 42, got %d", rec.Nonce)
	}
}

func TestRegistrySeedNonceIgnoredOnceIssuesExist(t *testing.T) {
	store := NewInMemoryStore()
	reg := NewSubaccountRegistry(store, Principal{1})

	_, _ = reg.Issue("a")
	reg.SeedNonce(100)
	if reg.NextNonce() != 1 {
		t.Fatalf("expected seeding to be a no-op once issuance has started, got next nonce %d", reg.NextNonce())
	}
}
