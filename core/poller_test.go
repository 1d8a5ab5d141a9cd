package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestPollerMatchesRegisteredSubaccount(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1, 2, 3}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("user-1")

	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{
		blocks: []RawBlock{
			{BlockIndex: 1, Operation: OpTransfer, Transfer: Transfer{To: rec.AccountID, Amount: 1_000_000}},
			{BlockIndex: 2, Operation: OpTransfer, Transfer: Transfer{To: AccountIdentifier{0xAA}, Amount: 1}},
		},
	}
	poller.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{9}, Client: client})

	if err := poller.PollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if txStore.Count() != 1 {
		t.Fatalf("expected exactly one matched transaction, got %d", txStore.Count())
	}
	got, err := txStore.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if err != nil {
		t.Fatalf("expected matched block 1 to be stored: %v", err)
	}
	if got.Subaccount != rec.Subaccount {
		t.Fatalf("expected stored subaccount to match registration")
	}
}

func TestPollerAdvancesCursor(t *testing.T) {
	store := NewInMemoryStore()
	registry := NewSubaccountRegistry(store, Principal{1})
	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{blocks: []RawBlock{
		{BlockIndex: 1, Operation: OpMint},
		{BlockIndex: 2, Operation: OpMint},
		{BlockIndex: 3, Operation: OpMint},
	}}
	poller.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{9}, Client: client})

	_ = poller.PollOnce(context.Background())
	cursor, ok := cells.NextBlock(TokenICP)
	if !ok {
		t.Fatalf("expected cursor to be set")
	}
	if cursor != 4 {
		t.Fatalf("expected cursor to advance to 4, got %d", cursor)
	}
	if cells.LegacyNextBlock() != 4 {
		t.Fatalf("expected legacy cursor to track ICP cursor, got %d", cells.LegacyNextBlock())
	}
}

func TestPollerProcessArchivedBlock(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("m")
	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{blocks: []RawBlock{
		{BlockIndex: 2_000_001, Operation: OpTransfer, Transfer: Transfer{To: rec.AccountID, Amount: 5}},
	}}
	poller.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{9}, Client: client})

	if err := poller.ProcessArchivedBlock(context.Background(), TokenICP, 2_000_001); err != nil {
		t.Fatalf("process archived block: %v", err)
	}
	if _, err := txStore.Get(TxKey{Token: TokenICP, BlockIndex: 2_000_001}); err != nil {
		t.Fatalf("expected archived block to be stored: %v", err)
	}
}

func TestPollerReprocessingNeverClobbersSweepStatus(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("m")
	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{blocks: []RawBlock{
		{BlockIndex: 1, Operation: OpTransfer, Transfer: Transfer{To: rec.AccountID, Amount: 1_000_000}},
	}}
	poller.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{9}, Client: client})
	_ = poller.PollOnce(context.Background())

	key := TxKey{Token: TokenICP, BlockIndex: 1}
	if err := txStore.SetSweepStatus(key, Swept, 123); err != nil {
		t.Fatalf("set status: %v", err)
	}

	// Re-deliver the same archived block; the store must not regress the
	// status a sweep already advanced.
	if err := poller.ProcessArchivedBlock(context.Background(), TokenICP, 1); err != nil {
		t.Fatalf("process archived block: %v", err)
	}
	got, err := txStore.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SweepStatus != Swept {
		t.Fatalf("expected sweep status to remain Swept, got %s", got.SweepStatus)
	}
}

func TestPollerFiresWebhookOnceWithFirstNewHash(t *testing.T) {
	var hits int32
	var lastHash string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		lastHash = r.URL.Query().Get("tx_hash")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewInMemoryStore()
	owner := Principal{1}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("m")
	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	cells.SetWebhookURL(srv.URL)
	poller := NewPoller(registry, txStore, cells, nil)
	poller.SetWebhook(NewWebhookNotifier(nil, cells, nil))

	client := &fakeLedgerClient{blocks: []RawBlock{
		{BlockIndex: 1, Operation: OpTransfer, Transfer: Transfer{To: rec.AccountID, Amount: 1_000_000}},
		{BlockIndex: 2, Operation: OpTransfer, Transfer: Transfer{To: rec.AccountID, Amount: 2_000_000}},
	}}
	poller.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{9}, Client: client})

	if err := poller.PollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one webhook delivery per cycle, got %d", hits)
	}
	want, err := txStore.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lastHash != want.Hash {
		t.Fatalf("expected notification to carry the first new hash %q, got %q", want.Hash, lastHash)
	}
}

func TestPollerNormalizesIcrc3Blocks(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{1, 2, 3}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("user-1")

	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{
		icrc3Blocks: []Icrc3RawBlock{
			{
				BlockIndex: 1,
				Op:         "xfer",
				From:       &Icrc3Account{Owner: Principal{9, 9}},
				To:         &Icrc3Account{Owner: owner, Subaccount: &rec.Subaccount},
				Amount:     1_000_000,
				Fee:        10_000,
				Memo:       7,
			},
			{
				BlockIndex: 2,
				Op:         "xfer",
				From:       &Icrc3Account{Owner: Principal{9, 9}},
				To:         &Icrc3Account{Owner: Principal{250}},
				Amount:     1,
			},
		},
	}
	poller.RegisterToken(TokenLedger{Token: TokenCkUSDC, Principal: Principal{9}, Client: client})

	if err := poller.PollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if txStore.Count() != 1 {
		t.Fatalf("expected exactly one matched transaction, got %d", txStore.Count())
	}
	got, err := txStore.Get(TxKey{Token: TokenCkUSDC, BlockIndex: 1})
	if err != nil {
		t.Fatalf("expected matched icrc3 block 1 to be stored: %v", err)
	}
	if got.Transfer.To != rec.AccountID {
		t.Fatalf("expected fabricated classic account identifier to match registration")
	}
	if got.Transfer.Amount != 1_000_000 || got.Transfer.Fee != 10_000 || got.Transfer.Memo != 7 {
		t.Fatalf("expected normalized transfer fields to carry through, got %+v", got.Transfer)
	}

	cursor, ok := cells.NextBlock(TokenCkUSDC)
	if !ok || cursor != 3 {
		t.Fatalf("expected cursor to advance past both fetched blocks, got %d (ok=%v)", cursor, ok)
	}
}

func TestPollerIcrc3DefaultsAbsentSubaccountToZero(t *testing.T) {
	store := NewInMemoryStore()
	owner := Principal{4, 5, 6}
	registry := NewSubaccountRegistry(store, owner)
	rec, _ := registry.Issue("user-1")
	if rec.Subaccount != (Subaccount{}) {
		t.Fatalf("expected first issued subaccount to be the zero subaccount")
	}

	txStore := NewTransactionStore(store)
	cells := NewDurableCells()
	poller := NewPoller(registry, txStore, cells, nil)

	client := &fakeLedgerClient{
		icrc3Blocks: []Icrc3RawBlock{
			{
				BlockIndex: 1,
				Op:         "xfer",
				From:       &Icrc3Account{Owner: Principal{1}},
				To:         &Icrc3Account{Owner: owner}, // no Subaccount: defaults to all-zero
				Amount:     500,
			},
		},
	}
	poller.RegisterToken(TokenLedger{Token: TokenCkBTC, Principal: Principal{9}, Client: client})

	if err := poller.PollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if txStore.Count() != 1 {
		t.Fatalf("expected the default-subaccount deposit to match the zero-subaccount registration, got count %d", txStore.Count())
	}
}

func TestDurableCellsMigrateFromLegacy(t *testing.T) {
	cells := NewDurableCells()
	cells.SetLegacyNextBlock(500)

	cells.MigrateFromLegacy([]TokenType{TokenICP, TokenCkBTC})

	icp, _ := cells.NextBlock(TokenICP)
	if icp != 500 {
		t.Fatalf("expected ICP cursor to be seeded from legacy cell, got %d", icp)
	}
	ckbtc, _ := cells.NextBlock(TokenCkBTC)
	if ckbtc != 1 {
		t.Fatalf("expected non-ICP token to start at 1, got %d", ckbtc)
	}

	// Migration must not re-run once cursors already exist.
	cells.SetNextBlock(TokenICP, 999)
	cells.MigrateFromLegacy([]TokenType{TokenICP})
	after, _ := cells.NextBlock(TokenICP)
	if after != 999 {
		t.Fatalf("expected migration to be a one-time operation, cursor changed to %d", after)
	}
}
