package core

import (
	"context"
	"testing"
)

func newTestSweepExecutor(t *testing.T) (*SweepExecutor, *TransactionStore, *fakeLedgerClient, *DurableCells) {
	t.Helper()
	store := NewTransactionStore(NewInMemoryStore())
	client := &fakeLedgerClient{}
	cells := NewDurableCells()
	cells.SetCustodian(Principal{9, 9})
	ledgers := map[TokenType]TokenLedger{
		TokenICP: {Token: TokenICP, Principal: Principal{1}, Client: client},
	}
	registry := NewSubaccountRegistry(NewInMemoryStore(), Principal{1})
	return NewSweepExecutor(store, registry, ledgers, cells, nil), store, client, cells
}

func TestSweepMovesFundsAndMarksSwept(t *testing.T) {
	exec, store, client, _ := newTestSweepExecutor(t)

	tx := sampleTx(TokenICP, 1, 1_000_000)
	_ = store.Put(tx)

	results, err := exec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 1 || !results[0].Ok {
		t.Fatalf("expected one successful sweep result, got %+v", results)
	}
	if len(client.transfers) != 1 {
		t.Fatalf("expected one transfer call, got %d", len(client.transfers))
	}
	if client.transfers[0].amount != tx.Transfer.Amount-FeeTable[TokenICP] {
		t.Fatalf("expected net amount after fee, got %d", client.transfers[0].amount)
	}

	got, err := store.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SweepStatus != Swept {
		t.Fatalf("expected status Swept, got %v", got.SweepStatus)
	}
}

func TestSweepAmountBelowFeeFailsWithoutUnderflow(t *testing.T) {
	exec, store, client, _ := newTestSweepExecutor(t)

	tx := sampleTx(TokenICP, 1, 5_000) // below the 10_000 ICP fee
	_ = store.Put(tx)

	results, err := exec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 1 || results[0].Ok {
		t.Fatalf("expected sweep to fail for amount below fee, got %+v", results)
	}
	if len(client.transfers) != 0 {
		t.Fatalf("expected no transfer call to be issued, got %d", len(client.transfers))
	}

	got, _ := store.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if got.SweepStatus != FailedToSweep {
		t.Fatalf("expected FailedToSweep, got %v", got.SweepStatus)
	}
}

func TestSweepLedgerFailureMarksFailedToSweep(t *testing.T) {
	exec, store, client, _ := newTestSweepExecutor(t)
	client.transferErr = errTransferDenied

	tx := sampleTx(TokenICP, 1, 1_000_000)
	_ = store.Put(tx)

	results, err := exec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if results[0].Ok {
		t.Fatalf("expected failed result when ledger call errors")
	}
	got, _ := store.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if got.SweepStatus != FailedToSweep {
		t.Fatalf("expected FailedToSweep after ledger error, got %v", got.SweepStatus)
	}
}

func TestSingleSweepUnknownHash(t *testing.T) {
	exec, _, _, _ := newTestSweepExecutor(t)
	if _, err := exec.SingleSweep(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSweepByTokenTypeOnlySweepsMatchingToken(t *testing.T) {
	store := NewTransactionStore(NewInMemoryStore())
	icpClient := &fakeLedgerClient{}
	ckbtcClient := &fakeLedgerClient{}
	cells := NewDurableCells()
	cells.SetCustodian(Principal{1})
	ledgers := map[TokenType]TokenLedger{
		TokenICP:   {Token: TokenICP, Principal: Principal{1}, Client: icpClient},
		TokenCkBTC: {Token: TokenCkBTC, Principal: Principal{2}, Client: ckbtcClient},
	}
	registry := NewSubaccountRegistry(NewInMemoryStore(), Principal{1})
	exec := NewSweepExecutor(store, registry, ledgers, cells, nil)

	_ = store.Put(sampleTx(TokenICP, 1, 1_000_000))
	_ = store.Put(sampleTx(TokenCkBTC, 1, 1_000))

	results, err := exec.SweepByTokenType(context.Background(), TokenCkBTC)
	if err != nil {
		t.Fatalf("sweep by token: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one result for ckBTC, got %d", len(results))
	}
	if len(icpClient.transfers) != 0 {
		t.Fatalf("expected ICP ledger to be untouched")
	}
}

func TestSetSweepFailedForcesStatus(t *testing.T) {
	exec, store, _, _ := newTestSweepExecutor(t)
	tx := sampleTx(TokenICP, 1, 1_000_000)
	_ = store.Put(tx)

	if err := exec.SetSweepFailed(tx.Hash); err != nil {
		t.Fatalf("set sweep failed: %v", err)
	}
	got, _ := store.Get(TxKey{Token: TokenICP, BlockIndex: 1})
	if got.SweepStatus != FailedToSweep {
		t.Fatalf("expected FailedToSweep override, got %v", got.SweepStatus)
	}
}

func TestSweepSubaccountConvertsDecimalAmountAndTransfers(t *testing.T) {
	store := NewTransactionStore(NewInMemoryStore())
	client := &fakeLedgerClient{}
	cells := NewDurableCells()
	cells.SetCustodian(Principal{9})
	owner := Principal{1, 2, 3}
	registry := NewSubaccountRegistry(NewInMemoryStore(), owner)
	reg, err := registry.Issue("memo")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ledgers := map[TokenType]TokenLedger{
		TokenICP: {Token: TokenICP, Principal: Principal{1}, Client: client},
	}
	exec := NewSweepExecutor(store, registry, ledgers, cells, nil)

	block, err := exec.SweepSubaccount(context.Background(), reg.AccountID.String(), 0.001, TokenICP)
	if err != nil {
		t.Fatalf("sweep subaccount: %v", err)
	}
	if block == 0 {
		t.Fatalf("expected a non-zero block index")
	}
	if len(client.transfers) != 1 {
		t.Fatalf("expected one transfer call, got %d", len(client.transfers))
	}
	wantAmount := uint64(0.001*1e8) - FeeTable[TokenICP]
	if client.transfers[0].amount != wantAmount {
		t.Fatalf("expected net amount %d, got %d", wantAmount, client.transfers[0].amount)
	}
}

func TestSweepSubaccountRejectsNegativeAmount(t *testing.T) {
	exec, _, _, _ := newTestSweepExecutor(t)
	if _, err := exec.SweepSubaccount(context.Background(), AccountIdentifier{}.String(), -1, TokenICP); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestSweepSubaccountRejectsOverflowAmount(t *testing.T) {
	exec, _, _, _ := newTestSweepExecutor(t)
	if _, err := exec.SweepSubaccount(context.Background(), AccountIdentifier{}.String(), 1e12, TokenICP); err == nil {
		t.Fatalf("expected error for overflowing amount")
	}
}

func TestSweepSubaccountRejectsUnknownAccount(t *testing.T) {
	exec, _, _, _ := newTestSweepExecutor(t)
	unknown := NewAccountIdentifier(Principal{7, 7}, Subaccount{})
	if _, err := exec.SweepSubaccount(context.Background(), unknown.String(), 1, TokenICP); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

var errTransferDenied = fakeErr("ledger rejected transfer")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
