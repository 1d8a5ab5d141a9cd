package core

import "testing"

func TestTransactionHashDeterministic(t *testing.T) {
	tx := StoredTransaction{
		Operation: OpTransfer,
		Transfer: Transfer{
			From:   AccountIdentifier{1},
			To:     AccountIdentifier{2},
			Amount: 100,
			Fee:    10_000,
			Memo:   7,
		},
	}

	h1 := TransactionHash(tx)
	h2 := TransactionHash(tx)
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex hash, got %q (%d chars)", h1, len(h1))
	}
}

func TestTransactionHashDiffersOnAmount(t *testing.T) {
	base := StoredTransaction{Operation: OpTransfer, Transfer: Transfer{Amount: 100}}
	other := StoredTransaction{Operation: OpTransfer, Transfer: Transfer{Amount: 200}}
	if TransactionHash(base) == TransactionHash(other) {
		t.Fatalf("expected distinct hashes for distinct amounts")
	}
}

func TestTransactionHashNonTransferIsSentinel(t *testing.T) {
	tx := StoredTransaction{Operation: OpMint}
	if got := TransactionHash(tx); got != hashUnavailable {
		t.Fatalf("expected sentinel hash for non-transfer op, got %q", got)
	}
}
