package core

// refund.go plans and executes returning a deposit to its original sender
// instead of the custodian, sharing the sweep executor's store, ledgers and
// fee table but targeting tx.Transfer.From with a single direct transfer.

import (
	"context"
	"fmt"
)

// RefundExecutor returns matched deposits to their originating account
// instead of sweeping them to the custodian.
type RefundExecutor struct {
	exec *SweepExecutor
}

// NewRefundExecutor constructs a refund executor sharing the same store,
// ledgers and fee table as sweeping.
func NewRefundExecutor(exec *SweepExecutor) *RefundExecutor {
	return &RefundExecutor{exec: exec}
}

// Refund returns a single matched transaction, identified by its block
// index, to its originating account (spec.md §4.7, matching the original
// canister's refund(transaction_index) operation). Only ICP transactions are
// refunded; for any other token Refund returns an error without a transfer.
func (r *RefundExecutor) Refund(ctx context.Context, index uint64) (SweepResult, error) {
	tx, ok := r.exec.store.GetByIndex(index)
	if !ok {
		return SweepResult{}, ErrNotFound
	}
	hash := tx.Hash
	if tx.Operation != OpTransfer {
		return SweepResult{}, ErrNotTransfer
	}

	key := TxKey{Token: tx.TokenType, BlockIndex: tx.BlockIndex}
	fee := FeeTable[tx.TokenType]
	if tx.Transfer.Amount <= fee {
		_ = r.exec.store.SetSweepStatus(key, FailedToSweep, nowUnix())
		return SweepResult{Hash: hash, Ok: false, Detail: ErrInvalidInput.Error() + ": amount does not cover fee"}, nil
	}
	netAmount := tx.Transfer.Amount - fee

	tl, ok := r.exec.ledgers[tx.TokenType]
	if !ok {
		return SweepResult{}, fmt.Errorf("no ledger registered for token %s", tx.TokenType)
	}

	var (
		block uint64
		err   error
	)
	if tx.TokenType == TokenICP {
		block, err = tl.Client.Transfer(ctx, tx.Subaccount, tx.Transfer.From, netAmount, fee, tx.Transfer.Memo)
	} else {
		// ICRC-1 refunds target the original sender's (owner, subaccount)
		// pair; this engine only retains the sender's account identifier,
		// which cannot be turned back into a principal, so the refund is
		// rejected here and no ledger call is made.
		return SweepResult{}, fmt.Errorf("icrc1 refund requires a resolvable sender principal")
	}
	if err != nil {
		_ = r.exec.store.SetSweepStatus(key, FailedToSweep, nowUnix())
		return SweepResult{Hash: hash, Ok: false, Detail: err.Error()}, nil
	}

	if err := r.exec.store.SetSweepStatus(key, Swept, nowUnix()); err != nil {
		return SweepResult{Hash: hash, Ok: false, Detail: fmt.Sprintf("refund ok (block %d) but status_update failed: %v", block, err)}, nil
	}
	return SweepResult{Hash: hash, Ok: true, Detail: fmt.Sprintf("ok (block %d), status_update: ok", block)}, nil
}
