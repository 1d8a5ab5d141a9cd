package core

// sweep.go plans and executes moving swept-eligible deposits from their
// per-user subaccount to the custodian account. The balance-checked debit
// pattern is adapted from custodial_node.go's Withdraw/Transfer (verify
// funds, then call the ledger, then update status) generalised from an
// in-memory ledger to the real LedgerClient transport. Fan-out across
// multiple transfers is bounded by a buffered-channel semaphore of
// maxConcurrentSweeps slots, with a completion channel collecting each
// transfer's index as it finishes.

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxConcurrentSweeps bounds the number of in-flight transfer calls a
// single Sweep/Refund invocation may issue at once.
const maxConcurrentSweeps = 100

// sweepWindow caps how many not-yet-swept transactions a single Sweep call
// considers: the last sweepWindow of them in (token, block index) order
// (see tailWindow). Insertion order itself is not recorded, so across
// tokens this is not the last sweepWindow inserted.
const sweepWindow = 100

// FeeTable holds the ledger transfer fee, in the token's smallest unit, for
// each supported token. Isolated here so a future metadata-driven fee
// lookup is a one-function change rather than a scattered constant.
var FeeTable = map[TokenType]uint64{
	TokenICP:    10_000,
	TokenCkUSDC: 10_000,
	TokenCkUSDT: 10_000,
	TokenCkBTC:  10,
}

// SweepResult is the per-transaction outcome of a sweep/refund attempt,
// formatted the way the original canister's sweep/refund/single_sweep
// functions build their human-readable result strings.
type SweepResult struct {
	Hash    string
	Ok      bool
	Detail  string
}

func (r SweepResult) String() string {
	if r.Ok {
		return fmt.Sprintf("tx: %s, sweep: %s", r.Hash, r.Detail)
	}
	return fmt.Sprintf("tx: %s, sweep: failed (%s)", r.Hash, r.Detail)
}

// SweepExecutor moves funds from matched deposit subaccounts to the
// custodian account.
type SweepExecutor struct {
	store    *TransactionStore
	registry *SubaccountRegistry
	ledgers  map[TokenType]TokenLedger
	cells    *DurableCells
	logger   *log.Logger
}

// NewSweepExecutor constructs an executor over the given store, registry,
// registered ledgers and durable cells.
func NewSweepExecutor(store *TransactionStore, registry *SubaccountRegistry, ledgers map[TokenType]TokenLedger, cells *DurableCells, logger *log.Logger) *SweepExecutor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SweepExecutor{store: store, registry: registry, ledgers: ledgers, cells: cells, logger: logger}
}

// Sweep moves every not-yet-swept transaction (at most sweepWindow of them,
// the tail in (token, block index) order) to the custodian account.
func (e *SweepExecutor) Sweep(ctx context.Context) ([]SweepResult, error) {
	batchID := uuid.New().String()
	pending := e.store.ListByStatus(NotSwept)
	pending = tailWindow(pending, sweepWindow)

	e.logger.WithField("batch", batchID).WithField("count", len(pending)).Info("sweep: starting batch")
	return e.execute(ctx, pending)
}

// SingleSweep sweeps exactly one transaction, identified by its
// deterministic hash.
func (e *SweepExecutor) SingleSweep(ctx context.Context, hash string) (SweepResult, error) {
	tx, ok := e.store.GetByHash(hash)
	if !ok {
		return SweepResult{}, ErrNotFound
	}
	results, err := e.execute(ctx, []StoredTransaction{tx})
	if err != nil {
		return SweepResult{}, err
	}
	return results[0], nil
}

// SweepByTokenType sweeps every not-yet-swept transaction for a single
// token, ignoring the global window.
func (e *SweepExecutor) SweepByTokenType(ctx context.Context, token TokenType) ([]SweepResult, error) {
	var pending []StoredTransaction
	for _, tx := range e.store.ListByStatus(NotSwept) {
		if tx.TokenType == token {
			pending = append(pending, tx)
		}
	}
	return e.execute(ctx, pending)
}

// SetSweepFailed force-marks a transaction FailedToSweep without attempting
// a transfer, the manual-recovery escape hatch the original canister
// exposes for operator intervention.
func (e *SweepExecutor) SetSweepFailed(hash string) error {
	tx, ok := e.store.GetByHash(hash)
	if !ok {
		return ErrNotFound
	}
	key := TxKey{Token: tx.TokenType, BlockIndex: tx.BlockIndex}
	return e.store.SetSweepStatus(key, FailedToSweep, nowUnix())
}

// SweepSubaccount sweeps an arbitrary amount (denominated in whole tokens,
// converted to e8s by round(amount*1e8)) out of a registered subaccount
// identified by its hex account id, independent of any matched deposit
// record. Rejects a negative amount or one whose e8s conversion overflows
// u64, per spec.md §8's boundary behaviour for sweep_subaccount.
func (e *SweepExecutor) SweepSubaccount(ctx context.Context, hexAccountID string, amount float64, token TokenType) (uint64, error) {
	if amount < 0 || amount*1e8 > math.MaxUint64 {
		return 0, fmt.Errorf("%w: amount out of range", ErrInvalidInput)
	}
	e8s := uint64(math.Round(amount * 1e8))

	accountID, err := AccountIdentifierFromHex(hexAccountID)
	if err != nil {
		return 0, err
	}
	reg, ok := e.registry.GetByAccountID(accountID)
	if !ok {
		return 0, ErrNotFound
	}

	fee := FeeTable[token]
	if e8s <= fee {
		return 0, fmt.Errorf("%w: amount does not cover fee", ErrInvalidInput)
	}
	netAmount := e8s - fee

	tl, ok := e.ledgers[token]
	if !ok {
		return 0, fmt.Errorf("%w: no ledger registered for token", ErrInvalidInput)
	}

	custodian := e.cells.Custodian()
	if token == TokenICP {
		to := NewAccountIdentifier(custodian, Subaccount{})
		return tl.Client.Transfer(ctx, reg.Subaccount, to, netAmount, fee, 0)
	}
	return tl.Client.Icrc1Transfer(ctx, reg.Subaccount, custodian, Subaccount{}, netAmount, fee)
}

func (e *SweepExecutor) execute(ctx context.Context, txs []StoredTransaction) ([]SweepResult, error) {
	results := make([]SweepResult, len(txs))

	sem := make(chan struct{}, maxConcurrentSweeps)
	done := make(chan int, len(txs))

	for i, tx := range txs {
		sem <- struct{}{}
		go func(i int, tx StoredTransaction) {
			defer func() { <-sem; done <- i }()
			results[i] = e.sweepOne(ctx, tx)
		}(i, tx)
	}
	for range txs {
		<-done
	}
	return results, nil
}

func (e *SweepExecutor) sweepOne(ctx context.Context, tx StoredTransaction) SweepResult {
	key := TxKey{Token: tx.TokenType, BlockIndex: tx.BlockIndex}

	if tx.Operation != OpTransfer {
		return SweepResult{Hash: tx.Hash, Ok: false, Detail: ErrNotTransfer.Error()}
	}

	fee := FeeTable[tx.TokenType]
	if tx.Transfer.Amount <= fee {
		_ = e.store.SetSweepStatus(key, FailedToSweep, nowUnix())
		return SweepResult{Hash: tx.Hash, Ok: false, Detail: ErrInvalidInput.Error() + ": amount does not cover fee"}
	}
	netAmount := tx.Transfer.Amount - fee

	tl, ok := e.ledgers[tx.TokenType]
	if !ok {
		return SweepResult{Hash: tx.Hash, Ok: false, Detail: "no ledger registered for token"}
	}

	custodian := e.cells.Custodian()
	var (
		block uint64
		err   error
	)
	if tx.TokenType == TokenICP {
		to := NewAccountIdentifier(custodian, Subaccount{})
		block, err = tl.Client.Transfer(ctx, tx.Subaccount, to, netAmount, fee, tx.Transfer.Memo)
	} else {
		block, err = tl.Client.Icrc1Transfer(ctx, tx.Subaccount, custodian, Subaccount{}, netAmount, fee)
	}
	if err != nil {
		_ = e.store.SetSweepStatus(key, FailedToSweep, nowUnix())
		return SweepResult{Hash: tx.Hash, Ok: false, Detail: fmt.Sprintf("%v", err)}
	}

	if err := e.store.SetSweepStatus(key, Swept, nowUnix()); err != nil {
		return SweepResult{Hash: tx.Hash, Ok: false, Detail: fmt.Sprintf("sweep ok (block %d) but status_update failed: %v", block, err)}
	}
	return SweepResult{Hash: tx.Hash, Ok: true, Detail: fmt.Sprintf("ok (block %d), status_update: ok", block)}
}

// tailWindow sorts txs in place by token type and then by numeric block
// index (stable, so equal keys keep their relative order) and returns the
// last n of them. Within one token this is the order blocks were polled in;
// across tokens the order is by token type, not by insertion.
func tailWindow(txs []StoredTransaction, n int) []StoredTransaction {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].TokenType != txs[j].TokenType {
			return txs[i].TokenType < txs[j].TokenType
		}
		return txs[i].BlockIndex < txs[j].BlockIndex
	})
	if len(txs) <= n {
		return txs
	}
	return txs[len(txs)-n:]
}
