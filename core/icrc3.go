package core

// icrc3.go normalizes ICRC-3 ledger blocks into the classic Transaction/
// Operation shape the poller's matcher and store already understand
// (spec.md §4.4 step 3). This is the engine's own normalization code, not
// the external ledger RPC wire format itself (spec.md §1): Icrc3LedgerClient
// hands back the raw op/from/to/amt/fee/memo/ts/phash fields a chain-key
// ledger's icrc3_get_blocks call carries, and this file is what flattens
// them the same way call_query_blocks's classic path already reads blocks.

import "fmt"

// Icrc3Account is the (owner, subaccount) pair an ICRC-3 block's from/to/
// spender fields carry. A nil Subaccount means the ledger omitted it,
// which this engine treats as the default all-zero subaccount.
type Icrc3Account struct {
	Owner      Principal
	Subaccount *Subaccount
}

// Icrc3RawBlock is a single ICRC-3 block entry exactly as
// icrc3_get_blocks reports it, before this engine folds it into the
// classic RawBlock shape the poller's matcher consumes.
type Icrc3RawBlock struct {
	BlockIndex    uint64
	Op            string // "xfer", "mint", "burn", "approve"
	From          *Icrc3Account
	To            *Icrc3Account
	Spender       *Icrc3Account
	Amount        uint64
	Fee           uint64
	Memo          uint64
	CreatedAtTime uint64
	Phash         []byte
}

// normalizeIcrc3Block maps an ICRC-3 block's op/from/to/amt/fee/memo/ts
// fields into the classic Transaction/Operation shape, fabricating a
// 32-byte classic account identifier for every (owner, subaccount) pair so
// the poller's address-match fast path has only one account shape to
// consider regardless of which ledger produced the block.
func normalizeIcrc3Block(blk Icrc3RawBlock) (RawBlock, error) {
	op, err := icrc3Operation(blk.Op)
	if err != nil {
		return RawBlock{}, err
	}

	xfer := Transfer{
		Amount:        blk.Amount,
		Fee:           blk.Fee,
		Memo:          blk.Memo,
		CreatedAtTime: blk.CreatedAtTime,
	}
	if blk.From != nil {
		xfer.From = icrc3AccountID(*blk.From)
	}
	if blk.To != nil {
		xfer.To = icrc3AccountID(*blk.To)
	}
	if blk.Spender != nil {
		id := icrc3AccountID(*blk.Spender)
		xfer.Spender = &id
	}

	return RawBlock{
		BlockIndex: blk.BlockIndex,
		Operation:  op,
		Transfer:   xfer,
	}, nil
}

// icrc3Operation maps an ICRC-3 block's tagged op string to this engine's
// Operation enum (spec.md §4.4 step 3).
func icrc3Operation(op string) (Operation, error) {
	switch op {
	case "xfer":
		return OpTransfer, nil
	case "mint":
		return OpMint, nil
	case "burn":
		return OpBurn, nil
	case "approve":
		return OpApprove, nil
	default:
		return OpUnknown, fmt.Errorf("%w: unknown icrc3 operation %q", ErrDecodeFailed, op)
	}
}

// icrc3AccountID fabricates a classic account identifier for an ICRC-3
// (owner, subaccount) pair, defaulting an absent subaccount to all-zero
// (spec.md §4.4 step 3's "for from without a subaccount, fabricate with
// the default subaccount").
func icrc3AccountID(acc Icrc3Account) AccountIdentifier {
	var sub Subaccount
	if acc.Subaccount != nil {
		sub = *acc.Subaccount
	}
	return NewAccountIdentifier(acc.Owner, sub)
}
