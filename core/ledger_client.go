package core

// ledger_client.go declares the capability interfaces the poller, sweep
// planner and refund planner depend on, rather than a concrete wire
// transport — the ledger RPC format itself is an external collaborator out
// of scope for this engine (spec.md §1). Tests substitute fakes for these
// interfaces; a production binary wires in a concrete candid/HTTP client.

import "context"

// RawBlock is a single ledger block entry as decoded by a concrete
// transport, before this engine's address-match fast path filters it.
type RawBlock struct {
	BlockIndex uint64
	Operation  Operation
	Transfer   Transfer
}

// ClassicLedgerClient exposes the legacy ICP ledger's query_blocks call.
type ClassicLedgerClient interface {
	QueryBlocks(ctx context.Context, start uint64, length uint64) ([]RawBlock, uint64, error)
}

// Icrc3LedgerClient exposes the icrc3_get_blocks call used by chain-key
// tokens (ckBTC, ckUSDC, ckUSDT), returning the raw ICRC-3 block shape.
// The poller — not this transport — normalizes these into the classic
// RawBlock shape (spec.md §4.4 step 3, core/icrc3.go).
type Icrc3LedgerClient interface {
	GetBlocks(ctx context.Context, start uint64, length uint64) ([]Icrc3RawBlock, uint64, error)
}

// ArchiveClient fetches a single block from an archive canister, used by
// ProcessArchivedBlock when a block index has rolled off the live ledger.
type ArchiveClient interface {
	GetBlock(ctx context.Context, blockIndex uint64) (RawBlock, error)
}

// TransferClient issues classic ICP transfer calls.
type TransferClient interface {
	Transfer(ctx context.Context, from Subaccount, to AccountIdentifier, amount uint64, fee uint64, memo uint64) (uint64, error)
}

// Icrc1TransferClient issues ICRC-1 transfer calls for chain-key tokens.
type Icrc1TransferClient interface {
	Icrc1Transfer(ctx context.Context, from Subaccount, to Principal, toSub Subaccount, amount uint64, fee uint64) (uint64, error)
}

// LedgerClient bundles every transport capability a single registered
// token ledger must provide. A concrete implementation has to provide all
// of the methods; for capabilities its token does not use (e.g.
// Icrc1Transfer on a classic ICP ledger) it may return an error.
type LedgerClient interface {
	ClassicLedgerClient
	Icrc3LedgerClient
	ArchiveClient
	TransferClient
	Icrc1TransferClient
}
