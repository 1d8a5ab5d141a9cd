package core

import "context"

// fakeLedgerClient is a minimal in-memory LedgerClient used across the
// poller, sweep and refund tests, in place of a real canister/HTTP
// transport (out of scope for this engine per spec.md §1).
type fakeLedgerClient struct {
	blocks        []RawBlock
	icrc3Blocks   []Icrc3RawBlock
	transfers     []fakeTransferCall
	nextBlockIdx  uint64
	transferErr   error
	icrc1Transfer error
}

type fakeTransferCall struct {
	from   Subaccount
	to     AccountIdentifier
	amount uint64
	fee    uint64
}

func (f *fakeLedgerClient) QueryBlocks(ctx context.Context, start, length uint64) ([]RawBlock, uint64, error) {
	return f.page(start, length)
}

func (f *fakeLedgerClient) GetBlocks(ctx context.Context, start, length uint64) ([]Icrc3RawBlock, uint64, error) {
	var out []Icrc3RawBlock
	for _, b := range f.icrc3Blocks {
		if b.BlockIndex >= start && uint64(len(out)) < length {
			out = append(out, b)
		}
	}
	return out, uint64(len(f.icrc3Blocks)), nil
}

func (f *fakeLedgerClient) page(start, length uint64) ([]RawBlock, uint64, error) {
	var out []RawBlock
	for _, b := range f.blocks {
		if b.BlockIndex >= start && uint64(len(out)) < length {
			out = append(out, b)
		}
	}
	return out, uint64(len(f.blocks)), nil
}

func (f *fakeLedgerClient) GetBlock(ctx context.Context, blockIndex uint64) (RawBlock, error) {
	for _, b := range f.blocks {
		if b.BlockIndex == blockIndex {
			return b, nil
		}
	}
	return RawBlock{}, ErrNotFound
}

func (f *fakeLedgerClient) Transfer(ctx context.Context, from Subaccount, to AccountIdentifier, amount, fee, memo uint64) (uint64, error) {
	if f.transferErr != nil {
		return 0, f.transferErr
	}
	f.transfers = append(f.transfers, fakeTransferCall{from: from, to: to, amount: amount, fee: fee})
	f.nextBlockIdx++
	return f.nextBlockIdx, nil
}

func (f *fakeLedgerClient) Icrc1Transfer(ctx context.Context, from Subaccount, to Principal, toSub Subaccount, amount, fee uint64) (uint64, error) {
	if f.icrc1Transfer != nil {
		return 0, f.icrc1Transfer
	}
	f.nextBlockIdx++
	return f.nextBlockIdx, nil
}
