package core

// http_ledger_client.go provides the one concrete LedgerClient this repo
// ships: a JSON-over-HTTP transport against a local ledger gateway
// (ic-http-gateway or equivalent agent sidecar translating candid to JSON),
// the same bytes-over-http.Client shape webhook.go uses for delivery and
// rpc_pool.go uses for pooling. Encoding/signing candid envelopes directly
// is an external collaborator out of scope for this engine (spec.md §1);
// operators who need that point Endpoint at a sidecar that does it.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPLedgerClient implements LedgerClient by POSTing JSON request bodies
// to <endpoint>/<method> and decoding a JSON response, letting a sidecar
// agent process own the actual candid wire format.
type HTTPLedgerClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPLedgerClient builds a client against endpoint, using pool to
// obtain (and reuse) the underlying *http.Client for that endpoint.
func NewHTTPLedgerClient(endpoint string, pool *RPCPool) *HTTPLedgerClient {
	return &HTTPLedgerClient{endpoint: endpoint, client: pool.Client(endpoint)}
}

type blocksRequest struct {
	Start  uint64 `json:"start"`
	Length uint64 `json:"length"`
}

type blocksResponse struct {
	Blocks      []RawBlock `json:"blocks"`
	ChainLength uint64     `json:"chain_length"`
}

type icrc3BlocksResponse struct {
	Blocks      []Icrc3RawBlock `json:"blocks"`
	ChainLength uint64          `json:"chain_length"`
}

func (c *HTTPLedgerClient) call(ctx context.Context, method string, reqBody, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrLedgerCall, err)
	}
	url := c.endpoint + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrLedgerCall, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrLedgerCall, method, resp.StatusCode)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrLedgerCall, err)
	}
	return nil
}

// QueryBlocks implements ClassicLedgerClient.
func (c *HTTPLedgerClient) QueryBlocks(ctx context.Context, start, length uint64) ([]RawBlock, uint64, error) {
	var resp blocksResponse
	if err := c.call(ctx, "query_blocks", blocksRequest{Start: start, Length: length}, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Blocks, resp.ChainLength, nil
}

// GetBlocks implements Icrc3LedgerClient, decoding the raw ICRC-3 block
// shape (icrc3_get_blocks); normalization into the classic shape happens in
// the poller, not here (spec.md §4.4 step 3, core/icrc3.go).
func (c *HTTPLedgerClient) GetBlocks(ctx context.Context, start, length uint64) ([]Icrc3RawBlock, uint64, error) {
	var resp icrc3BlocksResponse
	if err := c.call(ctx, "icrc3_get_blocks", blocksRequest{Start: start, Length: length}, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Blocks, resp.ChainLength, nil
}

type blockRequest struct {
	BlockIndex uint64 `json:"block_index"`
}

// GetBlock implements ArchiveClient.
func (c *HTTPLedgerClient) GetBlock(ctx context.Context, blockIndex uint64) (RawBlock, error) {
	var block RawBlock
	if err := c.call(ctx, "get_block", blockRequest{BlockIndex: blockIndex}, &block); err != nil {
		return RawBlock{}, err
	}
	return block, nil
}

type transferRequest struct {
	From   Subaccount        `json:"from"`
	To     AccountIdentifier `json:"to"`
	Amount uint64            `json:"amount"`
	Fee    uint64            `json:"fee"`
	Memo   uint64            `json:"memo"`
}

type transferResponse struct {
	BlockIndex uint64 `json:"block_index"`
}

// Transfer implements TransferClient.
func (c *HTTPLedgerClient) Transfer(ctx context.Context, from Subaccount, to AccountIdentifier, amount, fee, memo uint64) (uint64, error) {
	var resp transferResponse
	req := transferRequest{From: from, To: to, Amount: amount, Fee: fee, Memo: memo}
	if err := c.call(ctx, "transfer", req, &resp); err != nil {
		return 0, err
	}
	return resp.BlockIndex, nil
}

type icrc1TransferRequest struct {
	From   Subaccount `json:"from"`
	To     Principal  `json:"to"`
	ToSub  Subaccount `json:"to_subaccount"`
	Amount uint64     `json:"amount"`
	Fee    uint64     `json:"fee"`
}

// Icrc1Transfer implements Icrc1TransferClient.
func (c *HTTPLedgerClient) Icrc1Transfer(ctx context.Context, from Subaccount, to Principal, toSub Subaccount, amount, fee uint64) (uint64, error) {
	var resp transferResponse
	req := icrc1TransferRequest{From: from, To: to, ToSub: toSub, Amount: amount, Fee: fee}
	if err := c.call(ctx, "icrc1_transfer", req, &resp); err != nil {
		return 0, err
	}
	return resp.BlockIndex, nil
}
