package core

// service.go exposes exactly the operation table spec.md §6 names as plain
// Go methods, the single surface the CLI (cmd/indexer) and the HTTP admin
// API (apiserver/) both call into — mirroring how CustodialNode exposes
// Deposit/Withdraw/Transfer/BalanceOf as the one surface its callers use.
//
// Authorization follows spec.md §4.10/§7: every state-changing operation
// requires the caller to equal the custodian on Mainnet (Local bypasses the
// check entirely, via Authorizer.RequireCustodian); set_custodian_principal
// additionally requires the caller to be a controller. ProcessArchivedBlock
// is the exception: it takes no caller and performs no custodian check.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

func secondsToDuration(seconds uint64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Service is the external operation surface over an Engine.
type Service struct {
	engine *Engine
}

// NewService wraps an Engine.
func NewService(engine *Engine) *Service {
	return &Service{engine: engine}
}

func (s *Service) requireCustodian(caller Principal) error {
	return s.engine.Authz.RequireCustodian(caller)
}

//---------------------------------------------------------------------
// Lifecycle
//---------------------------------------------------------------------

// SetInterval re-arms the poll scheduler at the given interval and records
// it in the in-memory interval cell that GetInterval reports.
func (s *Service) SetInterval(ctx context.Context, caller Principal, seconds uint64) (uint64, error) {
	if err := s.requireCustodian(caller); err != nil {
		return 0, err
	}
	s.engine.Cells.SetIntervalSeconds(seconds)
	s.engine.Scheduler.Reconfigure(ctx, secondsToDuration(seconds))
	return seconds, nil
}

// GetInterval reports the currently configured poll interval, in seconds.
func (s *Service) GetInterval() uint64 {
	return s.engine.Cells.IntervalSeconds()
}

// SetNextBlock writes the legacy single global polling cursor.
func (s *Service) SetNextBlock(ctx context.Context, caller Principal, block uint64) (uint64, error) {
	if err := s.requireCustodian(caller); err != nil {
		return 0, err
	}
	s.engine.Cells.SetLegacyNextBlock(block)
	return block, nil
}

// GetNextBlock reports the legacy single global polling cursor.
func (s *Service) GetNextBlock() uint64 {
	return s.engine.Cells.LegacyNextBlock()
}

// SetTokenNextBlock writes a single token's polling cursor.
func (s *Service) SetTokenNextBlock(ctx context.Context, caller Principal, token TokenType, block uint64) (uint64, error) {
	if err := s.requireCustodian(caller); err != nil {
		return 0, err
	}
	s.engine.Cells.SetNextBlock(token, block)
	return block, nil
}

// GetTokenNextBlock reports a single token's polling cursor.
func (s *Service) GetTokenNextBlock(token TokenType) (uint64, error) {
	block, ok := s.engine.Cells.NextBlock(token)
	if !ok {
		return 0, ErrNotFound
	}
	return block, nil
}

// TokenBlock pairs a registered token with its current polling cursor, the
// get_all_token_blocks result row.
type TokenBlock struct {
	Token TokenType
	Block uint64
}

// GetAllTokenBlocks reports every registered token's current polling
// cursor.
func (s *Service) GetAllTokenBlocks() []TokenBlock {
	tokens := s.engine.Poller.RegisteredTokens()
	out := make([]TokenBlock, 0, len(tokens))
	for _, t := range tokens {
		block, _ := s.engine.Cells.NextBlock(t)
		out = append(out, TokenBlock{Token: t, Block: block})
	}
	return out
}

// ResetTokenBlocks resets every per-token polling cursor to 1.
func (s *Service) ResetTokenBlocks(ctx context.Context, caller Principal) error {
	if err := s.requireCustodian(caller); err != nil {
		return err
	}
	s.engine.Cells.ResetTokenBlocks()
	return nil
}

// SetWebhookURL updates the webhook delivery endpoint, rejecting a value
// that does not parse as an absolute http(s) URL with a host (spec.md
// §4.8's set-time validation).
func (s *Service) SetWebhookURL(ctx context.Context, caller Principal, rawURL string) (string, error) {
	if err := s.requireCustodian(caller); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: webhook url must use http or https", ErrInvalidInput)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: webhook url must have a host", ErrInvalidInput)
	}
	s.engine.Cells.SetWebhookURL(rawURL)
	return rawURL, nil
}

// GetWebhookURL reports the currently configured webhook delivery endpoint.
func (s *Service) GetWebhookURL() string {
	return s.engine.Cells.WebhookURL()
}

// SetCustodianPrincipal reassigns the custodian account. Controller-gated
// in addition to the usual custodian check, per spec.md §4.10.
func (s *Service) SetCustodianPrincipal(ctx context.Context, caller, custodian Principal) error {
	if err := s.requireCustodian(caller); err != nil {
		return err
	}
	if err := s.engine.Authz.RequireController(ctx, caller); err != nil {
		return err
	}
	s.engine.Cells.SetCustodian(custodian)
	return nil
}

//---------------------------------------------------------------------
// Subaccounts
//---------------------------------------------------------------------

// AddSubaccount issues a new deposit subaccount for the caller.
func (s *Service) AddSubaccount(ctx context.Context, caller Principal, memo string) (RegisteredSubaccount, error) {
	if err := s.requireCustodian(caller); err != nil {
		return RegisteredSubaccount{}, err
	}
	return s.engine.Registry.Issue(memo)
}

// GetSubaccountid renders the textual deposit address for a previously
// issued nonce: the 64-hex account identifier for ICP, the ICRC-1 textual
// form for every other token.
func (s *Service) GetSubaccountid(nonce uint64, token TokenType) (string, error) {
	reg, err := s.engine.Registry.GetByNonce(nonce)
	if err != nil {
		return "", err
	}
	if token == TokenICP {
		return reg.AccountID.String(), nil
	}
	return IcrcAccountText(s.engine.Owner.String(), s.engine.Owner, reg.Subaccount), nil
}

// GetIcrcAccount renders the ICRC-1 textual account for a previously issued
// nonce.
func (s *Service) GetIcrcAccount(nonce uint64) (string, error) {
	reg, err := s.engine.Registry.GetByNonce(nonce)
	if err != nil {
		return "", err
	}
	return IcrcAccountText(s.engine.Owner.String(), s.engine.Owner, reg.Subaccount), nil
}

// ConvertToIcrcAccount resolves a registered hex account identifier back to
// its ICRC-1 textual form.
func (s *Service) ConvertToIcrcAccount(hexAccountID string) (string, error) {
	accountID, err := AccountIdentifierFromHex(hexAccountID)
	if err != nil {
		return "", err
	}
	reg, ok := s.engine.Registry.GetByAccountID(accountID)
	if !ok {
		return "", ErrNotFound
	}
	return IcrcAccountText(s.engine.Owner.String(), s.engine.Owner, reg.Subaccount), nil
}

// ValidateIcrcAccount reports whether text parses as a well-formed ICRC-1
// textual account with a matching checksum.
func (s *Service) ValidateIcrcAccount(text string) bool {
	_, _, _, err := IcrcAccountFromText(text)
	return err == nil
}

// GetSubaccountCount reports the number of subaccounts issued so far.
func (s *Service) GetSubaccountCount() int {
	return s.engine.Registry.Count()
}

//---------------------------------------------------------------------
// Tokens
//---------------------------------------------------------------------

// RegisterToken registers a new token ledger for polling and sweeping.
func (s *Service) RegisterToken(ctx context.Context, caller Principal, tl TokenLedger) error {
	if err := s.requireCustodian(caller); err != nil {
		return err
	}
	if _, ok := s.engine.ledgers[tl.Token]; ok {
		return ErrAlreadyRegistered
	}
	s.engine.RegisterToken(tl)
	return nil
}

// RegisteredToken pairs a registered token with its ledger principal text,
// the get_registered_tokens result row.
type RegisteredToken struct {
	Token     TokenType
	Principal string
}

// GetRegisteredTokens lists every token currently polled, with its ledger
// principal.
func (s *Service) GetRegisteredTokens() []RegisteredToken {
	ledgers := s.engine.Poller.RegisteredLedgers()
	out := make([]RegisteredToken, 0, len(ledgers))
	for _, tl := range ledgers {
		out = append(out, RegisteredToken{Token: tl.Token, Principal: tl.Principal.String()})
	}
	return out
}

// GetTransactionTokenType looks up a stored transaction's token type by its
// deterministic hash.
func (s *Service) GetTransactionTokenType(hash string) (TokenType, error) {
	tx, ok := s.engine.Store.GetByHash(hash)
	if !ok {
		return 0, ErrNotFound
	}
	return tx.TokenType, nil
}

// ProcessArchivedBlock fetches a single block through the token's
// registered ledger client and matches/stores it like a live block. It
// takes no caller and is not custodian-gated.
func (s *Service) ProcessArchivedBlock(ctx context.Context, token TokenType, blockIndex uint64) error {
	return s.engine.Poller.ProcessArchivedBlock(ctx, token, blockIndex)
}

//---------------------------------------------------------------------
// Transactions
//---------------------------------------------------------------------

// GetTransactionsCount reports the total number of stored transactions.
func (s *Service) GetTransactionsCount() int {
	return s.engine.Store.Count()
}

// GetOldestBlock reports the smallest stored block index, and false if no
// transaction has been stored yet.
func (s *Service) GetOldestBlock() (uint64, bool) {
	return s.engine.Store.OldestBlockIndex()
}

// ListTransactions returns the last min(len, limit) stored transactions in
// the store's key order (see TransactionStore.All), defaulting limit to 100.
func (s *Service) ListTransactions(limit int) []StoredTransaction {
	return s.engine.Store.List(limit)
}

// ClearTransactions removes every stored transaction whose block index is
// at most upToIndex, or whose created-at timestamp is at most upToTs
// (OR-combined; a nil bound is never satisfied, and upToTs == 0 is the
// "unset" sentinel that clears nothing via that predicate). Returns the
// surviving set.
func (s *Service) ClearTransactions(ctx context.Context, caller Principal, upToIndex *uint64, upToTs *uint64) ([]StoredTransaction, error) {
	if err := s.requireCustodian(caller); err != nil {
		return nil, err
	}
	return s.engine.Store.RangeClear(upToIndex, upToTs)
}

//---------------------------------------------------------------------
// Sweep / refund
//---------------------------------------------------------------------

// Sweep runs a guarded sweep batch for caller, refusing re-entrant calls
// from the same caller.
func (s *Service) Sweep(ctx context.Context, caller Principal) ([]SweepResult, error) {
	if err := s.requireCustodian(caller); err != nil {
		return nil, err
	}
	release, err := s.engine.Guard.Enter(caller.String())
	if err != nil {
		return nil, err
	}
	defer release()
	return s.engine.Sweep.Sweep(ctx)
}

// SweepByTokenType runs a guarded sweep batch restricted to a single token.
func (s *Service) SweepByTokenType(ctx context.Context, caller Principal, token TokenType) ([]SweepResult, error) {
	if err := s.requireCustodian(caller); err != nil {
		return nil, err
	}
	release, err := s.engine.Guard.Enter(caller.String())
	if err != nil {
		return nil, err
	}
	defer release()
	return s.engine.Sweep.SweepByTokenType(ctx, token)
}

// SingleSweep sweeps exactly one matched transaction by hash.
func (s *Service) SingleSweep(ctx context.Context, caller Principal, hash string) (SweepResult, error) {
	if err := s.requireCustodian(caller); err != nil {
		return SweepResult{}, err
	}
	release, err := s.engine.Guard.Enter(caller.String())
	if err != nil {
		return SweepResult{}, err
	}
	defer release()
	return s.engine.Sweep.SingleSweep(ctx, hash)
}

// SweepSubaccount sweeps an arbitrary decimal amount out of a registered
// subaccount, independent of any matched deposit record.
func (s *Service) SweepSubaccount(ctx context.Context, caller Principal, hexAccountID string, amount float64, token TokenType) (uint64, error) {
	if err := s.requireCustodian(caller); err != nil {
		return 0, err
	}
	release, err := s.engine.Guard.Enter(caller.String())
	if err != nil {
		return 0, err
	}
	defer release()
	return s.engine.Sweep.SweepSubaccount(ctx, hexAccountID, amount, token)
}

// Refund returns a single matched transaction, identified by its block
// index, to its originating account.
func (s *Service) Refund(ctx context.Context, caller Principal, index uint64) (SweepResult, error) {
	if err := s.requireCustodian(caller); err != nil {
		return SweepResult{}, err
	}
	release, err := s.engine.Guard.Enter(caller.String())
	if err != nil {
		return SweepResult{}, err
	}
	defer release()
	return s.engine.Refund.Refund(ctx, index)
}

// SetSweepFailed forces a transaction's status to FailedToSweep without
// attempting a transfer.
func (s *Service) SetSweepFailed(ctx context.Context, caller Principal, hash string) error {
	if err := s.requireCustodian(caller); err != nil {
		return err
	}
	return s.engine.Sweep.SetSweepFailed(hash)
}

//---------------------------------------------------------------------
// Diagnostics
//---------------------------------------------------------------------

// Status reports the engine's durable state summary.
func (s *Service) Status() Status {
	return s.engine.Status()
}

// canisterStatus is the JSON shape canister_status reports, the Go
// stand-in for the original's proxied management-canister call.
type canisterStatus struct {
	Network           string   `json:"network"`
	SubaccountCount   int      `json:"subaccount_count"`
	TransactionCount  int      `json:"transaction_count"`
	NextNonce         uint64   `json:"next_nonce"`
	Custodian         string   `json:"custodian"`
	WebhookURL        string   `json:"webhook_url"`
	RegisteredTokens  []string `json:"registered_tokens"`
	IntervalSeconds   uint64   `json:"interval_seconds"`
}

// CanisterStatus renders the engine's state summary as a JSON string, the
// Go stand-in for the original's proxied canister_status call.
func (s *Service) CanisterStatus() (string, error) {
	st := s.engine.Status()
	networkName := "Mainnet"
	if s.engine.Cells.Network() == NetworkLocal {
		networkName = "Local"
	}
	out := canisterStatus{
		Network:          networkName,
		SubaccountCount:  st.SubaccountCount,
		TransactionCount: st.TransactionCount,
		NextNonce:        st.NextNonce,
		Custodian:        st.Custodian,
		WebhookURL:       st.WebhookURL,
		RegisteredTokens: st.RegisteredTokens,
		IntervalSeconds:  s.engine.Cells.IntervalSeconds(),
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("canister_status: marshal: %w", err)
	}
	return string(raw), nil
}
