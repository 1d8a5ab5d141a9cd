package services

// engine_service.go wraps core.Service the way the upstream wallet server's
// WalletService wraps core.HDWallet operations: a thin pass-through so the
// controllers depend on this package's shape, not core's, even though every
// method here is a direct delegation today.

import (
	"context"

	"github.com/icplabs/subaccount-sweeper/core"
)

// EngineService exposes the sweeper's operation table to HTTP controllers.
type EngineService struct {
	svc *core.Service
}

// NewEngineService wraps an already-constructed core.Service.
func NewEngineService(svc *core.Service) *EngineService {
	return &EngineService{svc: svc}
}

func (es *EngineService) SetInterval(ctx context.Context, caller core.Principal, seconds uint64) (uint64, error) {
	return es.svc.SetInterval(ctx, caller, seconds)
}

func (es *EngineService) GetInterval() uint64 {
	return es.svc.GetInterval()
}

func (es *EngineService) SetNextBlock(ctx context.Context, caller core.Principal, block uint64) (uint64, error) {
	return es.svc.SetNextBlock(ctx, caller, block)
}

func (es *EngineService) GetNextBlock() uint64 {
	return es.svc.GetNextBlock()
}

func (es *EngineService) SetTokenNextBlock(ctx context.Context, caller core.Principal, token core.TokenType, block uint64) (uint64, error) {
	return es.svc.SetTokenNextBlock(ctx, caller, token, block)
}

func (es *EngineService) GetTokenNextBlock(token core.TokenType) (uint64, error) {
	return es.svc.GetTokenNextBlock(token)
}

func (es *EngineService) GetAllTokenBlocks() []core.TokenBlock {
	return es.svc.GetAllTokenBlocks()
}

func (es *EngineService) ResetTokenBlocks(ctx context.Context, caller core.Principal) error {
	return es.svc.ResetTokenBlocks(ctx, caller)
}

func (es *EngineService) SetWebhookURL(ctx context.Context, caller core.Principal, url string) (string, error) {
	return es.svc.SetWebhookURL(ctx, caller, url)
}

func (es *EngineService) GetWebhookURL() string {
	return es.svc.GetWebhookURL()
}

func (es *EngineService) SetCustodianPrincipal(ctx context.Context, caller, custodian core.Principal) error {
	return es.svc.SetCustodianPrincipal(ctx, caller, custodian)
}

func (es *EngineService) AddSubaccount(ctx context.Context, caller core.Principal, memo string) (core.RegisteredSubaccount, error) {
	return es.svc.AddSubaccount(ctx, caller, memo)
}

func (es *EngineService) GetSubaccountid(nonce uint64, token core.TokenType) (string, error) {
	return es.svc.GetSubaccountid(nonce, token)
}

func (es *EngineService) GetIcrcAccount(nonce uint64) (string, error) {
	return es.svc.GetIcrcAccount(nonce)
}

func (es *EngineService) ConvertToIcrcAccount(hexAccountID string) (string, error) {
	return es.svc.ConvertToIcrcAccount(hexAccountID)
}

func (es *EngineService) ValidateIcrcAccount(text string) bool {
	return es.svc.ValidateIcrcAccount(text)
}

func (es *EngineService) GetSubaccountCount() int {
	return es.svc.GetSubaccountCount()
}

func (es *EngineService) RegisterToken(ctx context.Context, caller core.Principal, tl core.TokenLedger) error {
	return es.svc.RegisterToken(ctx, caller, tl)
}

func (es *EngineService) GetRegisteredTokens() []core.RegisteredToken {
	return es.svc.GetRegisteredTokens()
}

func (es *EngineService) GetTransactionTokenType(hash string) (core.TokenType, error) {
	return es.svc.GetTransactionTokenType(hash)
}

func (es *EngineService) ProcessArchivedBlock(ctx context.Context, token core.TokenType, blockIndex uint64) error {
	return es.svc.ProcessArchivedBlock(ctx, token, blockIndex)
}

func (es *EngineService) GetTransactionsCount() int {
	return es.svc.GetTransactionsCount()
}

func (es *EngineService) GetOldestBlock() (uint64, bool) {
	return es.svc.GetOldestBlock()
}

func (es *EngineService) ListTransactions(limit int) []core.StoredTransaction {
	return es.svc.ListTransactions(limit)
}

func (es *EngineService) ClearTransactions(ctx context.Context, caller core.Principal, upToIndex, upToTs *uint64) ([]core.StoredTransaction, error) {
	return es.svc.ClearTransactions(ctx, caller, upToIndex, upToTs)
}

func (es *EngineService) Sweep(ctx context.Context, caller core.Principal) ([]core.SweepResult, error) {
	return es.svc.Sweep(ctx, caller)
}

func (es *EngineService) SweepByTokenType(ctx context.Context, caller core.Principal, token core.TokenType) ([]core.SweepResult, error) {
	return es.svc.SweepByTokenType(ctx, caller, token)
}

func (es *EngineService) SingleSweep(ctx context.Context, caller core.Principal, hash string) (core.SweepResult, error) {
	return es.svc.SingleSweep(ctx, caller, hash)
}

func (es *EngineService) SweepSubaccount(ctx context.Context, caller core.Principal, hexAccountID string, amount float64, token core.TokenType) (uint64, error) {
	return es.svc.SweepSubaccount(ctx, caller, hexAccountID, amount, token)
}

func (es *EngineService) Refund(ctx context.Context, caller core.Principal, index uint64) (core.SweepResult, error) {
	return es.svc.Refund(ctx, caller, index)
}

func (es *EngineService) SetSweepFailed(ctx context.Context, caller core.Principal, hash string) error {
	return es.svc.SetSweepFailed(ctx, caller, hash)
}

func (es *EngineService) Status() core.Status {
	return es.svc.Status()
}

func (es *EngineService) CanisterStatus() (string, error) {
	return es.svc.CanisterStatus()
}
