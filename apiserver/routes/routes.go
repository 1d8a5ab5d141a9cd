package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/icplabs/subaccount-sweeper/apiserver/controllers"
	"github.com/icplabs/subaccount-sweeper/apiserver/middleware"
)

// Register mounts the admin API's handlers onto r.
func Register(r chi.Router, ec *controllers.EngineController) {
	r.Use(middleware.Logger)

	r.Route("/api/interval", func(r chi.Router) {
		r.Get("/", ec.GetInterval)
		r.Put("/", ec.SetInterval)
	})
	r.Route("/api/next-block", func(r chi.Router) {
		r.Get("/", ec.GetNextBlock)
		r.Put("/", ec.SetNextBlock)
	})
	r.Route("/api/tokens", func(r chi.Router) {
		r.Get("/", ec.GetRegisteredTokens)
		r.Post("/", ec.RegisterToken)
		r.Post("/reset-blocks", ec.ResetTokenBlocks)
		r.Get("/blocks", ec.GetAllTokenBlocks)
		r.Get("/{token}/block", ec.GetTokenNextBlock)
		r.Put("/{token}/block", ec.SetTokenNextBlock)
	})
	r.Route("/api/webhook", func(r chi.Router) {
		r.Get("/", ec.GetWebhook)
		r.Put("/", ec.SetWebhook)
	})
	r.Route("/api/custodian", func(r chi.Router) {
		r.Put("/", ec.SetCustodian)
	})
	r.Route("/api/subaccounts", func(r chi.Router) {
		r.Post("/", ec.AddSubaccount)
		r.Get("/count", ec.GetSubaccountCount)
		r.Get("/{nonce}", ec.GetSubaccountid)
		r.Get("/{nonce}/icrc-account", ec.GetIcrcAccount)
	})
	r.Route("/api/icrc-account", func(r chi.Router) {
		r.Post("/convert", ec.ConvertToIcrcAccount)
		r.Post("/validate", ec.ValidateIcrcAccount)
	})
	r.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", ec.ListTransactions)
		r.Get("/count", ec.GetTransactionsCount)
		r.Get("/oldest-block", ec.GetOldestBlock)
		r.Post("/clear", ec.ClearTransactions)
		r.Get("/{hash}/token-type", ec.GetTransactionTokenType)
		r.Post("/{hash}/set-sweep-failed", ec.SetSweepFailed)
		r.Post("/process-archived-block", ec.ProcessArchivedBlock)
	})
	r.Route("/api/sweep", func(r chi.Router) {
		r.Post("/", ec.Sweep)
		r.Post("/single", ec.SingleSweep)
		r.Post("/by-token", ec.SweepByTokenType)
		r.Post("/subaccount", ec.SweepSubaccount)
	})
	r.Post("/api/refund", ec.Refund)
	r.Get("/api/status", ec.Status)
	r.Get("/api/canister-status", ec.CanisterStatus)
}
