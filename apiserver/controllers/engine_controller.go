package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icplabs/subaccount-sweeper/apiserver/services"
	"github.com/icplabs/subaccount-sweeper/core"
)

// EngineController provides HTTP handlers over the sweeper's operation
// table, one handler per core.Service method.
type EngineController struct {
	svc *services.EngineService
}

// NewEngineController wraps an EngineService.
func NewEngineController(svc *services.EngineService) *EngineController {
	return &EngineController{svc: svc}
}

func parseCaller(r *http.Request) (core.Principal, string, bool) {
	caller := r.Header.Get("X-Caller-Principal")
	p, err := core.ParsePrincipal(caller)
	if err != nil {
		return nil, "", false
	}
	return p, caller, true
}

func (ec *EngineController) SetInterval(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Seconds uint64 }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	got, err := ec.svc.SetInterval(r.Context(), caller, req.Seconds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"seconds": got})
}

func (ec *EngineController) GetInterval(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]uint64{"seconds": ec.svc.GetInterval()})
}

func (ec *EngineController) SetNextBlock(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Block uint64 }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	got, err := ec.svc.SetNextBlock(r.Context(), caller, req.Block)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"block": got})
}

func (ec *EngineController) GetNextBlock(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]uint64{"block": ec.svc.GetNextBlock()})
}

func (ec *EngineController) SetTokenNextBlock(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct {
		Token uint64
		Block uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	got, err := ec.svc.SetTokenNextBlock(r.Context(), caller, core.TokenType(req.Token), req.Block)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"block": got})
}

func (ec *EngineController) GetTokenNextBlock(w http.ResponseWriter, r *http.Request) {
	token, err := core.ParseTokenType(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, err := ec.svc.GetTokenNextBlock(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"block": block})
}

func (ec *EngineController) GetAllTokenBlocks(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(ec.svc.GetAllTokenBlocks())
}

func (ec *EngineController) ResetTokenBlocks(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	if err := ec.svc.ResetTokenBlocks(r.Context(), caller); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ec *EngineController) SetWebhook(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ URL string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	got, err := ec.svc.SetWebhookURL(r.Context(), caller, req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"url": got})
}

func (ec *EngineController) GetWebhook(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"url": ec.svc.GetWebhookURL()})
}

func (ec *EngineController) SetCustodian(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Custodian string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	custodian, err := core.ParsePrincipal(req.Custodian)
	if err != nil {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	if err := ec.svc.SetCustodianPrincipal(r.Context(), caller, custodian); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ec *EngineController) AddSubaccount(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Memo string }
	_ = json.NewDecoder(r.Body).Decode(&req)
	rec, err := ec.svc.AddSubaccount(r.Context(), caller, req.Memo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(rec)
}

func (ec *EngineController) GetSubaccountid(w http.ResponseWriter, r *http.Request) {
	nonce, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		http.Error(w, "invalid nonce", http.StatusBadRequest)
		return
	}
	token, err := core.ParseTokenType(r.URL.Query().Get("token"))
	if err != nil {
		token = core.TokenICP
	}
	text, err := ec.svc.GetSubaccountid(nonce, token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"account": text})
}

func (ec *EngineController) GetIcrcAccount(w http.ResponseWriter, r *http.Request) {
	nonce, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		http.Error(w, "invalid nonce", http.StatusBadRequest)
		return
	}
	text, err := ec.svc.GetIcrcAccount(nonce)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"account": text})
}

func (ec *EngineController) ConvertToIcrcAccount(w http.ResponseWriter, r *http.Request) {
	var req struct{ HexAccountID string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text, err := ec.svc.ConvertToIcrcAccount(req.HexAccountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"account": text})
}

func (ec *EngineController) ValidateIcrcAccount(w http.ResponseWriter, r *http.Request) {
	var req struct{ Text string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]bool{"valid": ec.svc.ValidateIcrcAccount(req.Text)})
}

func (ec *EngineController) GetSubaccountCount(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]int{"count": ec.svc.GetSubaccountCount()})
}

func (ec *EngineController) GetRegisteredTokens(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(ec.svc.GetRegisteredTokens())
}

func (ec *EngineController) GetTransactionTokenType(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	tt, err := ec.svc.GetTransactionTokenType(hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"token_type": tt.String()})
}

func (ec *EngineController) GetTransactionsCount(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]int{"count": ec.svc.GetTransactionsCount()})
}

func (ec *EngineController) GetOldestBlock(w http.ResponseWriter, r *http.Request) {
	block, ok := ec.svc.GetOldestBlock()
	if !ok {
		json.NewEncoder(w).Encode(map[string]any{"block": nil})
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"block": block})
}

func (ec *EngineController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	json.NewEncoder(w).Encode(ec.svc.ListTransactions(limit))
}

func (ec *EngineController) ClearTransactions(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct {
		UpToIndex     *uint64
		UpToTimestamp *uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	surviving, err := ec.svc.ClearTransactions(r.Context(), caller, req.UpToIndex, req.UpToTimestamp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(surviving)
}

func (ec *EngineController) Sweep(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	results, err := ec.svc.Sweep(r.Context(), caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(results)
}

func (ec *EngineController) SweepByTokenType(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Token uint64 }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	results, err := ec.svc.SweepByTokenType(r.Context(), caller, core.TokenType(req.Token))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(results)
}

func (ec *EngineController) SingleSweep(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Hash string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := ec.svc.SingleSweep(r.Context(), caller, req.Hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (ec *EngineController) SweepSubaccount(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct {
		HexAccountID string
		Amount       float64
		Token        uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, err := ec.svc.SweepSubaccount(r.Context(), caller, req.HexAccountID, req.Amount, core.TokenType(req.Token))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]uint64{"block": block})
}

func (ec *EngineController) Refund(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct{ Index uint64 }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := ec.svc.Refund(r.Context(), caller, req.Index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (ec *EngineController) SetSweepFailed(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	hash := chi.URLParam(r, "hash")
	if err := ec.svc.SetSweepFailed(r.Context(), caller, hash); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ec *EngineController) RegisterToken(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := parseCaller(r)
	if !ok {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	var req struct {
		Token     uint64
		Principal string
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	principal, err := core.ParsePrincipal(req.Principal)
	if err != nil {
		http.Error(w, "invalid principal", http.StatusBadRequest)
		return
	}
	tl := core.TokenLedger{Token: core.TokenType(req.Token), Principal: principal}
	if err := ec.svc.RegisterToken(r.Context(), caller, tl); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ec *EngineController) ProcessArchivedBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token      uint64
		BlockIndex uint64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ec.svc.ProcessArchivedBlock(r.Context(), core.TokenType(req.Token), req.BlockIndex); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ec *EngineController) Status(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(ec.svc.Status())
}

func (ec *EngineController) CanisterStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := ec.svc.CanisterStatus()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(raw))
}
