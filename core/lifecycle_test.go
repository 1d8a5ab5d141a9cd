package core

import (
	"context"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{
		Owner:        Principal{1, 2, 3},
		Store:        NewInMemoryStore(),
		PollInterval: 10 * time.Millisecond,
	})
}

func TestEngineInitClaimsCustodianOnce(t *testing.T) {
	e := newTestEngine(t)
	e.Init(Principal{9}, 0)
	if !e.Cells.Custodian().Equal(Principal{9}) {
		t.Fatalf("expected custodian to be claimed")
	}

	// A second Init from a different caller must not steal custody.
	e.Init(Principal{42}, 0)
	if !e.Cells.Custodian().Equal(Principal{9}) {
		t.Fatalf("expected custodian to remain the first claimant")
	}
}

func TestEnginePostUpgradeMigratesAndStartsScheduler(t *testing.T) {
	e := newTestEngine(t)
	e.Cells.SetLegacyNextBlock(77)
	client := &fakeLedgerClient{}
	e.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{1}, Client: client})

	ctx, cancel := context.WithCancel(context.Background())
	e.PostUpgrade(ctx)
	defer func() {
		cancel()
		e.Shutdown()
	}()

	cursor, ok := e.Cells.NextBlock(TokenICP)
	if !ok || cursor != 77 {
		t.Fatalf("expected ICP cursor migrated from legacy cell to 77, got %d (ok=%v)", cursor, ok)
	}
}

func TestEngineStatusReportsState(t *testing.T) {
	e := newTestEngine(t)
	e.Init(Principal{9}, 0)
	client := &fakeLedgerClient{}
	e.RegisterToken(TokenLedger{Token: TokenICP, Principal: Principal{1}, Client: client})
	_, _ = e.Registry.Issue("a")

	status := e.Status()
	if status.SubaccountCount != 1 {
		t.Fatalf("expected 1 subaccount, got %d", status.SubaccountCount)
	}
	if len(status.RegisteredTokens) != 1 || status.RegisteredTokens[0] != "ICP" {
		t.Fatalf("expected ICP registered, got %v", status.RegisteredTokens)
	}
}
