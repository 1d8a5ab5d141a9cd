package core

// lifecycle.go wires the registry, store, poller, sweep/refund executors,
// webhook notifier and scheduler into a single Engine, and implements the
// init/post-upgrade lifecycle the original canister's init()/post_upgrade()
// pair describes: Init claims an unset custodian; PostUpgrade seeds
// per-token cursors from the legacy cell and starts the poll timer.

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Engine bundles every component operator tooling and the CLI/HTTP surface
// need, following the "one struct holds everything" shape CustodialNode
// uses for its net+ledger+store trio.
type Engine struct {
	Registry  *SubaccountRegistry
	Store     *TransactionStore
	Cells     *DurableCells
	Poller    *Poller
	Sweep     *SweepExecutor
	Refund    *RefundExecutor
	Webhook   *WebhookNotifier
	Scheduler *Scheduler
	Guard     *CallerGuard
	Authz     *Authorizer
	Owner     Principal

	ledgers map[TokenType]TokenLedger
	logger  *log.Logger
}

// EngineConfig carries the inputs needed to construct an Engine.
type EngineConfig struct {
	Owner        Principal
	Network      Network
	Store        KVStore
	Controller   ControllerChecker
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       *log.Logger
}

// NewEngine constructs a fully wired Engine. It does not register any
// token ledgers or start the scheduler; callers do that via RegisterToken
// and Start once they have concrete LedgerClient implementations.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	registry := NewSubaccountRegistry(cfg.Store, cfg.Owner)
	store := NewTransactionStore(cfg.Store)
	cells := NewDurableCells()
	cells.SetNetwork(cfg.Network)
	poller := NewPoller(registry, store, cells, logger)
	webhook := NewWebhookNotifier(cfg.HTTPClient, cells, logger)
	poller.SetWebhook(webhook)
	authz := NewAuthorizer(cfg.Controller, cells)
	guard := NewCallerGuard()

	e := &Engine{
		Registry: registry,
		Store:    store,
		Cells:    cells,
		Poller:   poller,
		Webhook:  webhook,
		Guard:    guard,
		Authz:    authz,
		Owner:    cfg.Owner,
		ledgers:  make(map[TokenType]TokenLedger),
		logger:   logger,
	}

	e.Scheduler = NewScheduler(cfg.PollInterval, e.tick, logger)
	cells.SetIntervalSeconds(uint64(e.Scheduler.interval / time.Second))
	return e
}

// RegisterToken registers a ledger client for polling and makes it
// available to the sweep/refund executors, rebuilding those executors'
// ledger table so it always reflects everything registered so far.
func (e *Engine) RegisterToken(tl TokenLedger) {
	e.Poller.RegisterToken(tl)
	e.ledgers[tl.Token] = tl

	e.Sweep = NewSweepExecutor(e.Store, e.Registry, e.ledgers, e.Cells, e.logger)
	e.Refund = NewRefundExecutor(e.Sweep)
}

// Init runs the one-time startup sequence: claim the caller as custodian
// if none is set yet and seed the registry's nonce counter from
// startingNonce, matching the original canister's
// init(network, interval_seconds, starting_nonce, ...) behaviour
// (spec.md §4.10, §6). Both steps are idempotent no-ops once the engine has
// already been initialized.
func (e *Engine) Init(caller Principal, startingNonce uint64) {
	if e.Cells.Custodian() == nil {
		e.Cells.SetCustodian(caller)
		e.logger.WithField("custodian", caller.String()).Info("engine: claimed initial custodian")
	}
	e.Registry.SeedNonce(startingNonce)
}

// PostUpgrade runs the legacy-cursor migration and starts the poll timer at
// the interval the Engine was constructed with (EngineConfig.PollInterval,
// or defaultPollInterval of 500 seconds when that is zero). It does not
// read the interval cell and does not claim a custodian; Init does that.
func (e *Engine) PostUpgrade(ctx context.Context) {
	e.Cells.MigrateFromLegacy(e.Poller.RegisteredTokens())
	e.Scheduler.Start(ctx)
	e.logger.Info("engine: post-upgrade complete, scheduler re-armed")
}

// Shutdown stops the scheduler.
func (e *Engine) Shutdown() {
	e.Scheduler.Stop()
}

func (e *Engine) tick(ctx context.Context) {
	if err := e.Poller.PollOnce(ctx); err != nil {
		e.logger.WithError(err).Warn("engine: poll tick failed")
	}
}

// Status summarises the engine's durable state for the Status() operation
// and operator diagnostics, the Go stand-in for the original canister's
// proxied canister_status call.
type Status struct {
	Network           string
	SubaccountCount   int
	TransactionCount  int
	NextNonce         uint64
	Custodian         string
	WebhookURL        string
	RegisteredTokens  []string
	LastPolledAt      time.Time
}

// Status reports the engine's current durable state.
func (e *Engine) Status() Status {
	tokens := e.Poller.RegisteredTokens()
	names := make([]string, len(tokens))
	for i, t := range tokens {
		names[i] = t.String()
	}
	network := "Mainnet"
	if e.Cells.Network() == NetworkLocal {
		network = "Local"
	}
	return Status{
		Network:          network,
		SubaccountCount:  e.Registry.Count(),
		TransactionCount: e.Store.Count(),
		NextNonce:        e.Registry.NextNonce(),
		Custodian:        e.Cells.Custodian().String(),
		WebhookURL:       e.Cells.WebhookURL(),
		RegisteredTokens: names,
		LastPolledAt:     e.Cells.LastPolledAt(),
	}
}

func nowUnix() int64 {
	return time.Now().Unix()
}
