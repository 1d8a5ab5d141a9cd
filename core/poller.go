package core

// poller.go walks each registered token ledger from its last-seen block,
// matches transfers against issued subaccounts with the address-match fast
// path, and persists hits to the TransactionStore. The per-token cursor
// loop is a direct port of call_query_blocks in the original canister,
// generalised from "always ICP" to a registered-token table.

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// archiveBlockWindow is the size of the static archive routing table the
// original canister uses: archive k covers blocks
// [archiveBlockWindow*k, archiveBlockWindow*(k+1)).
const archiveBlockWindow = 2_000_000

// TokenLedger bundles a registered token's ledger principal with the
// transport capability used to poll and move funds on it.
type TokenLedger struct {
	Token     TokenType
	Principal Principal
	Client    LedgerClient
}

// Poller advances each registered token ledger's cursor, matching blocks
// against the subaccount registry and persisting hits.
type Poller struct {
	mu       sync.Mutex
	registry *SubaccountRegistry
	store    *TransactionStore
	cells    *DurableCells
	ledgers  map[TokenType]TokenLedger
	logger   *log.Logger
	webhook  *WebhookNotifier

	// pageSize bounds how many blocks a single QueryBlocks/GetBlocks call
	// requests, mirroring the original's fixed page length.
	pageSize uint64
}

// NewPoller constructs a poller bound to the given registry, store, and
// durable cursor cells.
func NewPoller(registry *SubaccountRegistry, store *TransactionStore, cells *DurableCells, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Poller{
		registry: registry,
		store:    store,
		cells:    cells,
		ledgers:  make(map[TokenType]TokenLedger),
		logger:   logger,
		pageSize: 100,
	}
}

// RegisterToken adds or replaces a polled ledger, seeding its cursor if this
// is the first time the token has been seen: ICP starts from the legacy
// global cursor when that cell is set, every other token (and ICP when the
// legacy cell is 0) starts from 1.
func (p *Poller) RegisterToken(tl TokenLedger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledgers[tl.Token] = tl
	if _, ok := p.cells.NextBlock(tl.Token); !ok {
		start := uint64(1)
		if legacy := p.cells.LegacyNextBlock(); tl.Token == TokenICP && legacy > 0 {
			start = legacy
		}
		p.cells.SetNextBlock(tl.Token, start)
	}
}

// RegisteredTokens returns the set of tokens currently being polled.
func (p *Poller) RegisteredTokens() []TokenType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TokenType, 0, len(p.ledgers))
	for t := range p.ledgers {
		out = append(out, t)
	}
	return out
}

// RegisteredLedgers returns every registered token paired with its ledger
// principal, for the get_registered_tokens operation.
func (p *Poller) RegisteredLedgers() []TokenLedger {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TokenLedger, 0, len(p.ledgers))
	for _, tl := range p.ledgers {
		out = append(out, tl)
	}
	return out
}

// PollOnce advances every registered token ledger by at most one page of
// blocks, exactly as a single scheduler tick does in production.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	ledgers := make([]TokenLedger, 0, len(p.ledgers))
	for _, tl := range p.ledgers {
		ledgers = append(ledgers, tl)
	}
	p.mu.Unlock()

	var firstErr error
	for _, tl := range ledgers {
		if err := p.pollToken(ctx, tl); err != nil {
			p.logger.WithError(err).WithField("token", tl.Token).Error("poll: token ledger failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.cells.MarkPolled(time.Now())
	return firstErr
}

func (p *Poller) pollToken(ctx context.Context, tl TokenLedger) error {
	cursor, _ := p.cells.NextBlock(tl.Token)

	var (
		blocks  []RawBlock
		fetched int
		err     error
	)
	if tl.Token == TokenICP {
		blocks, _, err = tl.Client.QueryBlocks(ctx, cursor, p.pageSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerCall, err)
		}
		fetched = len(blocks)
	} else {
		var raw []Icrc3RawBlock
		raw, _, err = tl.Client.GetBlocks(ctx, cursor, p.pageSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerCall, err)
		}
		fetched = len(raw)
		blocks = make([]RawBlock, 0, len(raw))
		for _, r := range raw {
			blk, normErr := normalizeIcrc3Block(r)
			if normErr != nil {
				p.logger.WithError(normErr).WithField("token", tl.Token).
					WithField("block", r.BlockIndex).Warn("poll: failed to normalize icrc3 block")
				continue
			}
			blocks = append(blocks, blk)
		}
	}

	var notifyHash string
	for _, blk := range blocks {
		if hash, inserted := p.matchAndStore(tl, blk); inserted && notifyHash == "" {
			notifyHash = hash
		}
	}
	if notifyHash != "" && p.webhook != nil {
		p.webhook.Notify(ctx, WebhookPayload{TxHash: notifyHash})
	}

	// The cursor advances past every block the ledger returned this page,
	// whether or not it matched a registered subaccount or even normalized
	// cleanly (spec.md §4.4 step 6: "unconditionally advance cursor ...
	// whether matched or not").
	next := cursor + uint64(fetched)
	if next > cursor {
		p.cells.SetNextBlock(tl.Token, next)
	}
	// The original canister also advances the legacy, single global
	// NEXT_BLOCK cell, but only for ICP, to remain readable by tooling
	// that predates per-token cursors.
	if tl.Token == TokenICP {
		p.cells.SetLegacyNextBlock(next)
	}
	return nil
}

// matchAndStore checks whether blk touches a registered subaccount and, if
// so, inserts it (idempotently — a re-observed block never clobbers a
// status a prior cycle already advanced). Returns the transaction's hash
// and whether this call actually inserted a new record.
func (p *Poller) matchAndStore(tl TokenLedger, blk RawBlock) (string, bool) {
	reg, ok := p.matchedRegistration(blk)
	if !ok {
		return "", false
	}

	tx := StoredTransaction{
		TokenType:   tl.Token,
		TokenLedger: tl.Principal,
		BlockIndex:  blk.BlockIndex,
		Operation:   blk.Operation,
		Transfer:    blk.Transfer,
		Subaccount:  reg.Subaccount,
		SweepStatus: NotSwept,
	}
	tx.Hash = TransactionHash(tx)

	inserted, err := p.store.InsertIfAbsent(tx)
	if err != nil {
		p.logger.WithError(err).WithField("block", blk.BlockIndex).Error("poll: failed to persist matched transaction")
		return "", false
	}
	return tx.Hash, inserted
}

// matchedRegistration applies spec.md §4.4 step 4's per-operation
// address-match fast path: which account of the operation must hit the
// registry before the block is considered worth storing, and returns the
// registration the block matched on.
func (p *Poller) matchedRegistration(blk RawBlock) (RegisteredSubaccount, bool) {
	var candidates []AccountIdentifier
	switch blk.Operation {
	case OpTransfer:
		candidates = []AccountIdentifier{blk.Transfer.To}
	case OpMint:
		candidates = []AccountIdentifier{blk.Transfer.To}
	case OpBurn, OpApprove:
		candidates = []AccountIdentifier{blk.Transfer.From}
	default:
		return RegisteredSubaccount{}, false
	}
	if blk.Operation != OpMint && blk.Transfer.Spender != nil {
		candidates = append(candidates, *blk.Transfer.Spender)
	}

	for _, id := range candidates {
		if reg, ok := p.registry.Lookup(id); ok {
			return reg, true
		}
	}
	return RegisteredSubaccount{}, false
}

// ProcessArchivedBlock fetches a single block through the token's own
// registered ledger client (its GetBlock call) and matches/stores it
// exactly like a live block. No separate archive canister is selected: the
// routing-table slot [archiveBlockWindow*k, archiveBlockWindow*(k+1)) that
// covers blockIndex is only computed for the log line.
func (p *Poller) ProcessArchivedBlock(ctx context.Context, token TokenType, blockIndex uint64) error {
	p.mu.Lock()
	tl, ok := p.ledgers[token]
	p.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	blk, err := tl.Client.GetBlock(ctx, blockIndex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCall, err)
	}
	p.logger.WithField("archive_slot", archiveIndex(blockIndex)).WithField("block", blockIndex).
		Debug("poll: processed archived block")
	p.matchAndStore(tl, blk)
	return nil
}

// SetWebhook wires a notifier into the poller so each tick fires at most
// one best-effort notification per token, carrying the first newly
// inserted transaction's hash (spec.md §4.4 step 7 / §4.8).
func (p *Poller) SetWebhook(w *WebhookNotifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.webhook = w
}

// archiveIndex returns which archive canister (by routing-table slot) owns
// blockIndex.
func archiveIndex(blockIndex uint64) uint64 {
	return blockIndex / archiveBlockWindow
}

// DurableCells holds the small pieces of engine state kept outside of the
// transaction store and registry: each token's next-block cursor, the
// legacy single-cursor cell kept for backward compatibility (spec.md §9
// migration note), the custodian, webhook URL, network and poll interval.
// The cells live in memory only and are not written to the KVStore, so
// they do not survive a process restart.
type DurableCells struct {
	mu              sync.Mutex
	perTokenCursors map[TokenType]uint64
	legacyNextBlock uint64
	custodian       Principal
	webhookURL      string
	lastPoll        time.Time
	network         Network
	intervalSeconds uint64
}

// NewDurableCells constructs an empty cell set, defaulting to the Mainnet
// network and the 5-second poll interval spec.md §4.9 names as default.
func NewDurableCells() *DurableCells {
	return &DurableCells{perTokenCursors: make(map[TokenType]uint64), intervalSeconds: 5}
}

// Network reports the configured network, Mainnet gating privileged
// operations behind the custodian check and Local bypassing it entirely.
func (c *DurableCells) Network() Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.network
}

// SetNetwork sets the connected network cell (spec.md §3 durable cells).
func (c *DurableCells) SetNetwork(n Network) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = n
}

// IntervalSeconds reports the currently configured scheduler interval.
func (c *DurableCells) IntervalSeconds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intervalSeconds
}

// SetIntervalSeconds persists a new scheduler interval.
func (c *DurableCells) SetIntervalSeconds(s uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intervalSeconds = s
}

func (c *DurableCells) NextBlock(token TokenType) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.perTokenCursors[token]
	return v, ok
}

func (c *DurableCells) SetNextBlock(token TokenType, block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perTokenCursors[token] = block
}

func (c *DurableCells) ResetTokenBlocks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t := range c.perTokenCursors {
		c.perTokenCursors[t] = 1
	}
}

// MarkPolled records the time of the most recently completed poll cycle.
func (c *DurableCells) MarkPolled(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPoll = t
}

// LastPolledAt reports the time of the most recently completed poll cycle,
// the zero time if polling has never run.
func (c *DurableCells) LastPolledAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPoll
}

func (c *DurableCells) LegacyNextBlock() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.legacyNextBlock
}

func (c *DurableCells) SetLegacyNextBlock(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.legacyNextBlock = block
}

// MigrateFromLegacy seeds ICP's per-token cursor from the legacy cell, and
// every other already-registered token to 1, matching the original
// canister's one-time migration on the first post-upgrade that introduces
// per-token cursors.
func (c *DurableCells) MigrateFromLegacy(registered []TokenType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.perTokenCursors) != 0 {
		return
	}
	for _, t := range registered {
		if t == TokenICP {
			c.perTokenCursors[t] = c.legacyNextBlock
		} else {
			c.perTokenCursors[t] = 1
		}
	}
}

func (c *DurableCells) Custodian() Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custodian
}

func (c *DurableCells) SetCustodian(p Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custodian = p
}

func (c *DurableCells) WebhookURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webhookURL
}

func (c *DurableCells) SetWebhookURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.webhookURL = url
}
