// Package cli wires the sweeper engine into cobra subcommands, the same
// singleton-plus-PersistentPreRunE shape the upstream CLI package uses for
// its node commands (see CustodialCmd's custodialInit).
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/icplabs/subaccount-sweeper/core"
	"github.com/icplabs/subaccount-sweeper/pkg/config"
)

var (
	svc  *core.Service
	pool *core.RPCPool
)

func engineInit(cmd *cobra.Command, _ []string) error {
	if svc != nil {
		return nil
	}

	env, _ := cmd.Flags().GetString("env")
	if env == "" {
		env, _ = cmd.Root().PersistentFlags().GetString("env")
	}
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	owner, err := core.ParsePrincipal(cfg.Ledger.OwnerPrincipal)
	if err != nil {
		return fmt.Errorf("parse owner principal: %w", err)
	}

	store, err := core.NewFileKVStore(cfg.Storage.WALPath, nil)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	interval := time.Duration(cfg.Ledger.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 500 * time.Second
	}

	engine := core.NewEngine(core.EngineConfig{
		Owner:        owner,
		Network:      parseNetwork(cfg.Network.Name),
		Store:        store,
		PollInterval: interval,
	})
	initCaller := owner
	if cfg.Ledger.CustodianPrincipal != "" {
		custodian, err := core.ParsePrincipal(cfg.Ledger.CustodianPrincipal)
		if err != nil {
			return fmt.Errorf("parse custodian principal: %w", err)
		}
		initCaller = custodian
	}
	engine.Init(initCaller, cfg.Ledger.StartingNonce)
	if cfg.Webhook.URL != "" {
		engine.Cells.SetWebhookURL(cfg.Webhook.URL)
	}

	pool = core.NewRPCPool(5 * time.Minute)
	for _, tc := range cfg.Ledger.Tokens {
		token, err := core.ParseTokenType(tc.Token)
		if err != nil {
			return err
		}
		principal, err := core.ParsePrincipal(tc.Principal)
		if err != nil {
			return fmt.Errorf("parse %s principal: %w", tc.Token, err)
		}
		engine.RegisterToken(core.TokenLedger{
			Token:     token,
			Principal: principal,
			Client:    core.NewHTTPLedgerClient(tc.Principal, pool),
		})
	}

	svc = core.NewService(engine)
	return nil
}

func parseNetwork(s string) core.Network {
	if strings.EqualFold(s, "local") {
		return core.NetworkLocal
	}
	return core.NetworkMainnet
}

func parseCallerArg(arg string) (core.Principal, error) {
	return core.ParsePrincipal(arg)
}

func engineSetInterval(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	seconds, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return err
	}
	got, err := svc.SetInterval(context.Background(), caller, seconds)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), got)
	return nil
}

func engineGetInterval(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.GetInterval())
	return nil
}

func engineSetNextBlock(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	block, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return err
	}
	got, err := svc.SetNextBlock(context.Background(), caller, block)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), got)
	return nil
}

func engineGetNextBlock(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.GetNextBlock())
	return nil
}

func engineSetTokenNextBlock(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	token, err := core.ParseTokenType(args[1])
	if err != nil {
		return err
	}
	block, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return err
	}
	got, err := svc.SetTokenNextBlock(context.Background(), caller, token, block)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), got)
	return nil
}

func engineGetTokenNextBlock(cmd *cobra.Command, args []string) error {
	token, err := core.ParseTokenType(args[0])
	if err != nil {
		return err
	}
	block, err := svc.GetTokenNextBlock(token)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}

func engineGetAllTokenBlocks(cmd *cobra.Command, _ []string) error {
	for _, tb := range svc.GetAllTokenBlocks() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%d\n", tb.Token.String(), tb.Block)
	}
	return nil
}

func engineAddSubaccount(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	memo := ""
	if len(args) > 1 {
		memo = args[1]
	}
	rec, err := svc.AddSubaccount(context.Background(), caller, memo)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "nonce=%d account=%s\n", rec.Nonce, rec.AccountID.String())
	return nil
}

func engineGetSubaccountid(cmd *cobra.Command, args []string) error {
	nonce, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	token := core.TokenICP
	if len(args) > 1 {
		token, err = core.ParseTokenType(args[1])
		if err != nil {
			return err
		}
	}
	text, err := svc.GetSubaccountid(nonce, token)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func engineGetIcrcAccount(cmd *cobra.Command, args []string) error {
	nonce, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	text, err := svc.GetIcrcAccount(nonce)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func engineGetSubaccountCount(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.GetSubaccountCount())
	return nil
}

func engineSetCustodian(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	custodian, err := core.ParsePrincipal(args[1])
	if err != nil {
		return err
	}
	return svc.SetCustodianPrincipal(context.Background(), caller, custodian)
}

func engineSetWebhook(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	got, err := svc.SetWebhookURL(context.Background(), caller, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), got)
	return nil
}

func engineGetWebhook(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.GetWebhookURL())
	return nil
}

func engineRegisterToken(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	token, err := core.ParseTokenType(args[1])
	if err != nil {
		return err
	}
	principal, err := core.ParsePrincipal(args[2])
	if err != nil {
		return err
	}
	return svc.RegisterToken(context.Background(), caller, core.TokenLedger{
		Token:     token,
		Principal: principal,
		Client:    core.NewHTTPLedgerClient(args[2], pool),
	})
}

func engineGetRegisteredTokens(cmd *cobra.Command, _ []string) error {
	for _, t := range svc.GetRegisteredTokens() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", t.Token.String(), t.Principal)
	}
	return nil
}

func engineResetTokenBlocks(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	return svc.ResetTokenBlocks(context.Background(), caller)
}

func engineGetTransactionTokenType(cmd *cobra.Command, args []string) error {
	tt, err := svc.GetTransactionTokenType(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tt.String())
	return nil
}

func engineGetTransactionsCount(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.GetTransactionsCount())
	return nil
}

func engineGetOldestBlock(cmd *cobra.Command, _ []string) error {
	block, ok := svc.GetOldestBlock()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "none")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}

func engineListTransactions(cmd *cobra.Command, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		limit = n
	}
	for _, tx := range svc.ListTransactions(limit) {
		fmt.Fprintf(cmd.OutOrStdout(), "index=%d token=%s hash=%s status=%s\n", tx.BlockIndex, tx.TokenType, tx.Hash, tx.SweepStatus)
	}
	return nil
}

func engineClearTransactions(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	var upToIndex, upToTs *uint64
	if len(args) > 1 && args[1] != "-" {
		v, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}
		upToIndex = &v
	}
	if len(args) > 2 && args[2] != "-" {
		v, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return err
		}
		upToTs = &v
	}
	surviving, err := svc.ClearTransactions(context.Background(), caller, upToIndex, upToTs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "surviving=%d\n", len(surviving))
	return nil
}

func engineProcessArchivedBlock(cmd *cobra.Command, args []string) error {
	token, err := core.ParseTokenType(args[0])
	if err != nil {
		return err
	}
	var blockIndex uint64
	if _, err := fmt.Sscan(args[1], &blockIndex); err != nil {
		return err
	}
	return svc.ProcessArchivedBlock(context.Background(), token, blockIndex)
}

func engineSweep(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	results, err := svc.Sweep(context.Background(), caller)
	if err != nil {
		return err
	}
	printSweepResults(cmd, results)
	return nil
}

func engineSweepByTokenType(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	token, err := core.ParseTokenType(args[1])
	if err != nil {
		return err
	}
	results, err := svc.SweepByTokenType(context.Background(), caller, token)
	if err != nil {
		return err
	}
	printSweepResults(cmd, results)
	return nil
}

func engineSingleSweep(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	result, err := svc.SingleSweep(context.Background(), caller, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return nil
}

func engineSweepSubaccount(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return err
	}
	token := core.TokenICP
	if len(args) > 3 {
		token, err = core.ParseTokenType(args[3])
		if err != nil {
			return err
		}
	}
	block, err := svc.SweepSubaccount(context.Background(), caller, args[1], amount, token)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}

func engineRefund(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	index, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse index: %w", err)
	}
	result, err := svc.Refund(context.Background(), caller, index)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return nil
}

func engineSetSweepFailed(cmd *cobra.Command, args []string) error {
	caller, err := parseCallerArg(args[0])
	if err != nil {
		return err
	}
	return svc.SetSweepFailed(context.Background(), caller, args[1])
}

func engineValidateIcrcAccount(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.ValidateIcrcAccount(args[0]))
	return nil
}

func engineConvertIcrcAccount(cmd *cobra.Command, args []string) error {
	text, err := svc.ConvertToIcrcAccount(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func engineStatus(cmd *cobra.Command, _ []string) error {
	s := svc.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "subaccounts=%d transactions=%d next_nonce=%d custodian=%s webhook=%q tokens=%v last_polled=%s\n",
		s.SubaccountCount, s.TransactionCount, s.NextNonce, s.Custodian, s.WebhookURL, s.RegisteredTokens, s.LastPolledAt)
	return nil
}

func engineCanisterStatus(cmd *cobra.Command, _ []string) error {
	raw, err := svc.CanisterStatus()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), raw)
	return nil
}

func printSweepResults(cmd *cobra.Command, results []core.SweepResult) {
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r.String())
	}
}

var engineCmd = &cobra.Command{Use: "engine", Short: "Subaccount sweeper engine", PersistentPreRunE: engineInit}

var (
	setIntervalCmd        = &cobra.Command{Use: "set-interval <caller> <seconds>", Short: "Re-arm the poll scheduler", Args: cobra.ExactArgs(2), RunE: engineSetInterval}
	getIntervalCmd         = &cobra.Command{Use: "get-interval", Short: "Report the poll interval", Args: cobra.NoArgs, RunE: engineGetInterval}
	setNextBlockCmd        = &cobra.Command{Use: "set-next-block <caller> <block>", Short: "Set the legacy global polling cursor", Args: cobra.ExactArgs(2), RunE: engineSetNextBlock}
	getNextBlockCmd        = &cobra.Command{Use: "get-next-block", Short: "Report the legacy global polling cursor", Args: cobra.NoArgs, RunE: engineGetNextBlock}
	setTokenNextBlockCmd   = &cobra.Command{Use: "set-token-next-block <caller> <token> <block>", Short: "Set a token's polling cursor", Args: cobra.ExactArgs(3), RunE: engineSetTokenNextBlock}
	getTokenNextBlockCmd   = &cobra.Command{Use: "get-token-next-block <token>", Short: "Report a token's polling cursor", Args: cobra.ExactArgs(1), RunE: engineGetTokenNextBlock}
	getAllTokenBlocksCmd   = &cobra.Command{Use: "get-all-token-blocks", Short: "Report every token's polling cursor", Args: cobra.NoArgs, RunE: engineGetAllTokenBlocks}
	addSubaccountCmd       = &cobra.Command{Use: "add-subaccount <caller> [memo]", Short: "Issue a deposit subaccount", Args: cobra.RangeArgs(1, 2), RunE: engineAddSubaccount}
	getSubaccountidCmd     = &cobra.Command{Use: "get-subaccountid <nonce> [token]", Short: "Render a deposit subaccount's textual address", Args: cobra.RangeArgs(1, 2), RunE: engineGetSubaccountid}
	getIcrcAccountCmd      = &cobra.Command{Use: "get-icrc-account <nonce>", Short: "Render a deposit subaccount's ICRC-1 textual account", Args: cobra.ExactArgs(1), RunE: engineGetIcrcAccount}
	getSubaccountCountCmd  = &cobra.Command{Use: "get-subaccount-count", Short: "Report the number of issued subaccounts", Args: cobra.NoArgs, RunE: engineGetSubaccountCount}
	setCustodianCmd        = &cobra.Command{Use: "set-custodian <caller> <custodian>", Short: "Reassign the custodian principal", Args: cobra.ExactArgs(2), RunE: engineSetCustodian}
	setWebhookCmd          = &cobra.Command{Use: "set-webhook <caller> <url>", Short: "Set the webhook delivery URL", Args: cobra.ExactArgs(2), RunE: engineSetWebhook}
	getWebhookCmd          = &cobra.Command{Use: "get-webhook", Short: "Report the webhook delivery URL", Args: cobra.NoArgs, RunE: engineGetWebhook}
	registerTokenCmd       = &cobra.Command{Use: "register-token <caller> <token> <principal>", Short: "Register a ledger for polling", Args: cobra.ExactArgs(3), RunE: engineRegisterToken}
	listTokensCmd          = &cobra.Command{Use: "get-registered-tokens", Short: "List registered tokens", Args: cobra.NoArgs, RunE: engineGetRegisteredTokens}
	resetBlocksCmd         = &cobra.Command{Use: "reset-token-blocks <caller>", Short: "Reset every polling cursor to 1", Args: cobra.ExactArgs(1), RunE: engineResetTokenBlocks}
	txTokenTypeCmd         = &cobra.Command{Use: "get-transaction-token-type <hash>", Short: "Look up a transaction's token type", Args: cobra.ExactArgs(1), RunE: engineGetTransactionTokenType}
	txCountCmd             = &cobra.Command{Use: "get-transactions-count", Short: "Report the number of stored transactions", Args: cobra.NoArgs, RunE: engineGetTransactionsCount}
	oldestBlockCmd         = &cobra.Command{Use: "get-oldest-block", Short: "Report the smallest stored block index", Args: cobra.NoArgs, RunE: engineGetOldestBlock}
	listTransactionsCmd    = &cobra.Command{Use: "list-transactions [limit]", Short: "List the last stored transactions in store key order", Args: cobra.MaximumNArgs(1), RunE: engineListTransactions}
	clearTransactionsCmd   = &cobra.Command{Use: "clear-transactions <caller> [up-to-index|-] [up-to-timestamp|-]", Short: "Clear stored transactions up to a bound", Args: cobra.RangeArgs(1, 3), RunE: engineClearTransactions}
	archivedBlockCmd       = &cobra.Command{Use: "process-archived-block <token> <block-index>", Short: "Match a single archived block", Args: cobra.ExactArgs(2), RunE: engineProcessArchivedBlock}
	sweepCmd               = &cobra.Command{Use: "sweep <caller>", Short: "Sweep pending deposits", Args: cobra.ExactArgs(1), RunE: engineSweep}
	sweepTokenCmd          = &cobra.Command{Use: "sweep-by-token <caller> <token>", Short: "Sweep pending deposits for one token", Args: cobra.ExactArgs(2), RunE: engineSweepByTokenType}
	singleSweepCmd         = &cobra.Command{Use: "single-sweep <caller> <hash>", Short: "Sweep one matched transaction", Args: cobra.ExactArgs(2), RunE: engineSingleSweep}
	sweepSubaccountCmd     = &cobra.Command{Use: "sweep-subaccount <caller> <hex-account-id> <amount> [token]", Short: "Sweep a decimal amount out of a registered subaccount", Args: cobra.RangeArgs(3, 4), RunE: engineSweepSubaccount}
	refundCmd              = &cobra.Command{Use: "refund <caller> <index>", Short: "Refund a matched transaction to its sender", Args: cobra.ExactArgs(2), RunE: engineRefund}
	setSweepFailedCmd      = &cobra.Command{Use: "set-sweep-failed <caller> <hash>", Short: "Force a transaction's status to FailedToSweep", Args: cobra.ExactArgs(2), RunE: engineSetSweepFailed}
	validateIcrcCmd        = &cobra.Command{Use: "validate-icrc-account <text>", Short: "Validate an ICRC-1 textual account", Args: cobra.ExactArgs(1), RunE: engineValidateIcrcAccount}
	convertIcrcCmd         = &cobra.Command{Use: "convert-icrc-account <hex-account-id>", Short: "Render an ICRC-1 textual account", Args: cobra.ExactArgs(1), RunE: engineConvertIcrcAccount}
	statusCmd              = &cobra.Command{Use: "status", Short: "Report engine state", Args: cobra.NoArgs, RunE: engineStatus}
	canisterStatusCmd      = &cobra.Command{Use: "canister-status", Short: "Report engine state as JSON", Args: cobra.NoArgs, RunE: engineCanisterStatus}
)

func init() {
	engineCmd.AddCommand(
		setIntervalCmd,
		getIntervalCmd,
		setNextBlockCmd,
		getNextBlockCmd,
		setTokenNextBlockCmd,
		getTokenNextBlockCmd,
		getAllTokenBlocksCmd,
		addSubaccountCmd,
		getSubaccountidCmd,
		getIcrcAccountCmd,
		getSubaccountCountCmd,
		setCustodianCmd,
		setWebhookCmd,
		getWebhookCmd,
		registerTokenCmd,
		listTokensCmd,
		resetBlocksCmd,
		txTokenTypeCmd,
		txCountCmd,
		oldestBlockCmd,
		listTransactionsCmd,
		clearTransactionsCmd,
		archivedBlockCmd,
		sweepCmd,
		sweepTokenCmd,
		singleSweepCmd,
		sweepSubaccountCmd,
		refundCmd,
		setSweepFailedCmd,
		validateIcrcCmd,
		convertIcrcCmd,
		statusCmd,
		canisterStatusCmd,
	)
}

// EngineCmd is the exported root subcommand wired into cmd/indexer's main.
var EngineCmd = engineCmd
