package core

// common_structs.go – centralised struct definitions referenced across
// modules. This file declares the data model shared by the registry, the
// poller, the sweep/refund planners and the webhook emitter, keeping it in
// one place the way the upstream codebase collects its cross-cutting types.

import (
	"fmt"
	"time"
)

//---------------------------------------------------------------------
// Identity primitives
//---------------------------------------------------------------------

// Principal is an opaque IC principal. Parsing its canonical textual form
// (CRC32 + base32, grouped in 5-char blocks) is out of scope for this
// engine; Principal only round-trips raw bytes plus a caller-supplied
// textual rendering.
type Principal []byte

// Equal reports whether two principals carry the same bytes.
func (p Principal) Equal(o Principal) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Principal) String() string {
	return fmt.Sprintf("%x", []byte(p))
}

// ParsePrincipal decodes the hex form produced by Principal.String.
func ParsePrincipal(s string) (Principal, error) {
	b, err := hexDecode(s)
	if err != nil {
		return nil, fmt.Errorf("parse principal: %w", err)
	}
	return Principal(b), nil
}

// Subaccount is the 32-byte discriminator appended to a Principal to form a
// distinct ledger account.
type Subaccount [32]byte

// AccountIdentifier is the classic 32-byte ledger account identifier:
// 4-byte big-endian CRC32 checksum followed by a 28-byte SHA-224 hash.
type AccountIdentifier [32]byte

//---------------------------------------------------------------------
// Token & network enums
//---------------------------------------------------------------------

// TokenType enumerates the ledgers this engine can sweep.
type TokenType int

const (
	TokenICP TokenType = iota
	TokenCkBTC
	TokenCkUSDC
	TokenCkUSDT
)

func (t TokenType) String() string {
	switch t {
	case TokenICP:
		return "ICP"
	case TokenCkBTC:
		return "ckBTC"
	case TokenCkUSDC:
		return "ckUSDC"
	case TokenCkUSDT:
		return "ckUSDT"
	default:
		return "UNKNOWN"
	}
}

// ParseTokenType maps a token's canonical name (as produced by
// TokenType.String) back to its enum value, used by config loading and the
// CLI's --token flags.
func ParseTokenType(s string) (TokenType, error) {
	switch s {
	case "ICP":
		return TokenICP, nil
	case "ckBTC":
		return TokenCkBTC, nil
	case "ckUSDC":
		return TokenCkUSDC, nil
	case "ckUSDT":
		return TokenCkUSDT, nil
	default:
		return 0, fmt.Errorf("%w: unknown token %q", ErrInvalidInput, s)
	}
}

// Network selects which ledger environment a client talks to.
type Network int

const (
	NetworkMainnet Network = iota
	NetworkLocal
)

// Operation mirrors the ledger operation kinds carried by a block entry.
type Operation int

const (
	OpUnknown Operation = iota
	OpMint
	OpBurn
	OpTransfer
	OpApprove
)

func (o Operation) String() string {
	switch o {
	case OpMint:
		return "Mint"
	case OpBurn:
		return "Burn"
	case OpTransfer:
		return "Transfer"
	case OpApprove:
		return "Approve"
	default:
		return "Unknown"
	}
}

// SweepStatus tracks the lifecycle of a detected deposit.
type SweepStatus int

const (
	NotSwept SweepStatus = iota
	Swept
	FailedToSweep
)

func (s SweepStatus) String() string {
	switch s {
	case Swept:
		return "Swept"
	case FailedToSweep:
		return "FailedToSweep"
	default:
		return "NotSwept"
	}
}

//---------------------------------------------------------------------
// Transfer / transaction model
//---------------------------------------------------------------------

// Transfer is the decoded payload of a single ledger block entry relevant
// to this engine (a Transfer operation; other operations are recorded with
// a zero Transfer and handled defensively by the hasher).
type Transfer struct {
	From   AccountIdentifier
	To     AccountIdentifier
	Amount uint64
	Fee    uint64
	Memo   uint64
	// CreatedAtTime is the ledger-reported timestamp in nanoseconds since
	// epoch, when present (ICRC-3 blocks carry it; classic ones may not).
	CreatedAtTime uint64
	// Spender is set only for Approve operations (and optionally for a
	// delegated Transfer/Burn), carrying the account authorised to move
	// funds on the owner's behalf. Nil when the operation carries no
	// spender.
	Spender *AccountIdentifier
}

// StoredTransaction is the durable record kept for every matched deposit.
type StoredTransaction struct {
	TokenType    TokenType
	TokenLedger  Principal
	BlockIndex   uint64
	Operation    Operation
	Transfer     Transfer
	Hash         string
	Subaccount   Subaccount
	SweepStatus  SweepStatus
	SweepedAt    int64 // unix seconds, zero if not yet swept
}

// Key identifies a stored transaction by the (token, block index) pair
// this engine uses in place of the legacy global running index.
type TxKey struct {
	Token      TokenType
	BlockIndex uint64
}

func (k TxKey) String() string {
	return fmt.Sprintf("%s:%d", k.Token, k.BlockIndex)
}

//---------------------------------------------------------------------
// Registered subaccount
//---------------------------------------------------------------------

// RegisteredSubaccount is the record produced when a caller is issued a
// deposit address.
type RegisteredSubaccount struct {
	Nonce      uint64
	Subaccount Subaccount
	AccountID  AccountIdentifier
	Memo       string
	CreatedAt  time.Time
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex character %q", c)
	}
}
