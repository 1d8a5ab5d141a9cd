package core

// hasher.go computes the deterministic transaction hash used to correlate a
// matched ledger block with its stored record, a direct port of
// LedgerTransaction::generate_hash in the original Rust ledger module:
// canonical (map-sorted, definite-length) CBOR encoding fed through
// SHA-256, rendered as lowercase hex. fxamacker/cbor/v2's CoreDetEncOptions
// preset is the Go equivalent of serde_cbor's to_vec_packed.
import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
)

const hashUnavailable = "HASH-IS-NOT-AVAILABLE"

var hashEncMode = mustDeterministicEncMode()

func mustDeterministicEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic("hasher: build cbor encoding mode: " + err.Error())
	}
	return mode
}

// cborTransfer is the wire shape hashed for a Transfer operation. Field
// order is irrelevant under CoreDet mode (map keys are sorted), but the
// names must match the original canister's transaction record exactly so
// historical hashes remain reproducible. from/to/spender carry the 28-byte
// hash-only form of the account identifier (the checksum prefix stripped),
// per spec.md §4.5.
type cborTransfer struct {
	From          []byte `cbor:"from"`
	To            []byte `cbor:"to"`
	Spender       []byte `cbor:"spender,omitempty"`
	Amount        uint64 `cbor:"amount"`
	Fee           uint64 `cbor:"fee"`
	Memo          uint64 `cbor:"memo"`
	CreatedAtTime uint64 `cbor:"created_at_time"`
}

// hashableAccount strips an AccountIdentifier's 4-byte CRC32 prefix,
// leaving the 28-byte SHA-224 hash spec.md §4.5 hashes transactions over.
func hashableAccount(a AccountIdentifier) []byte {
	return append([]byte{}, a[4:]...)
}

// TransactionHash computes the deterministic hash of a StoredTransaction's
// Transfer payload. Non-Transfer operations are not hashable and yield the
// sentinel value rather than an error, so defensive callers that hash
// first and branch on the operation kind later don't need a second error
// path.
func TransactionHash(tx StoredTransaction) string {
	if tx.Operation != OpTransfer {
		return hashUnavailable
	}

	payload := cborTransfer{
		From:          hashableAccount(tx.Transfer.From),
		To:            hashableAccount(tx.Transfer.To),
		Amount:        tx.Transfer.Amount,
		Fee:           tx.Transfer.Fee,
		Memo:          tx.Transfer.Memo,
		CreatedAtTime: tx.Transfer.CreatedAtTime,
	}
	if tx.Transfer.Spender != nil {
		payload.Spender = hashableAccount(*tx.Transfer.Spender)
	}

	encoded, err := hashEncMode.Marshal(payload)
	if err != nil {
		return hashUnavailable
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
