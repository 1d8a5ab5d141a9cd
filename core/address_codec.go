package core

// address_codec.go derives deterministic ledger addresses from (Principal,
// Subaccount) pairs and renders them in both the classic checksummed form
// and the ICRC-1 textual form. The derivation style — a domain-separated
// hash feeding a fixed-width address — mirrors the HD-derivation helpers in
// wallet.go (pubKeyToAddress / NewAddress), adapted from ed25519 public-key
// hashing to the ledger's own account-identifier hashing scheme.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"
)

const accountIDDomainSeparator = "\x0Aaccount-id"

// NewAccountIdentifier derives the classic 32-byte account identifier for a
// (principal, subaccount) pair: a 4-byte big-endian CRC32 checksum over a
// 28-byte SHA-224 digest, followed by that digest.
func NewAccountIdentifier(owner Principal, sub Subaccount) AccountIdentifier {
	h := sha256.New224()
	h.Write([]byte(accountIDDomainSeparator))
	h.Write(owner)
	h.Write(sub[:])
	digest := h.Sum(nil) // 28 bytes

	checksum := crc32.ChecksumIEEE(digest)

	var out AccountIdentifier
	out[0] = byte(checksum >> 24)
	out[1] = byte(checksum >> 16)
	out[2] = byte(checksum >> 8)
	out[3] = byte(checksum)
	copy(out[4:], digest)
	return out
}

// String renders the account identifier as lowercase hex.
func (a AccountIdentifier) String() string {
	return hex.EncodeToString(a[:])
}

// AccountIdentifierFromHex parses a 64-character hex account identifier and
// validates its embedded checksum, as the original ledger's
// AccountIdentifier::from_hex / check_sum pair does.
func AccountIdentifierFromHex(s string) (AccountIdentifier, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return AccountIdentifier{}, fmt.Errorf("%w: %v", ErrInvalidLength, err)
	}
	return AccountIdentifierFromBytes(b)
}

// AccountIdentifierFromBytes validates and wraps a 32-byte slice.
func AccountIdentifierFromBytes(b []byte) (AccountIdentifier, error) {
	if len(b) != 32 {
		return AccountIdentifier{}, ErrInvalidLength
	}
	var out AccountIdentifier
	copy(out[:], b)
	if err := out.CheckSum(); err != nil {
		return AccountIdentifier{}, err
	}
	return out, nil
}

// CheckSum verifies the leading 4-byte CRC32 checksum against the trailing
// 28-byte hash.
func (a AccountIdentifier) CheckSum() error {
	want := crc32.ChecksumIEEE(a[4:])
	got := uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
	if want != got {
		return ErrInvalidChecksum
	}
	return nil
}

const base32LowerAlphabet = "abcdefghijklmnopqrstuvwxyz234567"

// IcrcAccountText renders (owner, subaccount) in the ICRC-1 textual account
// format: "<principal>-<checksum>.<subaccount-hex-trimmed>", where checksum
// is the unpadded lowercase base32 encoding of the CRC32 over
// owner-bytes||subaccount-bytes, and the subaccount hex has its leading
// zero nibbles stripped. A zero subaccount omits the ".<hex>" suffix
// entirely and renders the bare principal text.
func IcrcAccountText(ownerText string, owner Principal, sub Subaccount) string {
	if isZeroSubaccount(sub) {
		return ownerText
	}

	sum := crc32.ChecksumIEEE(append(append([]byte{}, owner...), sub[:]...))
	var sumBytes [4]byte
	sumBytes[0] = byte(sum >> 24)
	sumBytes[1] = byte(sum >> 16)
	sumBytes[2] = byte(sum >> 8)
	sumBytes[3] = byte(sum)
	checksum := base32EncodeLower(sumBytes[:])

	subHex := strings.TrimLeft(hex.EncodeToString(sub[:]), "0")
	if subHex == "" {
		subHex = "0"
	}

	return fmt.Sprintf("%s-%s.%s", ownerText, checksum, subHex)
}

// IcrcAccountFromText parses a value produced by IcrcAccountText back into
// its (ownerText, owner, subaccount) parts, validating the embedded
// checksum (spec.md §4.1's icrc_account_from_text). Principal-text parsing
// itself delegates to ParsePrincipal — per spec.md §1, this core only
// round-trips principal text through whatever codec the caller supplies
// as derivation input, and does not reimplement the platform's own
// CRC32+base32 canister-ID textual encoding.
func IcrcAccountFromText(text string) (ownerText string, owner Principal, sub Subaccount, err error) {
	dot := strings.LastIndexByte(text, '.')
	if dot < 0 {
		owner, err = ParsePrincipal(text)
		if err != nil {
			return "", nil, Subaccount{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return text, owner, Subaccount{}, nil
	}

	left, hexPart := text[:dot], text[dot+1:]
	if hexPart == "" {
		return "", nil, Subaccount{}, fmt.Errorf("%w: empty subaccount hex", ErrInvalidInput)
	}
	dash := strings.LastIndexByte(left, '-')
	if dash < 0 {
		return "", nil, Subaccount{}, fmt.Errorf("%w: malformed icrc account separator", ErrInvalidInput)
	}
	ownerText, checksum := left[:dash], left[dash+1:]

	padded := hexPart
	if len(padded)%2 != 0 {
		padded = "0" + padded
	}
	subBytes, decErr := hexDecode(padded)
	if decErr != nil {
		return "", nil, Subaccount{}, fmt.Errorf("%w: non-hex subaccount: %v", ErrInvalidInput, decErr)
	}
	if len(subBytes) > 32 {
		return "", nil, Subaccount{}, fmt.Errorf("%w: subaccount exceeds 32 bytes", ErrInvalidInput)
	}
	copy(sub[32-len(subBytes):], subBytes)

	owner, err = ParsePrincipal(ownerText)
	if err != nil {
		return "", nil, Subaccount{}, fmt.Errorf("%w: invalid principal: %v", ErrInvalidInput, err)
	}

	sum := crc32.ChecksumIEEE(append(append([]byte{}, owner...), sub[:]...))
	var sumBytes [4]byte
	sumBytes[0] = byte(sum >> 24)
	sumBytes[1] = byte(sum >> 16)
	sumBytes[2] = byte(sum >> 8)
	sumBytes[3] = byte(sum)
	if want := base32EncodeLower(sumBytes[:]); want != checksum {
		return "", nil, Subaccount{}, ErrInvalidChecksum
	}

	return ownerText, owner, sub, nil
}

func isZeroSubaccount(sub Subaccount) bool {
	for _, b := range sub {
		if b != 0 {
			return false
		}
	}
	return true
}

// base32EncodeLower implements unpadded RFC4648 base32 using the lowercase
// alphabet the ICRC-1 textual encoding requires, matching the manual
// implementation in the original principal-converter tool rather than
// relying on the stdlib's uppercase-only encoding tables.
func base32EncodeLower(data []byte) string {
	var sb strings.Builder
	var buf uint32
	var bits uint
	for _, b := range data {
		buf = buf<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			idx := (buf >> bits) & 0x1f
			sb.WriteByte(base32LowerAlphabet[idx])
		}
	}
	if bits > 0 {
		idx := (buf << (5 - bits)) & 0x1f
		sb.WriteByte(base32LowerAlphabet[idx])
	}
	return sb.String()
}

// DeriveSubaccount turns a monotonically increasing registration nonce into
// a 32-byte subaccount discriminator by placing its big-endian bytes in the
// low-order end of an otherwise zero subaccount, mirroring the ledger's own
// convention for index-derived subaccounts.
func DeriveSubaccount(nonce uint64) Subaccount {
	var sub Subaccount
	for i := 0; i < 8; i++ {
		sub[31-i] = byte(nonce >> (8 * i))
	}
	return sub
}
