package core

import "testing"

func TestNewAccountIdentifierChecksum(t *testing.T) {
	owner := Principal{1, 2, 3, 4}
	sub := DeriveSubaccount(7)

	id := NewAccountIdentifier(owner, sub)
	if err := id.CheckSum(); err != nil {
		t.Fatalf("expected valid checksum, got %v", err)
	}

	// Corrupting a single byte of the hash must invalidate the checksum.
	id[10] ^= 0xFF
	if err := id.CheckSum(); err == nil {
		t.Fatalf("expected checksum mismatch after corruption")
	}
}

func TestNewAccountIdentifierDeterministic(t *testing.T) {
	owner := Principal{9, 9, 9}
	sub := DeriveSubaccount(42)

	a := NewAccountIdentifier(owner, sub)
	b := NewAccountIdentifier(owner, sub)
	if a != b {
		t.Fatalf("expected deterministic derivation, got %x vs %x", a, b)
	}

	other := NewAccountIdentifier(owner, DeriveSubaccount(43))
	if a == other {
		t.Fatalf("expected distinct subaccounts to derive distinct identifiers")
	}
}

func TestAccountIdentifierFromHexRoundTrip(t *testing.T) {
	owner := Principal{1, 2, 3}
	sub := DeriveSubaccount(1)
	id := NewAccountIdentifier(owner, sub)

	parsed, err := AccountIdentifierFromHex(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %x vs %x", parsed, id)
	}
}

func TestAccountIdentifierFromHexRejectsBadChecksum(t *testing.T) {
	owner := Principal{1, 2, 3}
	sub := DeriveSubaccount(1)
	id := NewAccountIdentifier(owner, sub)
	hexStr := id.String()

	// Flip the first hex character, corrupting the checksum prefix.
	corrupted := "f" + hexStr[1:]
	if corrupted == hexStr {
		corrupted = "0" + hexStr[1:]
	}
	if _, err := AccountIdentifierFromHex(corrupted); err == nil {
		t.Fatalf("expected checksum error for corrupted identifier")
	}
}

func TestAccountIdentifierFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := AccountIdentifierFromBytes(make([]byte, 10)); err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestIcrcAccountTextZeroSubaccount(t *testing.T) {
	owner := Principal{1, 2, 3}
	text := IcrcAccountText("aaaaa-aa", owner, Subaccount{})
	if text != "aaaaa-aa" {
		t.Fatalf("expected bare principal text for zero subaccount, got %q", text)
	}
}

func TestIcrcAccountTextNonZeroSubaccount(t *testing.T) {
	owner := Principal{1, 2, 3}
	sub := DeriveSubaccount(5)
	text := IcrcAccountText("aaaaa-aa", owner, sub)
	if text == "aaaaa-aa" {
		t.Fatalf("expected a checksum-suffixed text for non-zero subaccount")
	}
	if len(text) <= len("aaaaa-aa") {
		t.Fatalf("expected longer text for non-zero subaccount, got %q", text)
	}
}

func TestIcrcAccountFromTextRoundTripZeroSubaccount(t *testing.T) {
	owner := Principal{1, 2, 3}
	ownerText := owner.String()
	text := IcrcAccountText(ownerText, owner, Subaccount{})

	gotText, gotOwner, gotSub, err := IcrcAccountFromText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != ownerText || !gotOwner.Equal(owner) || gotSub != (Subaccount{}) {
		t.Fatalf("round trip mismatch: %q %x %x", gotText, gotOwner, gotSub)
	}
}

func TestIcrcAccountFromTextRoundTripNonZeroSubaccount(t *testing.T) {
	owner := Principal{9, 9, 9}
	ownerText := owner.String()
	sub := DeriveSubaccount(5)
	text := IcrcAccountText(ownerText, owner, sub)

	gotText, gotOwner, gotSub, err := IcrcAccountFromText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != ownerText || !gotOwner.Equal(owner) || gotSub != sub {
		t.Fatalf("round trip mismatch: %q %x %x", gotText, gotOwner, gotSub)
	}
}

func TestIcrcAccountFromTextRejectsMalformedSeparator(t *testing.T) {
	if _, _, _, err := IcrcAccountFromText("deadbeef.05"); err == nil {
		t.Fatalf("expected error for missing checksum separator")
	}
}

func TestIcrcAccountFromTextRejectsNonHexSubaccount(t *testing.T) {
	owner := Principal{1, 2, 3}
	text := IcrcAccountText(owner.String(), owner, DeriveSubaccount(5))
	dot := len(text) - 1
	corrupted := text[:dot] + "z"
	if _, _, _, err := IcrcAccountFromText(corrupted); err == nil {
		t.Fatalf("expected error for non-hex subaccount")
	}
}

func TestIcrcAccountFromTextRejectsOversizedSubaccount(t *testing.T) {
	owner := Principal{1, 2, 3}
	// 33 bytes, well beyond the 32-byte subaccount width.
	oversized := owner.String() + "-aaaaaaa." + "00112233445566778899aabbccddeeff0011223344556677889900112233445566"
	if _, _, _, err := IcrcAccountFromText(oversized); err == nil {
		t.Fatalf("expected error for oversized subaccount")
	}
}

func TestIcrcAccountFromTextRejectsChecksumMismatch(t *testing.T) {
	owner := Principal{1, 2, 3}
	text := IcrcAccountText(owner.String(), owner, DeriveSubaccount(5))
	dash := -1
	for i, c := range text {
		if c == '-' {
			dash = i
		}
	}
	corrupted := text[:dash+1] + "zzzzzzz" + text[dash+1+7:]
	if _, _, _, err := IcrcAccountFromText(corrupted); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}

func TestDeriveSubaccountIsDeterministicAndDistinct(t *testing.T) {
	a := DeriveSubaccount(1)
	b := DeriveSubaccount(1)
	if a != b {
		t.Fatalf("expected deterministic derivation")
	}
	c := DeriveSubaccount(2)
	if a == c {
		t.Fatalf("expected distinct nonces to derive distinct subaccounts")
	}
}
