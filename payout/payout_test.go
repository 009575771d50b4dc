package payout_test

import (
	"relic-services/payout"
	"relic-services/types"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

const testKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func TestSignRecoverRoundTrip(t *testing.T) {
	signer, err := payout.NewKeySigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	holder, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}
	amount := decimal.NewFromInt(12345)
	nonce := uuid.Must(uuid.NewV4()).String()

	sig, err := signer.Sign(holder, amount, nonce)
	if err != nil {
		t.Fatal(err)
	}

	recovered, err := payout.RecoverSigner(holder, amount, nonce, sig)
	if err != nil {
		t.Fatal(err)
	}
	if recovered != signer.OperatorAddress() {
		t.Fatalf("recovered %s, want %s", recovered, signer.OperatorAddress())
	}
}

func TestRecoverRejectsTampering(t *testing.T) {
	signer, err := payout.NewKeySigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	holder, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}
	nonce := uuid.Must(uuid.NewV4()).String()

	sig, err := signer.Sign(holder, decimal.NewFromInt(100), nonce)
	if err != nil {
		t.Fatal(err)
	}

	// a bumped amount must not recover to the operator
	recovered, err := payout.RecoverSigner(holder, decimal.NewFromInt(101), nonce, sig)
	if err == nil && recovered == signer.OperatorAddress() {
		t.Fatal("tampered voucher recovered to the operator")
	}
}

func TestNewKeySignerRejectsGarbage(t *testing.T) {
	_, err := payout.NewKeySigner("not-a-key")
	if err == nil {
		t.Fatal("expected error for malformed key")
	}
}
