package types_test

import (
	"errors"
	"relic-services/types"
	"testing"
)

func TestAddressFromHex(t *testing.T) {
	addr, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}
	// output is checksummed so case differences collapse
	upper, err := types.AddressFromHex("0x5E6F3EDC2AB1A894A169B1C2A3F43C64D65A2D6E")
	if err != nil {
		t.Fatal(err)
	}
	if addr != upper {
		t.Fatalf("%s != %s", addr, upper)
	}

	_, err = types.AddressFromHex("not-an-address")
	if err == nil {
		t.Fatal("expected error for malformed address")
	}
	_, err = types.AddressFromHex("0x1234")
	if err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestAddressIsNil(t *testing.T) {
	if !types.Address("").IsNil() {
		t.Fatal("empty address should be nil")
	}
	zero, err := types.AddressFromHex("0x0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if !zero.IsNil() {
		t.Fatal("zero address should be nil")
	}
	addr, err := types.AddressFromHex("0x5e6f3edc2ab1a894a169b1c2a3f43c64d65a2d6e")
	if err != nil {
		t.Fatal(err)
	}
	if addr.IsNil() {
		t.Fatal("real address should not be nil")
	}
}

func TestErrorIdentity(t *testing.T) {
	// sentinel errors must survive wrapping for handler status mapping
	wrapped := errors.New("outer")
	if errors.Is(wrapped, types.ErrNotOwner) {
		t.Fatal("unrelated error matched sentinel")
	}
	if !errors.Is(types.ErrNotOwner, types.ErrNotOwner) {
		t.Fatal("sentinel does not match itself")
	}
}
