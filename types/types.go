package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/uuid"
)

// AssetID is the unique identifier of an asset. IDs are allocated by the
// database sequence at mint, increase monotonically and are never reused.
type AssetID int64

func (id AssetID) String() string {
	return fmt.Sprintf("%d", id)
}

// Address is an opaque, address-like holder identifier. It is always stored
// in checksummed hex form so two addresses can be compared with ==.
type Address string

// AddressFromHex validates and normalises a hex wallet address.
func AddressFromHex(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return Address(common.HexToAddress(s).Hex()), nil
}

func (a Address) String() string {
	return string(a)
}

// Common converts to the go-ethereum address type for crypto operations.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// IsNil reports whether the address is empty or the zero address, neither of
// which may hold assets or balances.
func (a Address) IsNil() bool {
	if a == "" {
		return true
	}
	return common.HexToAddress(string(a)) == common.Address{}
}

type BlobID uuid.UUID

func (id BlobID) String() string {
	return uuid.UUID(id).String()
}

func (id BlobID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *BlobID) UnmarshalText(text []byte) error {
	u, err := uuid.FromString(string(text))
	if err != nil {
		return err
	}
	*id = BlobID(u)
	return nil
}

func (id BlobID) Value() (driver.Value, error) {
	return id.String(), nil
}

func (id *BlobID) Scan(src interface{}) error {
	u := uuid.UUID{}
	err := u.Scan(src)
	if err != nil {
		return err
	}
	*id = BlobID(u)
	return nil
}
