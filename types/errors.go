package types

import (
	"fmt"
)

// ErrInvalidInput when a caller supplies an empty locator, zero price or
// otherwise malformed input
var ErrInvalidInput = fmt.Errorf("invalid input")

// ErrUnknownAsset when the targeted asset id has never been minted
var ErrUnknownAsset = fmt.Errorf("unknown asset")

// ErrAlreadyBound when a second metadata bind is attempted on an asset
var ErrAlreadyBound = fmt.Errorf("metadata already bound")

// ErrNotOwner when the caller is not the asset owner or the listing holder
var ErrNotOwner = fmt.Errorf("caller is not the owner")

// ErrAlreadyListed when the asset already has an active listing
var ErrAlreadyListed = fmt.Errorf("asset already listed")

// ErrNotListed when there is no active listing for the asset
var ErrNotListed = fmt.Errorf("asset not listed")

// ErrStaleListing when the listing holder no longer owns the asset
var ErrStaleListing = fmt.Errorf("stale listing")

// ErrInsufficientPayment when the payment does not cover the listing price
var ErrInsufficientPayment = fmt.Errorf("insufficient payment")

// ErrSelfPurchase when a buyer attempts to buy their own asset
var ErrSelfPurchase = fmt.Errorf("cannot purchase own asset")

// ErrNothingToWithdraw when the caller has no withdrawable balance
var ErrNothingToWithdraw = fmt.Errorf("nothing to withdraw")
