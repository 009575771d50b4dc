package ledger

import (
	"context"
	"errors"
	"fmt"
	"relic-services/db"
	"relic-services/payout"
	"relic-services/types"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ninja-software/terror/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	salesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_sales_settled_total",
		Help: "Number of sales settled by the escrow engine",
	})
	withdrawalsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_withdrawals_issued_total",
		Help: "Number of payout vouchers issued",
	})
)

// Ledger is the marketplace ledger state machine. It owns every mutation of
// the ownership registry, the listing book and the withdrawable balances;
// each state-changing call runs as a single database transaction with row
// locks on the asset, listing and balance rows it touches, so concurrent
// calls against the same asset or holder serialise and either apply fully
// or not at all.
type Ledger struct {
	Conn   *pgxpool.Pool
	Log    *zerolog.Logger
	Payout payout.Signer
	Policy types.OverpaymentPolicy
}

func New(conn *pgxpool.Pool, log *zerolog.Logger, signer payout.Signer, policy types.OverpaymentPolicy) *Ledger {
	if policy == "" {
		policy = types.OverpaymentRefund
	}
	return &Ledger{
		Conn:   conn,
		Log:    log,
		Payout: signer,
		Policy: policy,
	}
}

// tx runs fn inside a database transaction, rolling back on any error
func (l *Ledger) tx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.Conn.Begin(ctx)
	if err != nil {
		return terror.Error(err)
	}
	defer func(tx pgx.Tx, ctx context.Context) {
		err := tx.Rollback(ctx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			l.Log.Err(err).Msg("error rolling back")
		}
	}(tx, ctx)

	err = fn(tx)
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// Mint allocates the next asset id, sets the owner and binds the content
// locator in one transaction
func (l *Ledger) Mint(ctx context.Context, owner types.Address, locator string) (types.AssetID, error) {
	if owner.IsNil() {
		return 0, terror.Error(types.ErrInvalidInput, "Owner address is required.")
	}
	if locator == "" {
		return 0, terror.Error(types.ErrInvalidInput, "Content locator is required.")
	}

	var assetID types.AssetID
	err := l.tx(ctx, func(tx pgx.Tx) error {
		var err error
		assetID, err = db.AssetInsert(ctx, tx, owner)
		if err != nil {
			return err
		}
		return db.MetadataBind(ctx, tx, assetID, locator)
	})
	if err != nil {
		return 0, err
	}

	l.Log.Info().Int64("asset_id", int64(assetID)).Str("owner", owner.String()).Msg("asset minted")
	return assetID, nil
}

// Transfer moves an asset from its current owner to another holder outside
// the marketplace sale path. Any active listing is removed in the same
// transaction so no stale listing survives the ownership change.
func (l *Ledger) Transfer(ctx context.Context, assetID types.AssetID, from, to types.Address) error {
	if to.IsNil() {
		return terror.Error(types.ErrInvalidInput, "Transfer destination is required.")
	}

	return l.tx(ctx, func(tx pgx.Tx) error {
		asset, err := db.AssetGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if asset.Owner != from {
			return terror.Error(types.ErrNotOwner, "Only the current owner can transfer this asset.")
		}
		err = db.ListingDelete(ctx, tx, assetID)
		if err != nil {
			return err
		}
		return db.AssetOwnerUpdate(ctx, tx, assetID, to)
	})
}

// CreateListing puts an asset up for sale and returns the created listing.
// The caller must be the current owner and the price must be a positive
// whole amount in the smallest denomination.
func (l *Ledger) CreateListing(ctx context.Context, assetID types.AssetID, price decimal.Decimal, caller types.Address) (*types.Listing, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, terror.Error(types.ErrInvalidInput, "Listing price must be greater than zero.")
	}
	if !price.IsInteger() {
		return nil, terror.Error(types.ErrInvalidInput, "Listing price must be a whole amount.")
	}

	var listing *types.Listing
	err := l.tx(ctx, func(tx pgx.Tx) error {
		asset, err := db.AssetGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if asset.Owner != caller {
			return terror.Error(types.ErrNotOwner, "Only the current owner can list this asset.")
		}
		err = db.ListingInsert(ctx, tx, assetID, price, caller)
		if err != nil {
			return err
		}
		listing, err = db.ListingGet(ctx, tx, assetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// CancelListing removes the caller's active listing
func (l *Ledger) CancelListing(ctx context.Context, assetID types.AssetID, caller types.Address) error {
	return l.tx(ctx, func(tx pgx.Tx) error {
		_, err := db.AssetGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}
		listing, err := db.ListingGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if listing.Lister != caller {
			return terror.Error(types.ErrNotOwner, "Only the lister can cancel this listing.")
		}
		return db.ListingDelete(ctx, tx, assetID)
	})
}

// Buy settles a purchase: validates the listing and payment, then removes
// the listing, transfers ownership and credits the sale price to the seller
// as one indivisible unit. Payment beyond the listing price is either
// refunded in the receipt or rejected outright, depending on policy; it is
// never retained.
func (l *Ledger) Buy(ctx context.Context, assetID types.AssetID, buyer types.Address, payment decimal.Decimal) (*types.SaleReceipt, error) {
	if buyer.IsNil() {
		return nil, terror.Error(types.ErrInvalidInput, "Buyer address is required.")
	}
	if !payment.IsInteger() {
		return nil, terror.Error(types.ErrInvalidInput, "Payment must be a whole amount.")
	}

	var receipt *types.SaleReceipt
	err := l.tx(ctx, func(tx pgx.Tx) error {
		// lock ordering: asset first, then listing, matching Transfer and
		// the listing ops
		asset, err := db.AssetGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}
		listing, err := db.ListingGetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}

		if payment.LessThan(listing.Price) {
			return terror.Error(types.ErrInsufficientPayment, "Payment does not cover the listing price.")
		}
		excess := payment.Sub(listing.Price)
		if l.Policy == types.OverpaymentReject && excess.IsPositive() {
			return terror.Error(types.ErrInvalidInput, "Exact payment required.")
		}
		if buyer == asset.Owner {
			return terror.Error(types.ErrSelfPurchase, "You already own this asset.")
		}
		// ownership changes outside the marketplace drop the listing, so a
		// mismatch here should be impossible; keep the check anyway
		if listing.Lister != asset.Owner {
			return terror.Error(types.ErrStaleListing, "Listing no longer matches the asset owner.")
		}

		err = db.ListingDelete(ctx, tx, assetID)
		if err != nil {
			return err
		}
		err = db.AssetOwnerUpdate(ctx, tx, assetID, buyer)
		if err != nil {
			return err
		}
		err = db.BalanceAdd(ctx, tx, listing.Lister, listing.Price)
		if err != nil {
			return err
		}

		txRef := types.TransactionReference(fmt.Sprintf("SALE OF ASSET %d | %d", assetID, time.Now().UnixNano()))
		err = db.TransactionInsert(ctx, tx, &types.Transaction{
			Credit:               listing.Lister,
			Debit:                buyer,
			Amount:               listing.Price,
			TransactionReference: txRef,
			Description:          fmt.Sprintf("Sale of asset %d on the marketplace.", assetID),
			Group:                types.TransactionGroupSale,
		})
		if err != nil {
			return err
		}

		if excess.IsPositive() {
			err = db.TransactionInsert(ctx, tx, &types.Transaction{
				Credit:               buyer,
				Debit:                listing.Lister,
				Amount:               excess,
				TransactionReference: types.TransactionReference(fmt.Sprintf("REFUND %s", txRef)),
				Description:          fmt.Sprintf("Refund of overpayment on asset %d.", assetID),
				Group:                types.TransactionGroupRefund,
			})
			if err != nil {
				return err
			}
		}

		receipt = &types.SaleReceipt{
			AssetID:  assetID,
			Buyer:    buyer,
			Seller:   listing.Lister,
			Price:    listing.Price,
			Refund:   excess,
			TxRef:    txRef,
			SettleAt: time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	salesSettled.Inc()
	l.Log.Info().
		Int64("asset_id", int64(assetID)).
		Str("buyer", buyer.String()).
		Str("seller", receipt.Seller.String()).
		Str("price", receipt.Price.String()).
		Msg("sale settled")
	return receipt, nil
}

// Withdraw transfers the caller's full withdrawable balance out. The
// balance row is locked and zeroed before the payout voucher is produced;
// if voucher signing fails everything rolls back, and a concurrent or
// reentrant withdraw blocks on the row lock then sees a zero balance. One
// accumulated balance can therefore pay out at most once.
func (l *Ledger) Withdraw(ctx context.Context, caller types.Address) (*types.Withdrawal, error) {
	var withdrawal *types.Withdrawal
	err := l.tx(ctx, func(tx pgx.Tx) error {
		amount, err := db.BalanceGetForUpdate(ctx, tx, caller)
		if err != nil {
			return err
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return terror.Error(types.ErrNothingToWithdraw, "No withdrawable balance.")
		}

		err = db.BalanceZero(ctx, tx, caller)
		if err != nil {
			return err
		}

		nonce := uuid.Must(uuid.NewV4()).String()
		err = db.TransactionInsert(ctx, tx, &types.Transaction{
			Credit:               caller,
			Debit:                caller,
			Amount:               amount,
			TransactionReference: types.TransactionReference(fmt.Sprintf("WITHDRAWAL %s", nonce)),
			Description:          "Withdrawal of sale proceeds.",
			Group:                types.TransactionGroupWithdrawal,
		})
		if err != nil {
			return err
		}

		// external interaction last: internal state is already settled when
		// the voucher is produced
		signature, err := l.Payout.Sign(caller, amount, nonce)
		if err != nil {
			return terror.Error(err, "Failed to sign payout, please try again.")
		}

		withdrawal = &types.Withdrawal{
			Holder:    caller,
			Amount:    amount,
			Nonce:     nonce,
			Signature: signature,
		}
		return db.WithdrawalInsert(ctx, tx, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	withdrawalsIssued.Inc()
	l.Log.Info().
		Str("holder", caller.String()).
		Str("amount", withdrawal.Amount.String()).
		Msg("withdrawal issued")
	return withdrawal, nil
}

// OwnerOf returns the current owner of an asset
func (l *Ledger) OwnerOf(ctx context.Context, assetID types.AssetID) (types.Address, error) {
	asset, err := db.AssetGet(ctx, l.Conn, assetID)
	if err != nil {
		return "", err
	}
	return asset.Owner, nil
}

// LocatorOf returns the content locator bound to an asset at mint
func (l *Ledger) LocatorOf(ctx context.Context, assetID types.AssetID) (string, error) {
	asset, err := db.AssetGet(ctx, l.Conn, assetID)
	if err != nil {
		return "", err
	}
	return asset.Locator, nil
}

// ActiveListing returns the active listing for an asset, or nil if there is
// none
func (l *Ledger) ActiveListing(ctx context.Context, assetID types.AssetID) (*types.Listing, error) {
	listing, err := db.ListingGet(ctx, l.Conn, assetID)
	if err != nil {
		if errors.Is(err, types.ErrNotListed) {
			return nil, nil
		}
		return nil, err
	}
	return listing, nil
}

// BalanceOf returns the holder's current withdrawable balance
func (l *Ledger) BalanceOf(ctx context.Context, holder types.Address) (decimal.Decimal, error) {
	return db.BalanceGet(ctx, l.Conn, holder)
}

// AssetDetail returns an asset together with its listing state
func (l *Ledger) AssetDetail(ctx context.Context, assetID types.AssetID) (*types.AssetDetail, error) {
	return db.AssetDetailGet(ctx, l.Conn, assetID)
}

// AssetsByOwner returns every asset the owner currently holds
func (l *Ledger) AssetsByOwner(ctx context.Context, owner types.Address) ([]*types.AssetDetail, error) {
	return db.AssetsByOwner(ctx, l.Conn, owner)
}

// Listings returns every active listing for the browse view
func (l *Ledger) Listings(ctx context.Context) ([]*types.ListingDetail, error) {
	return db.ListingsAll(ctx, l.Conn)
}

// Withdrawals returns the holder's withdrawal history
func (l *Ledger) Withdrawals(ctx context.Context, holder types.Address) ([]*types.Withdrawal, error) {
	return db.WithdrawalsByHolder(ctx, l.Conn, holder)
}

// TransactionsFor returns the journal entries where the holder is either
// side of the entry
func (l *Ledger) TransactionsFor(ctx context.Context, holder types.Address) ([]*types.Transaction, error) {
	return db.TransactionsByAddress(ctx, l.Conn, holder)
}
