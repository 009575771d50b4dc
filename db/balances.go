package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// BalanceGet returns the holder's current withdrawable balance, zero if the
// holder has never been credited
func BalanceGet(ctx context.Context, conn Conn, holder types.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	q := `--sql
		SELECT COALESCE(
			(SELECT amount FROM balances WHERE holder_address = $1),
			0
		)`
	err := pgxscan.Get(ctx, conn, &amount, q, holder)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return amount, nil
}

// BalanceGetForUpdate locks the holder's balance row and returns the amount.
// Returns zero without taking a lock if the holder has no row yet. Must be
// called on a pgx.Tx.
func BalanceGetForUpdate(ctx context.Context, conn Conn, holder types.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	q := `--sql
		SELECT amount
		FROM balances
		WHERE holder_address = $1
		FOR UPDATE`
	err := pgxscan.Get(ctx, conn, &amount, q, holder)
	if IsNoRows(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return amount, nil
}

// BalanceAdd credits the holder's withdrawable balance, creating the row on
// first credit
func BalanceAdd(ctx context.Context, conn Conn, holder types.Address, amount decimal.Decimal) error {
	q := `--sql
		INSERT INTO balances (holder_address, amount)
		VALUES ($1, $2)
		ON CONFLICT (holder_address)
		DO UPDATE SET amount = balances.amount + $2`
	_, err := conn.Exec(ctx, q, holder, amount)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// BalanceZero resets the holder's balance to zero
func BalanceZero(ctx context.Context, conn Conn, holder types.Address) error {
	q := `--sql
		UPDATE balances
		SET amount = 0
		WHERE holder_address = $1`
	_, err := conn.Exec(ctx, q, holder)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// BalanceSum returns the total of all withdrawable balances
func BalanceSum(ctx context.Context, conn Conn) (decimal.Decimal, error) {
	var sum decimal.Decimal
	q := `SELECT COALESCE(SUM(amount), 0) FROM balances`
	err := pgxscan.Get(ctx, conn, &sum, q)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return sum, nil
}
