package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// WithdrawalInsert records a completed withdrawal and its payout voucher
func WithdrawalInsert(ctx context.Context, conn Conn, withdrawal *types.Withdrawal) error {
	q := `--sql
		INSERT INTO withdrawals (holder_address, amount, nonce, signature)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := pgxscan.Get(ctx, conn, withdrawal, q,
		withdrawal.Holder,
		withdrawal.Amount,
		withdrawal.Nonce,
		withdrawal.Signature,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// WithdrawalsByHolder returns the holder's withdrawal history, newest first
func WithdrawalsByHolder(ctx context.Context, conn Conn, holder types.Address) ([]*types.Withdrawal, error) {
	withdrawals := []*types.Withdrawal{}
	q := `--sql
		SELECT id, holder_address, amount, nonce, signature, created_at
		FROM withdrawals
		WHERE holder_address = $1
		ORDER BY created_at DESC`
	err := pgxscan.Select(ctx, conn, &withdrawals, q, holder)
	if err != nil {
		return nil, terror.Error(err)
	}
	return withdrawals, nil
}

// WithdrawalSum returns the total value ever withdrawn
func WithdrawalSum(ctx context.Context, conn Conn) (decimal.Decimal, error) {
	var sum decimal.Decimal
	q := `SELECT COALESCE(SUM(amount), 0) FROM withdrawals`
	err := pgxscan.Get(ctx, conn, &sum, q)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return sum, nil
}
