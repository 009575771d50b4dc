package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// TransactionInsert adds an entry to the double-entry journal
func TransactionInsert(ctx context.Context, conn Conn, tx *types.Transaction) error {
	q := `--sql
		INSERT INTO transactions (credit, debit, amount, transaction_reference, description, tx_group)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := pgxscan.Get(ctx, conn, tx, q,
		tx.Credit,
		tx.Debit,
		tx.Amount,
		tx.TransactionReference,
		tx.Description,
		tx.Group,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// TransactionsByAddress returns journal rows where the address is either
// side of the entry, newest first
func TransactionsByAddress(ctx context.Context, conn Conn, addr types.Address) ([]*types.Transaction, error) {
	transactions := []*types.Transaction{}
	q := `--sql
		SELECT id, credit, debit, amount, transaction_reference, description, tx_group, created_at
		FROM transactions
		WHERE credit = $1 OR debit = $1
		ORDER BY created_at DESC`
	err := pgxscan.Select(ctx, conn, &transactions, q, addr)
	if err != nil {
		return nil, terror.Error(err)
	}
	return transactions, nil
}

// TransactionSumByGroup returns the total journalled amount for one group
func TransactionSumByGroup(ctx context.Context, conn Conn, group types.TransactionGroup) (decimal.Decimal, error) {
	var sum decimal.Decimal
	q := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE tx_group = $1`
	err := pgxscan.Get(ctx, conn, &sum, q, group)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return sum, nil
}
