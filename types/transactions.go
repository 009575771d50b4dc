package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionGroup string

const (
	TransactionGroupSale       TransactionGroup = "SALE"
	TransactionGroupRefund     TransactionGroup = "REFUND"
	TransactionGroupWithdrawal TransactionGroup = "WITHDRAWAL"
)

type TransactionReference string

// Transaction is a single double-entry journal row. Every settled sale,
// overpayment refund and withdrawal writes one; the journal is the source
// of truth for conservation checks.
type Transaction struct {
	ID                   string               `json:"id" db:"id"`
	Credit               Address              `json:"credit" db:"credit"`
	Debit                Address              `json:"debit" db:"debit"`
	Amount               decimal.Decimal      `json:"amount" db:"amount"`
	TransactionReference TransactionReference `json:"transaction_reference" db:"transaction_reference"`
	Description          string               `json:"description" db:"description"`
	Group                TransactionGroup     `json:"group" db:"tx_group"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
}

// SaleReceipt is returned by a successful purchase
type SaleReceipt struct {
	AssetID  AssetID              `json:"asset_id"`
	Buyer    Address              `json:"buyer"`
	Seller   Address              `json:"seller"`
	Price    decimal.Decimal      `json:"price"`
	Refund   decimal.Decimal      `json:"refund"`
	TxRef    TransactionReference `json:"transaction_reference"`
	SettleAt time.Time            `json:"settled_at"`
}

// Withdrawal records a completed debit-to-zero withdrawal together with the
// signed payout voucher handed to the external payment layer
type Withdrawal struct {
	ID        string          `json:"id" db:"id"`
	Holder    Address         `json:"holder" db:"holder_address"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Nonce     string          `json:"nonce" db:"nonce"`
	Signature string          `json:"signature" db:"signature"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
