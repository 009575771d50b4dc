package types

// OverpaymentPolicy controls what a purchase does with payment beyond the
// listing price. Excess is never retained by the marketplace under either
// policy.
type OverpaymentPolicy string

const (
	// OverpaymentRefund settles the sale at the listing price and returns
	// the excess to the buyer in the same operation
	OverpaymentRefund OverpaymentPolicy = "refund"
	// OverpaymentReject rejects any payment that is not exactly the listing
	// price
	OverpaymentReject OverpaymentPolicy = "reject"
)

type Config struct {
	Environment        string
	APIAddr            string
	MarketplaceHostURL string

	EncryptTokensKey    string
	TokenExpirationDays int
	SignMessage         string // the message wallets sign during connect, needs to match frontend

	OverpaymentPolicy OverpaymentPolicy

	MaxFileSizeBytes      int64
	MaxThumbnailSizeBytes int64

	PayoutSignerKey string // hex encoded operator key for withdrawal vouchers
}
