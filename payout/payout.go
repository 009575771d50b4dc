// Package payout produces the external side effect of a withdrawal: a
// voucher the chain payout contract accepts, signed by the operator key.
// The ledger hands a voucher out only after the holder's balance has been
// zeroed, so each accumulated balance can be paid at most once.
package payout

import (
	"crypto/ecdsa"
	"fmt"
	"relic-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// Signer signs a payout authorisation for a holder, amount and
// single-use nonce
type Signer interface {
	Sign(holder types.Address, amount decimal.Decimal, nonce string) (string, error)
}

// KeySigner signs vouchers with a local operator key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner parses a hex encoded secp256k1 private key
func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, terror.Error(err, "Invalid payout signer key.")
	}
	return &KeySigner{key: key}, nil
}

// OperatorAddress returns the address vouchers will recover to
func (s *KeySigner) OperatorAddress() types.Address {
	return types.Address(crypto.PubkeyToAddress(s.key.PublicKey).Hex())
}

// Sign hashes (holder, amount, nonce) the way the payout contract rebuilds
// it and signs the digest
func (s *KeySigner) Sign(holder types.Address, amount decimal.Decimal, nonce string) (string, error) {
	message := crypto.Keccak256(
		common.HexToAddress(holder.String()).Bytes(),
		common.LeftPadBytes(amount.BigInt().Bytes(), 32),
		[]byte(nonce),
	)
	prefixed := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))),
		message,
	)

	sig, err := crypto.Sign(prefixed, s.key)
	if err != nil {
		return "", terror.Error(err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the address that signed a voucher, used by tests
// and by operators verifying issued vouchers
func RecoverSigner(holder types.Address, amount decimal.Decimal, nonce string, signature string) (types.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", terror.Error(err)
	}
	if len(sig) != 65 {
		return "", terror.Error(fmt.Errorf("signature length %d", len(sig)))
	}
	recovery := make([]byte, 65)
	copy(recovery, sig)
	if recovery[64] == 27 || recovery[64] == 28 {
		recovery[64] -= 27
	}

	message := crypto.Keccak256(
		common.HexToAddress(holder.String()).Bytes(),
		common.LeftPadBytes(amount.BigInt().Bytes(), 32),
		[]byte(nonce),
	)
	prefixed := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))),
		message,
	)

	pub, err := crypto.SigToPub(prefixed, recovery)
	if err != nil {
		return "", terror.Error(err)
	}
	return types.Address(crypto.PubkeyToAddress(*pub).Hex()), nil
}
