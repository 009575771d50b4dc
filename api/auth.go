package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"relic-services/types"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofrs/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/ninja-software/terror/v2"
)

// AuthConnect verifies a wallet signature over the configured sign message
// and a client supplied nonce, then issues a bearer token carrying the
// caller address. The marketplace never authenticates identity beyond this;
// it only compares addresses.
func (api *API) AuthConnect(w http.ResponseWriter, r *http.Request) (int, error) {
	req := &struct {
		Address   string `json:"address"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid request.")
	}
	defer r.Body.Close()

	if req.Address == "" || req.Nonce == "" || req.Signature == "" {
		return http.StatusBadRequest, terror.Error(types.ErrInvalidInput, "Missing address, nonce or signature.")
	}

	addr, err := types.AddressFromHex(req.Address)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid address.")
	}

	err = api.VerifySignature(req.Signature, req.Nonce, common.HexToAddress(req.Address))
	if err != nil {
		return http.StatusUnauthorized, terror.Error(err, "Signature verification failed.")
	}

	token := jwt.New()
	_ = token.Set(jwt.JwtIDKey, uuid.Must(uuid.NewV4()).String())
	_ = token.Set(jwt.ExpirationKey, time.Now().AddDate(0, 0, api.Config.TokenExpirationDays))
	_ = token.Set("address", addr.String())

	signed, err := jwt.Sign(token, jwa.HS256, []byte(api.Config.EncryptTokensKey))
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "Unable to issue token.")
	}

	err = json.NewEncoder(w).Encode(struct {
		Token   string `json:"token"`
		Address string `json:"address"`
	}{
		Token:   string(signed),
		Address: addr.String(),
	})
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// AddressFromToken pulls the authenticated caller address out of the bearer
// token
func (api *API) AddressFromToken(r *http.Request) (types.Address, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", terror.Error(fmt.Errorf("missing bearer token"))
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithVerify(jwa.HS256, []byte(api.Config.EncryptTokensKey)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", terror.Error(err)
	}

	claim, ok := token.Get("address")
	if !ok {
		return "", terror.Error(fmt.Errorf("token missing address claim"))
	}
	addrStr, ok := claim.(string)
	if !ok {
		return "", terror.Error(fmt.Errorf("token address claim is not a string"))
	}
	return types.AddressFromHex(addrStr)
}

// VerifySignature checks that the wallet at publicKey signed the configured
// message and nonce
func (api *API) VerifySignature(signature string, nonce string, publicKey common.Address) error {
	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return err
	}
	if len(decodedSig) != 65 {
		return terror.Error(fmt.Errorf("signature length %d", len(decodedSig)))
	}

	if decodedSig[64] == 0 || decodedSig[64] == 1 {
		decodedSig[64] += 27
	} else if decodedSig[64] != 27 && decodedSig[64] != 28 {
		return terror.Error(fmt.Errorf("decode sig invalid %v", decodedSig[64]))
	}
	decodedSig[64] -= 27

	msg := []byte(fmt.Sprintf("%s:\n %s", api.Config.SignMessage, nonce))
	prefixedNonce := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)

	hash := crypto.Keccak256Hash([]byte(prefixedNonce))
	recoveredPublicKey, err := crypto.Ecrecover(hash.Bytes(), decodedSig)
	if err != nil {
		return err
	}

	secp256k1RecoveredPublicKey, err := crypto.UnmarshalPubkey(recoveredPublicKey)
	if err != nil {
		return err
	}

	recoveredAddress := crypto.PubkeyToAddress(*secp256k1RecoveredPublicKey).Hex()
	if !strings.EqualFold(publicKey.Hex(), recoveredAddress) {
		return terror.Error(fmt.Errorf("public address does not match recovered address"))
	}
	return nil
}
