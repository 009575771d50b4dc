package api

import (
	"encoding/json"
	"net/http"
	"relic-services/types"

	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// Purchase settles a buy. The payment amount arrives attested by the
// transaction-submission layer; the ledger validates it against the listing
// price and settles ownership, listing removal and the seller credit as one
// unit.
func (api *API) Purchase(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	assetID, err := assetIDParam(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	req := &struct {
		PaymentAmount decimal.Decimal `json:"payment_amount"`
	}{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid request.")
	}
	defer r.Body.Close()

	receipt, err := api.Ledger.Buy(r.Context(), assetID, caller, req.PaymentAmount)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(receipt)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}
