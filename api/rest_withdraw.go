package api

import (
	"encoding/json"
	"net/http"
	"relic-services/types"

	"github.com/go-chi/chi/v5"
	"github.com/ninja-software/terror/v2"
)

// Withdraw pays out the caller's full withdrawable balance. The response
// carries the signed payout voucher the caller submits to the payment
// layer; the balance is already zeroed by the time the voucher exists.
func (api *API) Withdraw(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	withdrawal, err := api.Ledger.Withdraw(r.Context(), caller)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(withdrawal)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// WithdrawalsList returns the caller's withdrawal history
func (api *API) WithdrawalsList(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	withdrawals, err := api.Ledger.Withdrawals(r.Context(), caller)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(withdrawals)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// TransactionsList returns the caller's journal entries, newest first
func (api *API) TransactionsList(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	transactions, err := api.Ledger.TransactionsFor(r.Context(), caller)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(transactions)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// BalanceGet returns a holder's current withdrawable balance
func (api *API) BalanceGet(w http.ResponseWriter, r *http.Request) (int, error) {
	addr, err := types.AddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid address.")
	}

	balance, err := api.Ledger.BalanceOf(r.Context(), addr)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(struct {
		Holder  types.Address `json:"holder"`
		Balance string        `json:"balance"`
	}{
		Holder:  addr,
		Balance: balance.String(),
	})
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}
