package api

import (
	"encoding/json"
	"net/http"
	"relic-services/types"

	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// ListingCreate puts the caller's asset up for sale
func (api *API) ListingCreate(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	assetID, err := assetIDParam(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	req := &struct {
		Price decimal.Decimal `json:"price"`
	}{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid request.")
	}
	defer r.Body.Close()

	listing, err := api.Ledger.CreateListing(r.Context(), assetID, req.Price, caller)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(listing)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// ListingCancel removes the caller's active listing
func (api *API) ListingCancel(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	assetID, err := assetIDParam(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	err = api.Ledger.CancelListing(r.Context(), assetID, caller)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(struct {
		AssetID types.AssetID `json:"asset_id"`
		Listed  bool          `json:"listed"`
	}{
		AssetID: assetID,
		Listed:  false,
	})
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// ListingsAll returns every asset currently for sale
func (api *API) ListingsAll(w http.ResponseWriter, r *http.Request) (int, error) {
	listings, err := api.Ledger.Listings(r.Context())
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(listings)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}
