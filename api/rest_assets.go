package api

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"relic-services/blob"
	"relic-services/types"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ninja-software/terror/v2"
)

// AssetCreate uploads the content to the blob store, builds the metadata
// document and mints the asset for the caller.
// The ledger only ever sees the resulting locator; uploads happen strictly
// before the mint transaction.
func (api *API) AssetCreate(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	err := r.ParseMultipartForm(api.Config.MaxFileSizeBytes)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid upload.")
	}

	name := api.HTMLSanitize.Sanitize(r.FormValue("name"))
	description := api.HTMLSanitize.Sanitize(r.FormValue("description"))
	fileType := r.FormValue("file_type")
	if fileType == "" {
		fileType = "image"
	}

	if name == "" || description == "" {
		return http.StatusBadRequest, terror.Error(types.ErrInvalidInput, "Name and description are required.")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "File is required.")
	}
	defer file.Close()

	if header.Size > api.Config.MaxFileSizeBytes {
		return http.StatusBadRequest, terror.Error(types.ErrInvalidInput, "File size exceeds the upload limit.")
	}

	content, err := ioutil.ReadAll(file)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "Could not read file.")
	}

	var thumbnail []byte
	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err == nil {
		defer thumbFile.Close()
		if thumbHeader.Size > api.Config.MaxThumbnailSizeBytes {
			return http.StatusBadRequest, terror.Error(types.ErrInvalidInput, "Thumbnail size exceeds the upload limit.")
		}
		thumbnail, err = ioutil.ReadAll(thumbFile)
		if err != nil {
			return http.StatusInternalServerError, terror.Error(err, "Could not read thumbnail.")
		}
	}
	if (fileType == "video" || fileType == "audio") && len(thumbnail) == 0 {
		return http.StatusBadRequest, terror.Error(types.ErrInvalidInput, "Thumbnail required for video/audio files.")
	}

	locator, err := blob.PrepareMetadata(r.Context(), api.Blobs, caller, name, description, fileType, header.Filename, content, thumbnail)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "Could not store asset content.")
	}

	assetID, err := api.Ledger.Mint(r.Context(), caller, locator)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(struct {
		AssetID types.AssetID `json:"asset_id"`
		Locator string        `json:"locator"`
	}{
		AssetID: assetID,
		Locator: locator,
	})
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// AssetGet returns owner, locator and listing state for one asset
func (api *API) AssetGet(w http.ResponseWriter, r *http.Request) (int, error) {
	assetID, err := assetIDParam(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	detail, err := api.Ledger.AssetDetail(r.Context(), assetID)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(detail)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// AssetsByUser returns the assets currently owned by an address
func (api *API) AssetsByUser(w http.ResponseWriter, r *http.Request) (int, error) {
	addr, err := types.AddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid address.")
	}

	assets, err := api.Ledger.AssetsByOwner(r.Context(), addr)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(assets)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

// AssetTransfer moves an asset the caller owns directly to another holder.
// Any active listing is dropped as part of the transfer.
func (api *API) AssetTransfer(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error) {
	assetID, err := assetIDParam(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	req := &struct {
		To string `json:"to"`
	}{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid request.")
	}
	defer r.Body.Close()

	to, err := types.AddressFromHex(req.To)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "Invalid destination address.")
	}

	err = api.Ledger.Transfer(r.Context(), assetID, caller, to)
	if err != nil {
		return StatusForError(err), err
	}

	err = json.NewEncoder(w).Encode(struct {
		AssetID types.AssetID `json:"asset_id"`
		Owner   types.Address `json:"owner"`
	}{
		AssetID: assetID,
		Owner:   to,
	})
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}

func assetIDParam(r *http.Request) (types.AssetID, error) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		return 0, terror.Error(types.ErrInvalidInput, "Missing asset id.")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, terror.Error(fmt.Errorf("parse asset id: %w", err), "Invalid asset id.")
	}
	return types.AssetID(id), nil
}
