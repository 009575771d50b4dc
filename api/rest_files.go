package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ninja-software/terror/v2"
)

// FileGet serves stored blob content by locator id
func (api *API) FileGet(w http.ResponseWriter, r *http.Request) (int, error) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		return http.StatusBadRequest, terror.Error(terror.ErrInvalidInput, "no id provided")
	}

	blob, err := api.Blobs.Get(r.Context(), "blob://"+idStr)
	if err != nil {
		return http.StatusNotFound, terror.Error(err, "attachment not found")
	}

	disposition := "attachment"
	if r.URL.Query().Get("view") == "true" {
		disposition = "inline"
	}

	if blob.MimeType != "" && blob.MimeType != "unknown" {
		w.Header().Add("Content-Type", blob.MimeType)
	}
	w.Header().Add("Content-Disposition", fmt.Sprintf("%s;filename=%s", disposition, blob.FileName))
	_, err = w.Write(blob.File)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}
