package api

import (
	"fmt"
	"net/http"
	"relic-services/db"

	"github.com/ninja-software/terror/v2"
)

var (
	ErrCheckDBQuery = fmt.Errorf("error: executing db query")
	ErrCheckDBDirty = fmt.Errorf("db is dirty")
)

// Check reports whether the server and schema are healthy
func (api *API) Check(w http.ResponseWriter, r *http.Request) (int, error) {
	count := 0
	err := db.IsSchemaDirty(r.Context(), api.Conn, &count)
	if err != nil {
		return http.StatusServiceUnavailable, terror.Error(ErrCheckDBQuery)
	}
	if count > 0 {
		return http.StatusServiceUnavailable, terror.Error(ErrCheckDBDirty)
	}
	_, err = w.Write([]byte("ok"))
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err)
	}
	return http.StatusOK, nil
}
