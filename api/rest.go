package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"relic-services/types"

	"github.com/ninja-software/terror/v2"
)

type ErrorMessage string

const (
	Unauthorised          ErrorMessage = "Unauthorised - Please connect your wallet"
	Forbidden             ErrorMessage = "Forbidden - You do not have permissions for this"
	InternalErrorTryAgain ErrorMessage = "Internal Error - Please try again in a few minutes"
	InputError            ErrorMessage = "Input Error - Please try again"
)

func (errMsg ErrorMessage) String() string {
	return string(errMsg)
}

// ErrorObject is used by the front end react-fetching-library
type ErrorObject struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

// StatusForError maps a ledger error kind to an HTTP status code
func StatusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNotListed):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, types.ErrSelfPurchase):
		return http.StatusForbidden
	case errors.Is(err, types.ErrAlreadyBound),
		errors.Is(err, types.ErrAlreadyListed),
		errors.Is(err, types.ErrStaleListing):
		return http.StatusConflict
	case errors.Is(err, types.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrNothingToWithdraw):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WithError handles error responses
func (api *API) WithError(next func(w http.ResponseWriter, r *http.Request) (int, error)) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		code, err := next(w, r)
		if err == nil {
			return
		}

		errObj := &ErrorObject{
			Message:   err.Error(),
			ErrorCode: fmt.Sprintf("%d", code),
		}
		var bErr *terror.TError
		if errors.As(err, &bErr) {
			errObj.Message = bErr.Message

			switch bErr.Level {
			case terror.ErrLevelWarn:
				api.Log.Warn().Err(err).Str("stack trace", terror.Echo(bErr, false)).Msg("rest error")
			default:
				api.Log.Err(err).Str("stack trace", terror.Echo(bErr, false)).Msg("rest error")
			}

			// generic messages when no friendly message was set
			if bErr.Error() == bErr.Message {
				switch code {
				case http.StatusInternalServerError:
					errObj.Message = InternalErrorTryAgain.String()
				case http.StatusForbidden:
					errObj.Message = Forbidden.String()
				case http.StatusUnauthorized:
					errObj.Message = Unauthorised.String()
				case http.StatusBadRequest:
					errObj.Message = InputError.String()
				}
			}
		} else {
			api.Log.Err(err).Str("r.URL.Path", r.URL.Path).Msg("rest error")
		}

		jsonErr, err := json.Marshal(errObj)
		if err != nil {
			terror.Echo(err)
			http.Error(w, `{"message":"JSON failed, please contact support.","error_code":"00001"}`, code)
			return
		}
		http.Error(w, string(jsonErr), code)
	}
	return fn
}

// WithAddress checks the request for an authenticated caller address
func WithAddress(api *API, next func(w http.ResponseWriter, r *http.Request, caller types.Address) (int, error)) func(w http.ResponseWriter, r *http.Request) (int, error) {
	fn := func(w http.ResponseWriter, r *http.Request) (int, error) {
		caller, err := api.AddressFromToken(r)
		if err != nil {
			return http.StatusUnauthorized, terror.Error(err, "Please connect your wallet.")
		}
		return next(w, r, caller)
	}
	return fn
}
