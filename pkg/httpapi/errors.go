package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oladejiayo/localzure-sub003/pkg/keyvault"
	"github.com/oladejiayo/localzure-sub003/pkg/oauth"
)

// errorBody is the wire shape every error response carries:
// {"error":{"code","message"}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForKeyVaultCode maps a keyvault.Error's Code to the HTTP status
// the reference routes use for it.
func statusForKeyVaultCode(code string) int {
	switch code {
	case "BadParameter":
		return http.StatusBadRequest
	case "SecretDisabled":
		return http.StatusForbidden
	case "SecretNotFound", "VaultNotFound":
		return http.StatusNotFound
	case "Forbidden":
		return http.StatusForbidden
	case "Conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// statusForOAuthCode maps an oauth.Error's Code (an RFC 6749 §5.2 wire
// code) to an HTTP status, per the convention the token endpoint uses:
// invalid_client is a 401, everything else naming a bad request is 400.
func statusForOAuthCode(code string) int {
	switch code {
	case "invalid_client":
		return http.StatusUnauthorized
	case "invalid_grant", "invalid_scope", "invalid_token", "invalid_request":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and the {"error":{...}} body
// shape, preferring the most specific typed error this facade knows
// about and falling back to a generic 500 for anything else.
func writeError(w http.ResponseWriter, err error) {
	var kvErr *keyvault.Error
	var oauthErr *oauth.Error

	var status int
	var code, message string

	switch {
	case errors.As(err, &kvErr):
		status = statusForKeyVaultCode(kvErr.Code)
		code = kvErr.Code
		message = kvErr.Message
	case errors.As(err, &oauthErr):
		status = statusForOAuthCode(oauthErr.Code)
		code = oauthErr.Code
		message = oauthErr.Description
	default:
		status = http.StatusInternalServerError
		code = "InternalError"
		message = err.Error()
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
