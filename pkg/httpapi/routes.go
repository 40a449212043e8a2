package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oladejiayo/localzure-sub003/pkg/keyvault"
	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
	"github.com/oladejiayo/localzure-sub003/pkg/oauth"
)

// registerRoutes wires every secret, deleted-secret and OAuth route
// onto its handler, plus the operational /health, /ready and /metrics
// endpoints.
func (s *Server) registerRoutes(baseURL string) {
	s.mux.HandleFunc("PUT /{vault}/secrets/{name}", s.handleSetSecret)
	s.mux.HandleFunc("GET /{vault}/secrets", s.handleListSecrets)
	s.mux.HandleFunc("GET /{vault}/secrets/{name}/versions", s.handleListSecretVersions)
	s.mux.HandleFunc("GET /{vault}/secrets/{name}/{version}", s.handleGetSecret)
	s.mux.HandleFunc("GET /{vault}/secrets/{name}", s.handleGetSecret)
	s.mux.HandleFunc("PATCH /{vault}/secrets/{name}/{version}", s.handleUpdateSecretProperties)
	s.mux.HandleFunc("DELETE /{vault}/secrets/{name}", s.handleDeleteSecret)

	s.mux.HandleFunc("GET /{vault}/deletedsecrets", s.handleListDeletedSecrets)
	s.mux.HandleFunc("GET /{vault}/deletedsecrets/{name}", s.handleGetDeletedSecret)
	s.mux.HandleFunc("POST /{vault}/deletedsecrets/{name}/recover", s.handleRecoverDeletedSecret)
	s.mux.HandleFunc("DELETE /{vault}/deletedsecrets/{name}", s.handlePurgeDeletedSecret)

	s.mux.HandleFunc("GET /.localzure/debug/{vault}/secrets/{name}/writethrough", s.handleInspectWriteThrough)

	s.mux.HandleFunc("POST /.localzure/oauth/token", s.handleToken)
	s.mux.HandleFunc("GET /.localzure/oauth/keys", s.handleJWKS)
	s.mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.issuer.GetOpenIDConfiguration(baseURL))
	})

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

func maxResults(r *http.Request) int {
	raw := r.URL.Query().Get("maxresults")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleSetSecret(w http.ResponseWriter, r *http.Request) {
	var req keyvault.SetSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, keyvault.InvalidSecretNameError(r.PathValue("name"), "malformed request body"))
		return
	}

	bundle, err := s.engine.SetSecret(r.Context(), r.PathValue("vault"), r.PathValue("name"), req)
	recordKeyVaultOp(r.PathValue("vault"), "SetSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.engine.GetSecret(r.PathValue("vault"), r.PathValue("name"), r.PathValue("version"))
	recordKeyVaultOp(r.PathValue("vault"), "GetSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ListSecrets(r.PathValue("vault"), maxResults(r))
	recordKeyVaultOp(r.PathValue("vault"), "ListSecrets", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSecretVersions(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ListSecretVersions(r.PathValue("vault"), r.PathValue("name"), maxResults(r))
	recordKeyVaultOp(r.PathValue("vault"), "ListSecretVersions", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateSecretProperties(w http.ResponseWriter, r *http.Request) {
	var req keyvault.UpdateSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, keyvault.InvalidSecretNameError(r.PathValue("name"), "malformed request body"))
		return
	}

	bundle, err := s.engine.UpdateSecretProperties(r.PathValue("vault"), r.PathValue("name"), r.PathValue("version"), req)
	recordKeyVaultOp(r.PathValue("vault"), "UpdateSecretProperties", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.engine.DeleteSecret(r.PathValue("vault"), r.PathValue("name"))
	recordKeyVaultOp(r.PathValue("vault"), "DeleteSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (s *Server) handleGetDeletedSecret(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.engine.GetDeletedSecret(r.PathValue("vault"), r.PathValue("name"))
	recordKeyVaultOp(r.PathValue("vault"), "GetDeletedSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

func (s *Server) handleListDeletedSecrets(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ListDeletedSecrets(r.PathValue("vault"), maxResults(r))
	recordKeyVaultOp(r.PathValue("vault"), "ListDeletedSecrets", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecoverDeletedSecret(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.engine.RecoverDeletedSecret(r.PathValue("vault"), r.PathValue("name"))
	recordKeyVaultOp(r.PathValue("vault"), "RecoverDeletedSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handlePurgeDeletedSecret(w http.ResponseWriter, r *http.Request) {
	err := s.engine.PurgeDeletedSecret(r.PathValue("vault"), r.PathValue("name"))
	recordKeyVaultOp(r.PathValue("vault"), "PurgeDeletedSecret", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeThroughResponse is the body of the write-through debug
// endpoint: the decrypted mirror of a secret's value as last seen by
// the state backend, independent of the engine's in-memory record.
type writeThroughResponse struct {
	Value string `json:"value"`
}

// handleInspectWriteThrough decrypts and returns the sealed
// write-through mirror of a secret, exercising the read half of the
// at-rest encryption path (SealSecretValue/OpenSecretValue) rather
// than leaving it exercised only by tests.
func (s *Server) handleInspectWriteThrough(w http.ResponseWriter, r *http.Request) {
	value, found, err := s.engine.InspectWriteThrough(r.Context(), r.PathValue("vault"), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, keyvault.SecretNotFoundError(r.PathValue("name"), ""))
		return
	}
	writeJSON(w, http.StatusOK, writeThroughResponse{Value: value})
}

// handleToken implements the RFC 6749 §4.4 client_credentials token
// endpoint: form-encoded request, JSON response.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, oauth.InvalidGrantError("malformed form body"))
		return
	}

	req := oauth.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Scope:        r.PostForm.Get("scope"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		Resource:     r.PostForm.Get("resource"),
	}

	resp, err := s.issuer.IssueToken(req)
	if err != nil {
		recordOAuthError(err)
		writeError(w, err)
		return
	}
	metrics.OAuthTokensIssuedTotal.WithLabelValues(resp.Scope).Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.issuer.GetJWKS())
}

func recordKeyVaultOp(vault, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.KeyVaultOpsTotal.WithLabelValues(vault, op, outcome).Inc()
}

func recordOAuthError(err error) {
	var oauthErr *oauth.Error
	code := "unknown"
	if oe, ok := err.(*oauth.Error); ok {
		oauthErr = oe
		code = oauthErr.Code
	}
	metrics.OAuthTokenErrorsTotal.WithLabelValues(code).Inc()
}
