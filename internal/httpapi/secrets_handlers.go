package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"careerwatch/internal/config"
	"careerwatch/internal/secrets"
)

type SecretsHandler struct {
	CfgVal  *atomic.Value // stores config.Config
	Secrets SecretSetter
}

type setSecretReq struct {
	Password string `json:"password"`
}

// Set stores a secret in the OS keyring: POST /secrets/{smtp|telegram|imap}.
// Loopback only.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	kind, err := secrets.ParseKind(strings.TrimPrefix(r.URL.Path, "/secrets/"))
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "unknown_secret", err.Error())
		return
	}

	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := h.Secrets.Set(kind, cfg, req.Password); err != nil {
		http.Error(w, "failed to store secret: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
