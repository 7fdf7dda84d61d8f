package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Khaledaun/orion-console/internal/auth"
	"github.com/Khaledaun/orion-console/internal/gateway"
	"github.com/Khaledaun/orion-console/internal/httpapi"
	"github.com/Khaledaun/orion-console/internal/token"
)

func registerRoutes(api *httpapi.API, gw *gateway.Gateway, scoped *token.Service) {
	api.HandleIdentity("/v1/whoami", gateway.Authenticated(), func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":  id.UserID,
			"roles":    id.Roles.List(),
			"source":   string(id.Source),
			"degraded": id.Degraded,
		})
	})

	api.HandleIdentity("/v1/content/edit", gateway.EditAccess(), func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		writeJSON(w, http.StatusOK, map[string]any{
			"editor": id.UserID,
			"access": "edit",
		})
	})

	api.Handle("/v1/drafts", gateway.ForScope(token.ScopeReadDrafts), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"drafts": []string{}})
	})

	api.HandleIdentity("/v1/tokens", gateway.ForRole(auth.RoleAdmin), func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		switch r.Method {
		case http.MethodPost:
			issueToken(w, r, id, scoped)
		case http.MethodGet:
			listTokens(w, r, scoped)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	api.Handle("/v1/tokens/revoke", gateway.ForRole(auth.RoleAdmin), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			http.Error(w, "token is required", http.StatusBadRequest)
			return
		}
		if err := scoped.Revoke(r.Context(), body.Token); err != nil {
			http.Error(w, "revoke failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	api.Handle("/v1/audit/recent", gateway.ForRole(auth.RoleAdmin), func(w http.ResponseWriter, r *http.Request) {
		entries, err := gw.Audit().Recent(r.Context(), 100)
		if err != nil {
			http.Error(w, "audit unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})
}

func issueToken(w http.ResponseWriter, r *http.Request, id auth.Identity, scoped *token.Service) {
	var body struct {
		SiteID     string   `json:"site_id"`
		Scopes     []string `json:"scopes"`
		ExpiryDays int      `json:"expiry_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	raw, rec, err := scoped.Issue(r.Context(), id.UserID, body.SiteID, body.Scopes, body.ExpiryDays)
	if err != nil {
		if errors.Is(err, token.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      raw,
		"id":         rec.ID,
		"scopes":     rec.Scopes,
		"expires_at": rec.ExpiresAt,
	})
}

func listTokens(w http.ResponseWriter, r *http.Request, scoped *token.Service) {
	recs, err := scoped.List(r.Context(), r.URL.Query().Get("site_id"))
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
