package httpapi

import (
	"net/http"
	"net/url"
)

type nfcKeyRequest struct {
	AdminDeviceID string `json:"admin_device_id"`
}

type nfcKeyResponse struct {
	PhysicalKeyURL string `json:"physical_key_url"`
}

type startRequest struct {
	PhysicalKeyHex string `json:"physical_key_hex"`
	AdminPassword  string `json:"admin_password"`
	AdminDeviceID  string `json:"admin_device_id"`
}

func (a *API) nfcKey(w http.ResponseWriter, r *http.Request) {
	var req nfcKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	key, err := a.gate.CreatePhysicalKey(req.AdminDeviceID)
	if err != nil {
		a.log.Warn(r.Context(), "physical key refused")
		writeError(w, err)
		return
	}

	u := url.URL{Scheme: "https", Host: a.authServer, Path: "/start/", RawQuery: url.Values{"key": {key}}.Encode()}
	writeJSON(w, http.StatusOK, nfcKeyResponse{PhysicalKeyURL: u.String()})
}

// startPage is what the physical key URL opens. Once started it redirects
// away so the key does not linger in the address bar.
func (a *API) startPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}
	if a.gate.Ready() {
		http.Redirect(w, r, "/started", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"started": false})
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := a.gate.Unlock(req.PhysicalKeyHex, req.AdminPassword, req.AdminDeviceID); err != nil {
		a.log.Warn(r.Context(), "start refused", "error", err)
		writeError(w, err)
		return
	}

	a.log.Info(r.Context(), "service started")
	writeJSON(w, http.StatusOK, successBody{Success: true})
}
