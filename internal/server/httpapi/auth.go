package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/gorilla/mux"
)

type emailRequest struct {
	Email string `json:"email"`
}

type actionResponse struct {
	Action string `json:"action"`
}

type authRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	Device   *models.Device `json:"device"`
}

type tokenRequest struct {
	Token  string         `json:"token"`
	Device *models.Device `json:"device"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (a *API) email(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	action, err := a.auth.CheckEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Action: action})
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := a.auth.Authenticate(r.Context(), req.Email, req.Password, req.Name, device(r, req.Device))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (a *API) delegate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := a.auth.Delegate(r.Context(), req.Token, mux.Vars(r)["app"], device(r, req.Device))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (a *API) accountInfo(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Token == "" {
		req.Token = bearer(r)
	}
	if req.Token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "No token provided"})
		return
	}

	info, err := a.auth.AccountInfo(r.Context(), req.Token, appOrigin(r), device(r, req.Device).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
