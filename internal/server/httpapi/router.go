package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/services"
	"github.com/gorilla/mux"
)

// Gate is the admin bootstrap as seen by the HTTP layer.
type Gate interface {
	Ready() bool
	CreatePhysicalKey(adminDeviceID string) (string, error)
	Unlock(physicalKeyHex, adminPassword, adminDeviceID string) error
}

type API struct {
	gate       Gate
	auth       *services.AuthService
	storage    *services.StorageService
	ws         http.Handler
	authServer string
	maxBody    int64
	log        logging.Logger
}

// NewAPI builds the handlers. ws serves websocket upgrades on /ws and may be
// nil; maxBody caps request bodies, 0 means no cap.
func NewAPI(gate Gate, auth *services.AuthService, storage *services.StorageService, ws http.Handler, authServer string, maxBody int64, log logging.Logger) *API {
	return &API{
		gate:       gate,
		auth:       auth,
		storage:    storage,
		ws:         ws,
		authServer: authServer,
		maxBody:    maxBody,
		log:        log.With("module", "http"),
	}
}

// Router wires every route. Paths are matched encoded and never cleaned so
// the path resolver sees exactly what the client sent.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.SkipClean(true)
	r.Use(a.accessLog, a.limitBody)

	r.HandleFunc("/nfc-key", a.nfcKey).Methods(http.MethodPost)
	r.HandleFunc("/start", a.startPage).Methods(http.MethodGet)
	r.HandleFunc("/start", a.start).Methods(http.MethodPost)

	ready := r.NewRoute().Subrouter()
	ready.Use(a.requireReady)

	ready.HandleFunc("/email", a.email).Methods(http.MethodPost)
	ready.HandleFunc("/auth", a.authenticate).Methods(http.MethodPost)
	ready.HandleFunc("/auth/{app}", a.delegate).Methods(http.MethodPost)
	ready.HandleFunc("/account-info", a.accountInfo).Methods(http.MethodPost)
	if a.ws != nil {
		ready.Handle("/ws", a.ws).Methods(http.MethodGet)
	}

	authed := ready.NewRoute().Subrouter()
	authed.Use(a.requireToken)

	a.storageRoute(authed, "/storage", a.rawRead, http.MethodGet)
	a.storageRoute(authed, "/storage", a.rawWrite, http.MethodPost, http.MethodPut)
	a.storageRoute(authed, "/storage", a.command(services.CmdRm), http.MethodDelete)
	a.storageRoute(authed, "/mkdir", a.command(services.CmdMkdir), http.MethodPost)
	a.storageRoute(authed, "/ls", a.command(services.CmdLs), http.MethodGet)
	a.storageRoute(authed, "/ls-r", a.command(services.CmdLsR), http.MethodGet)
	a.storageRoute(authed, "/read", a.command(services.CmdRead), http.MethodGet)
	a.storageRoute(authed, "/write", a.command(services.CmdWrite), http.MethodPost)
	a.storageRoute(authed, "/rm", a.command(services.CmdRm), http.MethodPost, http.MethodDelete)

	r.NotFoundHandler = a.accessLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	}))
	return r
}

// storageRoute serves prefix itself and everything below it.
func (a *API) storageRoute(r *mux.Router, prefix string, h http.HandlerFunc, methods ...string) {
	r.Handle(prefix, withLogical(prefix, h)).Methods(methods...)
	r.PathPrefix(prefix + "/").Handler(withLogical(prefix, h)).Methods(methods...)
}
