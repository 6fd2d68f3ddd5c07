package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/server/storage"
)

type ctxKey string

const callerKey ctxKey = "caller"

// recorder captures status and size for the access log.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// accessLog logs one line per request. The raw query is left out since it
// may carry a physical key.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		a.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"size", rec.size,
			"duration", time.Since(start).String(),
		)
	})
}

func (a *API) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// requireReady answers 503 until the service is unlocked.
func (a *API) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.gate.Ready() {
			writeError(w, common.ErrServiceNotReady)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken authorizes the bearer token for the request origin and
// stores the caller in the context.
func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "No token provided"})
			return
		}

		c, err := a.storage.Authorize(r.Context(), token, appOrigin(r), device(r, nil).ID, r.Header.Get(common.ClientIDHeader))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, c)))
	})
}

func callerFrom(ctx context.Context) storage.Caller {
	c, _ := ctx.Value(callerKey).(storage.Caller)
	return c
}
