package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/server/realtime"
	"github.com/dmitrijs2005/nosuite/internal/server/services"
)

const logicalKey ctxKey = "logical"

type writeRequest struct {
	Content json.RawMessage `json:"content"`
}

// withLogical strips prefix from the escaped request path. Decoding is left
// to the path resolver.
func withLogical(prefix string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logical := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
		if logical == "" {
			logical = "/"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), logicalKey, logical)))
	})
}

func logicalFrom(ctx context.Context) string {
	p, _ := ctx.Value(logicalKey).(string)
	return p
}

// command runs one storage command and answers with its JSON response.
func (a *API) command(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd := realtime.Command{Type: typ, Path: logicalFrom(r.Context())}
		if r.Method == http.MethodPost {
			var req writeRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, err)
				return
			}
			cmd.Content = req.Content
		}

		res, err := a.storage.Exec(r.Context(), callerFrom(r.Context()), cmd)
		if err != nil {
			a.logFailure(r, typ, err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// rawRead serves the decrypted bytes verbatim.
func (a *API) rawRead(w http.ResponseWriter, r *http.Request) {
	content, err := a.storage.Read(r.Context(), callerFrom(r.Context()), logicalFrom(r.Context()))
	if err != nil {
		a.logFailure(r, "read", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(content))
	_, _ = w.Write(content)
}

// rawWrite stores the request body verbatim.
func (a *API) rawWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, common.ErrBadRequest)
		return
	}

	cmd := realtime.Command{Type: services.CmdWrite, Path: logicalFrom(r.Context()), Content: body}
	res, err := a.storage.Exec(r.Context(), callerFrom(r.Context()), cmd)
	if err != nil {
		a.logFailure(r, "write", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) logFailure(r *http.Request, op string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		a.log.Error(r.Context(), "storage request failed", "op", op, "error", err)
	}
}
