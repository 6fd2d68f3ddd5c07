package httpapi

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StopsOnContextCancel(t *testing.T) {
	listen, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer("", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listen) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listen.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewServer("127.0.0.1:99999", http.NotFoundHandler(), logging.Nop{})
	assert.Error(t, srv.Run(context.Background()))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrServiceNotReady, http.StatusServiceUnavailable},
		{common.ErrAlreadyStarted, http.StatusConflict},
		{common.ErrInvalidToken, http.StatusUnauthorized},
		{common.ErrForbidden, http.StatusForbidden},
		{common.ErrRefuse, http.StatusForbidden},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrBadRequest, http.StatusBadRequest},
		{common.ErrDecryptFailure, http.StatusUnprocessableEntity},
		{net.ErrClosed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAppOrigin(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", appOrigin(r))

	r.Header.Set("Origin", "https://Notes.ngwy.fr")
	assert.Equal(t, "notes.ngwy.fr", appOrigin(r))

	r.Header.Set("Referer", "https://todo.ngwy.fr:8443/list?x=1")
	assert.Equal(t, "todo.ngwy.fr", appOrigin(r))
}
