package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func serverConfig(port int) *config.ServerConfig {
	return &config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            port,
		ReadTimeout:     "5s",
		WriteTimeout:    "5s",
		ShutdownTimeout: "1s",
	}
}

func TestListenerServesAndDrains(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	lc := lifecycle.New()
	l := newListener(serverConfig(0), handler, discard)
	require.NoError(t, l.Start(lc))

	resp, err := http.Get("http://" + l.Addr() + "/vectors")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, lc.Shutdown(2*time.Second))

	_, err = http.Get("http://" + l.Addr() + "/vectors")
	assert.Error(t, err, "listener should be closed after shutdown")
}

func TestListenerPortConflict(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	port := taken.Addr().(*net.TCPAddr).Port
	l := newListener(serverConfig(port), http.NotFoundHandler(), discard)

	err = l.Start(lifecycle.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
