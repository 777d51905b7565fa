package host

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	h := &Host{DebugPort: 9222, EnableLogging: true}
	assert.Equal(t, []string{"--remote-debugging-port=9222", "--enable-logging"}, h.Args())

	h.EnableLogging = false
	assert.Equal(t, []string{"--remote-debugging-port=9222"}, h.Args())
}

func TestMatches(t *testing.T) {
	h := &Host{}
	assert.True(t, h.matches("ms-teams.exe"))
	assert.True(t, h.matches("Teams"))
	assert.False(t, h.matches("teamspeak"))

	h.Names = []string{"chrome"}
	assert.True(t, h.matches("chrome.exe"))
	assert.False(t, h.matches("ms-teams"))
}

func TestLaunchWithoutPath(t *testing.T) {
	assert.ErrorIs(t, (&Host{}).Launch(), ErrNoExecutable)
}

func TestWaitForDebugger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/version", r.URL.Path)
		w.Write([]byte(`{"Browser":"Chrome"}`))
	}))
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, (&Host{DebugPort: port}).WaitForDebugger(ctx, 10*time.Millisecond))
}

func TestWaitForDebuggerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, (&Host{DebugPort: port}).WaitForDebugger(ctx, 10*time.Millisecond))
}
