package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/radon/internal/testhelpers"
)

// TestGracefulShutdownWithClients verifies that active sessions are ended
// and the registry is closed once they have unwound.
func TestGracefulShutdownWithClients(t *testing.T) {
	s, ts := newTestServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	named := testhelpers.ConnectAs(t, url, "alice")
	anon := testhelpers.Connect(t, url)

	require.NoError(t, s.Shutdown(nil, 2*time.Second))

	testhelpers.ExpectClosed(t, named, 2*time.Second)
	testhelpers.ExpectClosed(t, anon, 2*time.Second)
	assert.True(t, s.Registry().Closed())
	assert.Zero(t, s.Registry().Len())
}

func TestShutdownRefusesNewSessions(t *testing.T) {
	s, ts := newTestServer(t, nil)
	require.NoError(t, s.Shutdown(nil, time.Second))

	conn, status, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(ts.URL), testhelpers.TestOrigin)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestShutdownWithHTTPServer(t *testing.T) {
	s := New(nil)
	httpServer := CreateServer("127.0.0.1:0", s.Routes())

	require.NoError(t, s.Shutdown(httpServer, time.Second))
	assert.True(t, s.Registry().Closed())
}

func TestShutdownTimeout(t *testing.T) {
	s := New(nil)
	require.True(t, s.track())
	defer s.wg.Done()

	err := s.Shutdown(nil, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.Registry().Closed())
}

func TestCreateServerTimeouts(t *testing.T) {
	srv := CreateServer(":0", http.NewServeMux())

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
}
