package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/radon/internal/chat"
	"github.com/Tyrowin/radon/internal/testhelpers"
)

func TestChatRoundTrip(t *testing.T) {
	s, ts := newTestServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	alice := testhelpers.ConnectAs(t, url, "alice")

	bob := testhelpers.Connect(t, url)
	testhelpers.SendText(t, bob, "alice")
	testhelpers.ExpectText(t, bob, chat.NoticeNameTaken)
	testhelpers.SendText(t, bob, "bob")
	testhelpers.ExpectText(t, bob, "bob joined.")
	testhelpers.ExpectText(t, alice, "bob joined.")

	testhelpers.SendText(t, alice, "hi")
	testhelpers.ExpectText(t, alice, "alice: hi")
	testhelpers.ExpectText(t, bob, "alice: hi")

	require.NoError(t, testhelpers.CloseWebSocket(bob))
	testhelpers.ExpectText(t, alice, "bob left.")

	require.Eventually(t, func() bool { return !s.Registry().Has("bob") }, 2*time.Second, 10*time.Millisecond)
	testhelpers.ConnectAs(t, url, "bob")
	testhelpers.ExpectText(t, alice, "bob joined.")
}

func TestChatRejectsInvalidNames(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *Config) { cfg.MaxNameLength = 5 })
	conn := testhelpers.Connect(t, testhelpers.WebSocketURL(ts.URL))

	testhelpers.SendText(t, conn, "   ")
	testhelpers.ExpectText(t, conn, chat.NoticeNameInvalid)
	testhelpers.SendText(t, conn, "toolongname")
	testhelpers.ExpectText(t, conn, chat.NoticeNameInvalid)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("carol")))
	testhelpers.SendText(t, conn, "carol")
	testhelpers.ExpectText(t, conn, "carol joined.")
}

func TestChatFanOutPreservesSenderOrder(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *Config) { cfg.BroadcastCapacity = 64 })
	url := testhelpers.WebSocketURL(ts.URL)

	sender := testhelpers.ConnectAs(t, url, "sender")
	listeners := make([]*websocket.Conn, 3)
	for i := range listeners {
		name := "listener" + string(rune('a'+i))
		listeners[i] = testhelpers.ConnectAs(t, url, name)
		testhelpers.ExpectText(t, sender, name+" joined.")
		for _, earlier := range listeners[:i] {
			testhelpers.ExpectText(t, earlier, name+" joined.")
		}
	}

	lines := []string{"one", "two", "three", "four", "five"}
	for _, line := range lines {
		testhelpers.SendText(t, sender, line)
	}

	for _, conn := range append(listeners, sender) {
		for _, line := range lines {
			testhelpers.ExpectText(t, conn, "sender: "+line)
		}
	}
}

func TestChatOversizedMessageEndsSession(t *testing.T) {
	s, ts := newTestServer(t, func(cfg *Config) { cfg.MaxMessageSize = 64 })
	url := testhelpers.WebSocketURL(ts.URL)

	watcher := testhelpers.ConnectAs(t, url, "watcher")
	loud := testhelpers.ConnectAs(t, url, "loud")
	testhelpers.ExpectText(t, watcher, "loud joined.")

	testhelpers.SendText(t, loud, strings.Repeat("x", 200))

	testhelpers.ExpectText(t, watcher, "loud left.")
	testhelpers.ExpectClosed(t, loud, 2*time.Second)
	assert.Eventually(t, func() bool { return !s.Registry().Has("loud") }, 2*time.Second, 10*time.Millisecond)
}

func TestChatDisallowedOrigin(t *testing.T) {
	_, ts := newTestServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	tests := []struct {
		name   string
		origin string
	}{
		{name: "foreign origin", origin: "http://evil.example"},
		{name: "missing origin", origin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, status, err := testhelpers.ConnectWebSocket(url, tt.origin)
			if conn != nil {
				_ = conn.Close()
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusForbidden, status)
		})
	}
}

func TestChatAnonymousConnectionsNotListed(t *testing.T) {
	s, ts := newTestServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	testhelpers.ConnectAs(t, url, "zed")
	testhelpers.Connect(t, url)

	require.Eventually(t, func() bool { return s.Registry().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"zed"}, s.Registry().Names())
}
