package platform

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer accepts one websocket connection at a time and records every
// envelope the client sends.
type wsTestServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []message
}

func newWSTestServer(t *testing.T) *wsTestServer {
	s := &wsTestServer{t: t}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg message
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, msg)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, msgType string, data any) {
	t.Helper()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn != nil
	}, time.Second, time.Millisecond)

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(message{Type: msgType, Data: payload})
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, envelope))
}

func (s *wsTestServer) sentTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	for i, msg := range s.received {
		out[i] = msg.Type
	}
	return out
}

func awaitCallback(t *testing.T, c *WSClient) Callback {
	t.Helper()
	select {
	case cb := <-c.Callbacks():
		return cb
	case <-time.After(time.Second):
		t.Fatal("no callback arrived")
		return nil
	}
}

func newTestWSClient(t *testing.T, s *wsTestServer) *WSClient {
	c := NewWSClient(s.url(), zerolog.Nop())
	t.Cleanup(c.Dispose)
	return c
}

func TestWSClientConnectEmitsConnected(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	assert.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))
}

func TestWSClientConnectFailure(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", zerolog.Nop())
	t.Cleanup(c.Dispose)

	require.Error(t, c.Connect())
	assert.Equal(t, Connected{Result: ResultNoConnection}, awaitCallback(t, c))
	assert.Equal(t, Disconnected{}, awaitCallback(t, c))
}

func TestWSClientLogOnRoundTrip(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	c.LogOn(LogOnDetails{Username: "alice", Password: "hunter2"})
	s.push(t, msgTypeLogOnResponse, logOnResponseData{
		Result:  ResultOK,
		SteamID: 76561198000000001,
	})

	assert.Equal(t, LoggedOn{Result: ResultOK}, awaitCallback(t, c))
	assert.Equal(t, SteamID(76561198000000001), c.SteamID())

	require.Eventually(t, func() bool {
		return len(s.sentTypes()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{msgTypeLogOn}, s.sentTypes())
}

func TestWSClientFailedLogOnKeepsZeroSteamID(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	s.push(t, msgTypeLogOnResponse, logOnResponseData{Result: ResultInvalidPassword})

	assert.Equal(t, LoggedOn{Result: ResultInvalidPassword}, awaitCallback(t, c))
	assert.Equal(t, SteamID(0), c.SteamID())
}

func TestWSClientDispatchesDomainCallbacks(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	s.push(t, msgTypeNotification, notificationData{Kind: NotificationItems, Count: 3})
	assert.Equal(t, Notification{Kind: NotificationItems, Count: 3}, awaitCallback(t, c))

	s.push(t, msgTypePurchaseResponse, purchaseResponseData{
		Result: ResultOK,
		Items:  []string{"Some Game"},
	})
	assert.Equal(t, PurchaseResponse{Result: ResultOK, Items: []string{"Some Game"}}, awaitCallback(t, c))

	s.push(t, msgTypeChatMessage, chatMessageData{Sender: 42, Message: "!status"})
	cb := awaitCallback(t, c)
	chat, ok := cb.(ChatMessage)
	require.True(t, ok, "expected ChatMessage, got %T", cb)
	assert.Equal(t, SteamID(42), chat.Sender)
	// Untyped chat entries default to plain messages.
	assert.Equal(t, ChatEntryMessage, chat.Kind)
}

func TestWSClientServerCloseEmitsDisconnected(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	require.NoError(t, conn.Close())

	assert.Equal(t, Disconnected{}, awaitCallback(t, c))
}

func TestWSClientDisconnectIsUserInitiated(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	c.Disconnect()
	assert.Equal(t, Disconnected{UserInitiated: true}, awaitCallback(t, c))

	// Repeated disconnects stay quiet.
	c.Disconnect()
	select {
	case cb := <-c.Callbacks():
		t.Fatalf("unexpected callback %T", cb)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWSClientBurstBeyondBufferLosesNothing(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	require.NoError(t, c.Connect())
	require.Equal(t, Connected{Result: ResultOK}, awaitCallback(t, c))

	// Push more than the callback buffer holds before consuming anything;
	// the overflow must backpressure the read pump, not get dropped.
	const burst = callbackBuffer + 8
	for i := 0; i < burst; i++ {
		s.push(t, msgTypeNotification, notificationData{Kind: NotificationItems, Count: uint32(i + 1)})
	}

	for i := 0; i < burst; i++ {
		cb := awaitCallback(t, c)
		n, ok := cb.(Notification)
		require.True(t, ok, "expected Notification, got %T", cb)
		assert.Equal(t, uint32(i+1), n.Count)
	}
}

func TestWSClientSendWhileDisconnectedIsDropped(t *testing.T) {
	s := newWSTestServer(t)
	c := newTestWSClient(t, s)

	// Not connected yet; nothing should blow up.
	c.PlayGames(730)
	c.RedeemKey("AAAAA-BBBBB-CCCCC")

	assert.Empty(t, s.sentTypes())
}
