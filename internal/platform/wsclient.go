package platform

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// message is the JSON envelope exchanged with the gateway.
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Gateway message types.
const (
	msgTypeLogOn            = "logon"
	msgTypeLogOnResponse    = "logon_response"
	msgTypeLogOff           = "logoff"
	msgTypeLoggedOff        = "logged_off"
	msgTypeGamesPlayed      = "games_played"
	msgTypeRedeemKey        = "redeem_key"
	msgTypePurchaseResponse = "purchase_response"
	msgTypeChatMessage      = "chat_message"
	msgTypeFriendAction     = "friend_action"
	msgTypeFriendsList      = "friends_list"
	msgTypePersonaName      = "persona_name"
	msgTypeJoinChat         = "join_chat"
	msgTypeMachineAuth      = "machine_auth"
	msgTypeMachineAuthResp  = "machine_auth_response"
	msgTypeNotification     = "notification"
	msgTypeHeartbeat        = "heartbeat"
)

type logOnData struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	AuthCode       string `json:"auth_code,omitempty"`
	TwoFactorCode  string `json:"two_factor_code,omitempty"`
	SentryFileHash []byte `json:"sentry_file_hash,omitempty"`
}

type logOnResponseData struct {
	Result  EResult `json:"result"`
	SteamID SteamID `json:"steam_id"`
}

type gamesPlayedData struct {
	AppIDs []uint32 `json:"app_ids"`
}

type chatMessageData struct {
	Sender  SteamID       `json:"sender,omitempty"`
	Target  SteamID       `json:"target,omitempty"`
	Room    SteamID       `json:"room,omitempty"`
	Kind    ChatEntryKind `json:"kind,omitempty"`
	Message string        `json:"message"`
}

type friendActionData struct {
	ID     SteamID `json:"id"`
	Action string  `json:"action"` // accept | remove | decline_group
}

type purchaseResponseData struct {
	Result EResult  `json:"result"`
	Detail int32    `json:"detail"`
	Items  []string `json:"items"`
}

type notificationData struct {
	Kind  NotificationKind `json:"kind"`
	Count uint32           `json:"count"`
}

const (
	wsHeartbeatInterval = 30 * time.Second
	callbackBuffer      = 32
)

// WSClient is the reference Client implementation over a websocket gateway.
// All state transitions surface as callbacks; the read pump is the only
// writer to the callback channel.
type WSClient struct {
	serverURL string
	logger    zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	steamID   SteamID
	connected bool
	done      chan struct{}

	callbacks chan Callback
	closeOnce sync.Once
}

var _ Client = (*WSClient)(nil)

// NewWSClient creates a client that will dial serverURL on Connect.
func NewWSClient(serverURL string, logger zerolog.Logger) *WSClient {
	return &WSClient{
		serverURL: serverURL,
		logger:    logger.With().Str("component", "platform").Logger(),
		callbacks: make(chan Callback, callbackBuffer),
	}
}

// Callbacks returns the ordered callback stream.
func (c *WSClient) Callbacks() <-chan Callback {
	return c.callbacks
}

// SteamID returns the logged-on account id, zero before logon.
func (c *WSClient) SteamID() SteamID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steamID
}

// Connect dials the gateway and starts the read pump. The Connected callback
// carries the outcome; a non-OK connect is followed by Disconnected.
func (c *WSClient) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.serverURL).Msg("connect failed")
		c.emit(Connected{Result: ResultNoConnection})
		c.emit(Disconnected{})
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.readPump(conn, done)
	go c.heartbeatLoop(done)

	c.emit(Connected{Result: ResultOK})
	return nil
}

// Disconnect tears down the transport and emits a user-initiated
// Disconnected callback. Safe to call repeatedly.
func (c *WSClient) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.steamID = 0
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		c.emit(Disconnected{UserInitiated: true})
	}
}

// Dispose closes the callback channel. The owning bot calls this exactly
// once, after the pump has exited.
func (c *WSClient) Dispose() {
	c.Disconnect()
	c.closeOnce.Do(func() { close(c.callbacks) })
}

// LogOn sends the logon request. The result arrives as a LoggedOn callback.
func (c *WSClient) LogOn(details LogOnDetails) {
	c.send(msgTypeLogOn, logOnData{
		Username:       details.Username,
		Password:       details.Password,
		AuthCode:       details.AuthCode,
		TwoFactorCode:  details.TwoFactorCode,
		SentryFileHash: details.SentryFileHash,
	})
}

// PlayGames reports the given app ids as played; no ids stops playing.
func (c *WSClient) PlayGames(appIDs ...uint32) {
	c.send(msgTypeGamesPlayed, gamesPlayedData{AppIDs: appIDs})
}

// RedeemKey activates a product key; outcome arrives as PurchaseResponse.
func (c *WSClient) RedeemKey(key string) {
	c.send(msgTypeRedeemKey, map[string]string{"key": key})
}

// SendChatMessage sends a chat line to a user or room.
func (c *WSClient) SendChatMessage(to SteamID, msg string) {
	c.send(msgTypeChatMessage, chatMessageData{Target: to, Message: msg})
}

// AcceptFriend confirms an incoming friendship request.
func (c *WSClient) AcceptFriend(id SteamID) {
	c.send(msgTypeFriendAction, friendActionData{ID: id, Action: "accept"})
}

// RemoveFriend declines a request or removes a friend.
func (c *WSClient) RemoveFriend(id SteamID) {
	c.send(msgTypeFriendAction, friendActionData{ID: id, Action: "remove"})
}

// DeclineGroupInvite declines a pending clan invite.
func (c *WSClient) DeclineGroupInvite(id SteamID) {
	c.send(msgTypeFriendAction, friendActionData{ID: id, Action: "decline_group"})
}

// SetPersonaName changes the displayed profile name.
func (c *WSClient) SetPersonaName(name string) {
	c.send(msgTypePersonaName, map[string]string{"name": name})
}

// JoinChat enters a clan chat room.
func (c *WSClient) JoinChat(chatID SteamID) {
	c.send(msgTypeJoinChat, map[string]SteamID{"chat_id": chatID})
}

// SendMachineAuthResponse acknowledges a persisted sentry chunk.
func (c *WSClient) SendMachineAuthResponse(resp MachineAuthResponse) {
	c.send(msgTypeMachineAuthResp, resp)
}

func (c *WSClient) send(msgType string, data any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.logger.Debug().Str("type", msgType).Msg("dropping message, not connected")
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("marshal failed")
		return
	}
	envelope, err := json.Marshal(message{Type: msgType, Data: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("marshal envelope failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("write failed")
	}
}

func (c *WSClient) readPump(conn *websocket.Conn, done chan struct{}) {
	for {
		// Disconnect closes the conn, which unblocks the read with an error.
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			c.logger.Debug().Err(err).Msg("read failed, disconnecting")
			c.mu.Lock()
			c.conn = nil
			c.connected = false
			c.steamID = 0
			select {
			case <-done:
			default:
				close(done)
			}
			c.mu.Unlock()
			c.emit(Disconnected{})
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("malformed message, skipping")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *WSClient) dispatch(msg message) {
	switch msg.Type {
	case msgTypeLogOnResponse:
		var data logOnResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed logon response")
			return
		}
		if data.Result == ResultOK {
			c.mu.Lock()
			c.steamID = data.SteamID
			c.mu.Unlock()
		}
		c.emit(LoggedOn{Result: data.Result})

	case msgTypeLoggedOff:
		var data struct {
			Result EResult `json:"result"`
		}
		_ = json.Unmarshal(msg.Data, &data)
		c.emit(LoggedOff{Result: data.Result})

	case msgTypeFriendsList:
		var data struct {
			Friends []Friend `json:"friends"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed friends list")
			return
		}
		c.emit(FriendsList{Friends: data.Friends})

	case msgTypeChatMessage:
		var data chatMessageData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed chat message")
			return
		}
		kind := data.Kind
		if kind == 0 {
			kind = ChatEntryMessage
		}
		c.emit(ChatMessage{Sender: data.Sender, Room: data.Room, Kind: kind, Message: data.Message})

	case msgTypeMachineAuth:
		var data MachineAuth
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed machine auth")
			return
		}
		c.emit(data)

	case msgTypeNotification:
		var data notificationData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed notification")
			return
		}
		c.emit(Notification{Kind: data.Kind, Count: data.Count})

	case msgTypePurchaseResponse:
		var data purchaseResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.logger.Warn().Err(err).Msg("malformed purchase response")
			return
		}
		c.emit(PurchaseResponse{Result: data.Result, PurchaseResultDetail: data.Detail, Items: data.Items})

	case msgTypeHeartbeat:
		// keepalive echo, nothing to surface

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("unhandled message type")
	}
}

func (c *WSClient) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(wsHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.send(msgTypeHeartbeat, struct{}{})
		}
	}
}

// emit hands a callback to the owning pump. The buffer absorbs bursts; when
// the pump lags behind it, the send blocks and backpressures the read loop.
// Losing a session transition here would desynchronise the bot's state
// machine, so dropping is not an option.
func (c *WSClient) emit(cb Callback) {
	c.callbacks <- cb
}
