// Package platform defines the client capability a bot uses to talk to the
// game distribution platform: a callback stream plus imperative operations.
// The wire protocol itself is encapsulated behind the Client interface; a
// websocket reference transport lives in wsclient.go.
package platform

import "errors"

// ErrDisconnected is returned by operations attempted on a closed client.
var ErrDisconnected = errors.New("platform: not connected")

// LogOnDetails carries credentials for a logon attempt.
type LogOnDetails struct {
	Username       string
	Password       string
	AuthCode       string // email second factor, if requested
	TwoFactorCode  string // TOTP second factor, if requested
	SentryFileHash []byte // SHA-1 over the local sentry blob, nil if absent
}

// MachineAuthResponse acknowledges a persisted sentry chunk.
type MachineAuthResponse struct {
	JobID          uint64
	FileName       string
	BytesWritten   uint32
	FileSize       uint32
	Offset         uint32
	Result         EResult
	SentryFileHash []byte
}

// Client is the per-bot session capability against the platform.
//
// Connect and Disconnect manage the transport; every state change surfaces
// as a Callback on Callbacks(). The imperative operations are fire-and-forget
// at this level: their outcomes, where observable, arrive as callbacks too.
type Client interface {
	// Connect starts a connection attempt. The outcome arrives as a
	// Connected callback; a failed attempt is followed by Disconnected.
	Connect() error

	// Disconnect tears down the transport. Emits Disconnected with
	// UserInitiated set. Safe to call when not connected.
	Disconnect()

	// LogOn authenticates the connected session. Requires a prior
	// Connected{ResultOK} callback.
	LogOn(details LogOnDetails)

	// Callbacks returns the ordered callback stream. The channel closes
	// when the client is disposed.
	Callbacks() <-chan Callback

	// PlayGames reports the given app ids as being played. Zero ids stops
	// playing everything.
	PlayGames(appIDs ...uint32)

	// RedeemKey activates a product key. The outcome arrives as a
	// PurchaseResponse callback.
	RedeemKey(key string)

	// SendChatMessage sends a chat line to a user or chat room.
	SendChatMessage(to SteamID, message string)

	// AcceptFriend confirms an incoming friendship request.
	AcceptFriend(id SteamID)

	// RemoveFriend declines a request or removes an existing friend.
	RemoveFriend(id SteamID)

	// DeclineGroupInvite declines a pending clan invite.
	DeclineGroupInvite(id SteamID)

	// SetPersonaName changes the displayed profile name.
	SetPersonaName(name string)

	// JoinChat enters a clan chat room.
	JoinChat(chatID SteamID)

	// SendMachineAuthResponse acknowledges a MachineAuth callback.
	SendMachineAuthResponse(resp MachineAuthResponse)

	// SteamID returns the session's account id, zero before logon.
	SteamID() SteamID
}
