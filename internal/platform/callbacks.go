package platform

// Callback is the tagged union delivered on the client's callback channel.
// Each bot runs a single pump goroutine that receives callbacks in order and
// dispatches on the concrete type.
type Callback interface {
	callback()
}

// Connected fires when the transport finishes a connection attempt.
type Connected struct {
	Result EResult
}

// Disconnected fires when the connection drops, for any reason.
type Disconnected struct {
	UserInitiated bool
}

// LoggedOn carries the result of a LogOn attempt.
type LoggedOn struct {
	Result EResult
}

// LoggedOff fires when the server terminates the session.
type LoggedOff struct {
	Result EResult
}

// FriendsList carries incremental friends-list updates.
type FriendsList struct {
	Friends []Friend
}

// ChatMessage is an incoming friend or chat-room message.
type ChatMessage struct {
	Sender  SteamID
	Room    SteamID // zero for direct messages
	Kind    ChatEntryKind
	Message string
}

// MachineAuth carries a sentry blob chunk to persist locally.
type MachineAuth struct {
	JobID        uint64
	FileName     string
	Offset       uint32
	Data         []byte
	BytesToWrite uint32
	FileSize     uint32
}

// Notification signals pending user notifications of a given kind.
type Notification struct {
	Kind  NotificationKind
	Count uint32
}

// PurchaseResponse carries the outcome of a RedeemKey call.
type PurchaseResponse struct {
	Result               EResult
	PurchaseResultDetail int32
	Items                []string
}

func (Connected) callback()        {}
func (Disconnected) callback()     {}
func (LoggedOn) callback()         {}
func (LoggedOff) callback()        {}
func (FriendsList) callback()      {}
func (ChatMessage) callback()      {}
func (MachineAuth) callback()      {}
func (Notification) callback()     {}
func (PurchaseResponse) callback() {}
