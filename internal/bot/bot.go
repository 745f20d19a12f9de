// Package bot hosts the per-account session supervisor: the callback pump
// against the platform client, the reconnection machinery, the registry that
// coordinates all bots in the process, and the master command handler.
package bot

import (
	"fmt"
	rand "math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"cardfarm/internal/farm"
	"cardfarm/internal/platform"
	"cardfarm/internal/randutil"
	"cardfarm/internal/trading"
	"cardfarm/internal/web"
)

const (
	// pumpTick bounds how long the pump sleeps between callback checks.
	pumpTick = 500 * time.Millisecond

	// invalidPasswordBackoff is the cool-down after a rejected password
	// before the next automatic logon attempt.
	invalidPasswordBackoff = 25 * time.Minute

	// redeemTimeout bounds a redeem-with-reply wait for the purchase
	// response callback.
	redeemTimeout = 30 * time.Second
)

// maxConnectJitter spreads reconnecting bots out so a shared outage does not
// produce a synchronised thundering herd.
var maxConnectJitter = 5 * time.Second

// statisticsGroupID is the opt-in usage statistics group joined after logon
// when the Statistics config key is set.
const statisticsGroupID platform.SteamID = 103582791440793055

// Deps bundles the collaborators a bot needs. Everything here is owned
// exclusively by the bot except Registry, Throttle and Input, which are
// process-wide.
type Deps struct {
	Client   platform.Client
	Web      web.Client
	Registry *Registry
	Throttle *platform.ConnectThrottle
	Input    InputProvider
	Logger   *log.Logger
	Clock    quartz.Clock

	// FarmTimings overrides the farmer's play-loop timing; zero values use
	// the farmer defaults.
	FarmTimings farm.Options

	// SentryDir is where <botName>.bin sentry blobs live.
	SentryDir string
}

type redeemRequest struct {
	result chan string
}

// Bot supervises one account session: it pumps platform callbacks, keeps the
// session logged on across disconnects, and directs its farmer.
type Bot struct {
	name     string
	config   *Config
	logger   *log.Logger
	client   platform.Client
	web      web.Client
	farmer   *farm.Farmer
	trading  *trading.Trading
	registry *Registry
	throttle *platform.ConnectThrottle
	input    InputProvider
	clock    quartz.Clock
	commands *CommandHandler

	sentryPath string

	running  atomic.Bool
	loggedOn atomic.Bool
	connects atomic.Int64

	mu            sync.Mutex
	rng           *rand.Rand
	authCode      string
	twoFactorCode string

	answerDirectly atomic.Bool
	redeemPending  chan *redeemRequest

	pumpOnce  sync.Once
	destroyed chan struct{}
	destroy   sync.Once
}

// NewBot builds a bot from its config and collaborators. The caller registers
// it (registry insertion is what makes a configured bot exist) and then calls
// Start.
func NewBot(name string, cfg *Config, deps Deps) *Bot {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	logger := deps.Logger.With("bot", name)

	b := &Bot{
		name:          name,
		config:        cfg,
		logger:        logger,
		client:        deps.Client,
		web:           deps.Web,
		registry:      deps.Registry,
		throttle:      deps.Throttle,
		input:         deps.Input,
		clock:         deps.Clock,
		sentryPath:    filepath.Join(deps.SentryDir, name+".bin"),
		rng:           randutil.New(time.Now().UnixNano()),
		redeemPending: make(chan *redeemRequest, 1),
		destroyed:     make(chan struct{}),
	}
	b.answerDirectly.Store(true)

	farmOpts := deps.FarmTimings
	farmOpts.CardDropsRestricted = cfg.CardDropsRestricted
	farmOpts.Blacklist = cfg.Blacklist
	farmOpts.Order = cfg.FarmingOrder
	farmOpts.Clock = deps.Clock
	b.farmer = farm.NewFarmer(b, deps.Web, logger, farmOpts)

	b.trading = trading.New(deps.Web, cfg.SteamMasterID, logger)
	b.commands = NewCommandHandler(b, deps.Registry, logger)

	return b
}

// Name identifies the bot.
func (b *Bot) Name() string { return b.name }

// Farmer exposes the bot's farming scheduler.
func (b *Bot) Farmer() *farm.Farmer { return b.farmer }

// Commands exposes the bot's command handler.
func (b *Bot) Commands() *CommandHandler { return b.commands }

// Running reports whether the session should be up.
func (b *Bot) Running() bool { return b.running.Load() }

// ReadyToFarm reports whether the session can play games right now.
func (b *Bot) ReadyToFarm() bool {
	return b.running.Load() && b.loggedOn.Load()
}

// PlayGames forwards to the platform client.
func (b *Bot) PlayGames(appIDs ...uint32) {
	b.client.PlayGames(appIDs...)
}

// RequestLootCheck has trading inspect new items while not farming.
func (b *Bot) RequestLootCheck() {
	go b.trading.CheckOffers()
}

// OnFarmingFinished fires when a round loop drains; with
// ShutdownOnFarmingFinished set the bot retires itself.
func (b *Bot) OnFarmingFinished(farmedSomething bool) {
	b.logger.Info("farming finished", "farmedSomething", farmedSomething)
	if b.config.ShutdownOnFarmingFinished {
		go b.Shutdown()
	}
}

// Start brings the session up. Idempotent; the first call also spawns the
// callback pump, which lives until Shutdown.
func (b *Bot) Start() {
	if !b.running.CompareAndSwap(false, true) {
		return
	}

	b.pumpOnce.Do(func() { go b.pump() })

	b.logger.Info("starting")
	go b.connect()
}

// Stop takes the session down cooperatively. Safe when already stopped.
func (b *Bot) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}

	b.logger.Info("stopping")
	b.farmer.StopFarming()
	b.loggedOn.Store(false)
	b.client.Disconnect()
}

// Shutdown stops the session and removes the bot from the registry.
func (b *Bot) Shutdown() {
	b.Stop()
	if b.registry != nil {
		b.registry.Remove(b.name)
	}
	b.destroy.Do(func() { close(b.destroyed) })
}

func (b *Bot) connect() {
	// Reconnects are jittered so bots sharing an outage do not stampede
	// back in lockstep. The first connect goes straight through.
	if b.connects.Add(1) > 1 {
		b.mu.Lock()
		jitter := time.Duration(b.rng.Int64N(int64(maxConnectJitter)))
		b.mu.Unlock()
		timer := b.clock.NewTimer(jitter)
		select {
		case <-timer.C:
		case <-b.destroyed:
			timer.Stop()
			return
		}
	}

	b.throttle.Wait()
	if !b.running.Load() {
		return
	}
	b.logger.Info("connecting")
	if err := b.client.Connect(); err != nil {
		b.logger.Warn("connection attempt failed", "error", err)
	}
}

// pump drives every callback handler for this bot serially, so handlers
// never interleave with each other.
func (b *Bot) pump() {
	ticker := b.clock.NewTicker(pumpTick)
	defer ticker.Stop()

	for {
		select {
		case cb, ok := <-b.client.Callbacks():
			if !ok {
				return
			}
			b.handleCallback(cb)
		case <-ticker.C:
		case <-b.destroyed:
			return
		}
	}
}

func (b *Bot) handleCallback(cb platform.Callback) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("callback handler panicked", "callback", fmt.Sprintf("%T", cb), "panic", r)
		}
	}()

	switch cb := cb.(type) {
	case platform.Connected:
		b.onConnected(cb)
	case platform.Disconnected:
		b.onDisconnected(cb)
	case platform.LoggedOn:
		b.onLoggedOn(cb)
	case platform.LoggedOff:
		b.onLoggedOff(cb)
	case platform.FriendsList:
		b.onFriendsList(cb)
	case platform.ChatMessage:
		b.onChatMessage(cb)
	case platform.MachineAuth:
		b.onMachineAuth(cb)
	case platform.Notification:
		b.onNotification(cb)
	case platform.PurchaseResponse:
		b.onPurchaseResponse(cb)
	default:
		b.logger.Debug("unhandled callback", "type", fmt.Sprintf("%T", cb))
	}
}

func (b *Bot) onConnected(cb platform.Connected) {
	if cb.Result != platform.ResultOK {
		// A disconnect follows; recovery happens there.
		b.logger.Error("unable to connect", "result", cb.Result)
		return
	}

	b.logger.Info("connected")

	login := b.config.SteamLogin
	if login == NullValue {
		login = b.input.Request(b.name, InputLogin)
	}
	password := b.config.SteamPassword
	if password == NullValue {
		password = b.input.Request(b.name, InputPassword)
	}

	b.mu.Lock()
	authCode := b.authCode
	twoFactorCode := b.twoFactorCode
	b.mu.Unlock()

	b.client.LogOn(platform.LogOnDetails{
		Username:       login,
		Password:       password,
		AuthCode:       authCode,
		TwoFactorCode:  twoFactorCode,
		SentryFileHash: sentryHash(b.sentryPath),
	})
}

func (b *Bot) onDisconnected(cb platform.Disconnected) {
	b.loggedOn.Store(false)
	b.farmer.OnDisconnected()

	if !b.running.Load() {
		return
	}

	b.logger.Warn("disconnected, reconnecting")
	go b.connect()
}

func (b *Bot) onLoggedOn(cb platform.LoggedOn) {
	switch cb.Result {
	case platform.ResultOK:
		b.logger.Info("logged on")
		b.loggedOn.Store(true)

		// Offline farming keeps the account invisible: no persona bump,
		// no chat presence.
		if !b.config.FarmOffline {
			if b.config.SteamNickname != NullValue && b.config.SteamNickname != "" {
				b.client.SetPersonaName(b.config.SteamNickname)
			}
		}

		pin := b.config.SteamParentalPIN
		if pin == NullValue {
			pin = b.input.Request(b.name, InputParentalPIN)
			b.config.SteamParentalPIN = pin
		}

		if err := b.web.Init(b.client.SteamID(), b.config.SteamAPIKey, pin); err != nil {
			b.logger.Warn("web session init failed", "error", err)
		}

		if !b.config.FarmOffline {
			if b.config.SteamMasterClanID.IsValid() {
				b.client.JoinChat(b.config.SteamMasterClanID)
			}
			if b.config.Statistics {
				b.client.JoinChat(statisticsGroupID)
			}
		}

		go b.farmer.StartFarming()

	case platform.ResultAccountLogonDenied:
		b.logger.Warn("logon denied, email auth code required")
		code := b.input.Request(b.name, InputAuthCode)
		b.mu.Lock()
		b.authCode = code
		b.mu.Unlock()

	case platform.ResultAccountLoginDeniedNeedTwoFactor:
		b.logger.Warn("logon denied, two-factor code required")
		code := b.input.Request(b.name, InputTwoFactorCode)
		b.mu.Lock()
		b.twoFactorCode = code
		b.mu.Unlock()

	case platform.ResultInvalidPassword:
		b.logger.Warn("invalid password, backing off", "backoff", invalidPasswordBackoff)
		go func() {
			b.Stop()
			timer := b.clock.NewTimer(invalidPasswordBackoff)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-b.destroyed:
				return
			}
			b.Start()
		}()

	case platform.ResultServiceUnavailable, platform.ResultTimeout, platform.ResultTryAnotherCM:
		b.logger.Warn("transient logon failure, restarting session", "result", cb.Result)
		go func() {
			b.Stop()
			b.Start()
		}()

	default:
		b.logger.Error("unable to log on, giving up", "result", cb.Result)
		go b.Shutdown()
	}
}

func (b *Bot) onLoggedOff(cb platform.LoggedOff) {
	// The disconnect that follows drives recovery.
	b.logger.Warn("logged off", "result", cb.Result)
}

// onFriendsList handles incoming friendship requests only: clan invites are
// declined, the master is accepted, everyone else is declined. Established
// friendships are left alone.
func (b *Bot) onFriendsList(cb platform.FriendsList) {
	for _, friend := range cb.Friends {
		if friend.Relationship != platform.RelationshipRequestRecipient {
			continue
		}
		switch {
		case friend.ID.IsClan():
			b.logger.Debug("declining clan invite", "clan", friend.ID)
			b.client.DeclineGroupInvite(friend.ID)
		case friend.ID == b.config.SteamMasterID:
			b.logger.Info("accepting friend request from master")
			b.client.AcceptFriend(friend.ID)
		default:
			b.logger.Debug("declining friend request", "from", friend.ID)
			b.client.RemoveFriend(friend.ID)
		}
	}
}

func (b *Bot) onChatMessage(cb platform.ChatMessage) {
	if cb.Kind != platform.ChatEntryMessage || cb.Message == "" {
		return
	}
	if cb.Sender != b.config.SteamMasterID {
		return
	}

	// Commands may block on farming rounds or redeem correlation, so they
	// run off the pump.
	go func() {
		if reply := b.commands.HandleMessage(cb.Message); reply != "" {
			b.client.SendChatMessage(cb.Sender, reply)
		}
	}()
}

func (b *Bot) onMachineAuth(cb platform.MachineAuth) {
	written, size, err := writeSentryChunk(b.sentryPath, cb.Offset, cb.Data)
	if err != nil {
		b.logger.Error("sentry update failed", "error", err)
		return
	}

	b.logger.Info("sentry updated", "bytes", written, "offset", cb.Offset)
	b.client.SendMachineAuthResponse(platform.MachineAuthResponse{
		JobID:          cb.JobID,
		FileName:       cb.FileName,
		BytesWritten:   uint32(written),
		FileSize:       uint32(size),
		Offset:         cb.Offset,
		Result:         platform.ResultOK,
		SentryFileHash: sentryHash(b.sentryPath),
	})
}

func (b *Bot) onNotification(cb platform.Notification) {
	switch cb.Kind {
	case platform.NotificationTrading:
		go b.trading.CheckOffers()
	case platform.NotificationItems:
		b.farmer.OnNewItemsNotification()
	}
}

func (b *Bot) onPurchaseResponse(cb platform.PurchaseResponse) {
	summary := fmt.Sprintf("Status: %s | Items: %s", cb.Result, strings.Join(cb.Items, ", "))
	b.logger.Info("purchase response", "result", cb.Result, "items", cb.Items)

	if b.answerDirectly.Load() {
		b.tellMaster(summary)
	} else {
		select {
		case req := <-b.redeemPending:
			req.result <- summary
		default:
			// Correlation timed out and drained the slot already.
		}
		b.answerDirectly.Store(true)
	}

	if cb.Result == platform.ResultOK {
		go b.farmer.StartFarming()
	}
}

// tellMaster sends a chat line to the master, when one is configured.
func (b *Bot) tellMaster(message string) {
	if b.config.SteamMasterID.IsValid() {
		b.client.SendChatMessage(b.config.SteamMasterID, message)
	}
}

// RedeemKey activates a key without waiting for the outcome; the purchase
// response is announced to the master directly.
func (b *Bot) RedeemKey(key string) {
	b.client.RedeemKey(key)
}

// RedeemKeyWithReply activates a key and waits for the matching purchase
// response, returning its summary. One correlation per bot at a time; the
// wait is bounded so an orphaned request cannot leak.
func (b *Bot) RedeemKeyWithReply(key string) string {
	if !b.ReadyToFarm() {
		return "Bot is inactive and can't activate keys"
	}

	req := &redeemRequest{result: make(chan string, 1)}
	select {
	case b.redeemPending <- req:
	default:
		return "Another key activation is already pending"
	}

	b.answerDirectly.Store(false)
	b.client.RedeemKey(key)

	timer := b.clock.NewTimer(redeemTimeout)
	defer timer.Stop()

	select {
	case summary := <-req.result:
		return summary
	case <-timer.C:
		select {
		case <-b.redeemPending:
		default:
		}
		b.answerDirectly.Store(true)
		return "Key activation timed out"
	}
}

// Status is a point-in-time snapshot for monitors and status replies.
type Status struct {
	Name           string
	Running        bool
	LoggedOn       bool
	Farming        bool
	Paused         bool
	GamesToFarm    int
	CurrentGames   int
	CardsRemaining int
}

// Status captures the bot's current state.
func (b *Bot) Status() Status {
	games := b.farmer.GamesToFarm()
	cards := 0
	for _, g := range games {
		cards += int(g.CardsRemaining)
	}
	return Status{
		Name:           b.name,
		Running:        b.running.Load(),
		LoggedOn:       b.loggedOn.Load(),
		Farming:        b.farmer.NowFarming(),
		Paused:         b.farmer.Paused(),
		GamesToFarm:    len(games),
		CurrentGames:   len(b.farmer.CurrentGamesFarming()),
		CardsRemaining: cards,
	}
}
