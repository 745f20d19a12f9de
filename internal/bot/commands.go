package bot

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// CommandHandler interprets master chat messages for one bot. Process-level
// actions (exit, restart, starting configured-but-stopped bots) are injected
// by the command wiring in cmd.
type CommandHandler struct {
	bot      *Bot
	registry *Registry
	logger   *log.Logger

	exit     func()
	restart  func()
	startBot func(name string) error
}

// NewCommandHandler wires a handler to its bot and the process registry.
func NewCommandHandler(b *Bot, registry *Registry, logger *log.Logger) *CommandHandler {
	return &CommandHandler{
		bot:      b,
		registry: registry,
		logger:   logger.WithPrefix("commands"),
	}
}

// SetProcessHooks installs the process exit and restart actions.
func (h *CommandHandler) SetProcessHooks(exit, restart func()) {
	h.exit = exit
	h.restart = restart
}

// SetBotFactory installs the action that creates and starts a configured bot
// by name.
func (h *CommandHandler) SetBotFactory(start func(name string) error) {
	h.startBot = start
}

// HandleMessage interprets one master message and returns the chat reply, or
// "" when no reply should be sent. Bare keys redeem silently; messages
// starting with "-" carry one key per line and are fanned out across the
// whole registry.
func (h *CommandHandler) HandleMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}

	if strings.HasPrefix(message, "-") {
		return h.redeemMultiple(strings.TrimPrefix(message, "-"))
	}

	if !strings.HasPrefix(message, "!") {
		if IsValidCdKey(message) {
			h.bot.RedeemKey(message)
		}
		return ""
	}

	fields := strings.Fields(message)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	h.logger.Debug("handling command", "command", cmd, "args", args)

	switch cmd {
	case "!exit":
		// The process terminates inside the exit hook, so the goodbye has
		// to leave before the teardown starts.
		h.bot.tellMaster("Exiting")
		h.registry.ShutdownAll()
		if h.exit != nil {
			h.exit()
		}
		return ""

	case "!restart":
		if h.restart == nil {
			return "Restart is not available"
		}
		go h.restart()
		return "Restarting"

	case "!farm":
		target := h.targetBot(args)
		if target == nil {
			return "Couldn't find any bot named that"
		}
		target.Farmer().StartFarming()
		return fmt.Sprintf("%s finished farming", target.Name())

	case "!pause":
		target := h.targetBot(args)
		if target == nil {
			return "Couldn't find any bot named that"
		}
		target.Farmer().Pause(true)
		return fmt.Sprintf("%s is now paused", target.Name())

	case "!resume":
		target := h.targetBot(args)
		if target == nil {
			return "Couldn't find any bot named that"
		}
		target.Farmer().Resume(true)
		return fmt.Sprintf("%s is now resumed", target.Name())

	case "!status":
		if len(args) > 0 && strings.EqualFold(args[0], "all") {
			return h.statusAll()
		}
		target := h.targetBot(args)
		if target == nil {
			return "Couldn't find any bot named that"
		}
		return fmt.Sprintf("%s: %s", target.Name(), target.Farmer().Summary())

	case "!start":
		if len(args) == 0 {
			return "Which bot should be started?"
		}
		if h.startBot == nil {
			return "Starting bots is not available"
		}
		if err := h.startBot(args[0]); err != nil {
			h.logger.Warn("bot start failed", "bot", args[0], "error", err)
			return "That bot instance failed to start, make sure that it exists"
		}
		return fmt.Sprintf("%s is now running", args[0])

	case "!stop":
		target := h.targetBot(args)
		if target == nil {
			return "Couldn't find any bot named that"
		}
		target.Shutdown()
		return fmt.Sprintf("%s is now stopped", target.Name())

	case "!redeem":
		switch len(args) {
		case 1:
			if IsValidCdKey(args[0]) {
				h.bot.RedeemKey(args[0])
			}
			return ""
		case 2:
			target := h.registry.Get(args[0])
			if target == nil {
				return "Couldn't find any bot named that"
			}
			return fmt.Sprintf("%s answer: %s", target.Name(), target.RedeemKeyWithReply(args[1]))
		default:
			return "Usage: !redeem [botName] <key>"
		}

	default:
		return "Unknown command"
	}
}

// redeemMultiple fans a block of keys out across the registry: key N goes to
// bot N in name order, with the tail clamped onto the last bot.
func (h *CommandHandler) redeemMultiple(block string) string {
	var keys []string
	for _, line := range strings.Split(block, "\n") {
		// Operators sometimes prefix every line with the dash, not just
		// the first one.
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if IsValidCdKey(line) {
			keys = append(keys, line)
		}
	}
	if len(keys) == 0 {
		return "No valid keys found"
	}

	bots := h.registry.Snapshot()
	if len(bots) == 0 {
		return "No bots are registered"
	}

	var replies []string
	for i, key := range keys {
		idx := i
		if idx >= len(bots) {
			idx = len(bots) - 1
		}
		target := bots[idx]
		replies = append(replies, fmt.Sprintf("%s answer: %s", target.Name(), target.RedeemKeyWithReply(key)))
	}
	return strings.Join(replies, "\n")
}

// targetBot resolves an optional bot-name argument, defaulting to the bot
// this handler belongs to.
func (h *CommandHandler) targetBot(args []string) *Bot {
	if len(args) == 0 {
		return h.bot
	}
	return h.registry.Get(args[0])
}

func (h *CommandHandler) statusAll() string {
	bots := h.registry.Snapshot()
	lines := make([]string, 0, len(bots)+1)
	for _, b := range bots {
		lines = append(lines, fmt.Sprintf("%s: %s", b.Name(), b.Farmer().Summary()))
	}
	lines = append(lines, fmt.Sprintf("Currently %d bots are running", len(bots)))
	return strings.Join(lines, "\n")
}

// IsValidCdKey checks the XXXXX-XXXXX-XXXXX shape: 17 or 29 characters with
// a dash after every fifth position. The groups themselves are not
// inspected; the platform decides whether a well-shaped key exists.
func IsValidCdKey(key string) bool {
	if len(key) != 17 && len(key) != 29 {
		return false
	}
	for i := 0; i < len(key); i++ {
		if (i+1)%6 == 0 && key[i] != '-' {
			return false
		}
	}
	return true
}
