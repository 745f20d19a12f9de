package bot

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// InputKind names an interactively requested credential.
type InputKind int

const (
	InputLogin InputKind = iota
	InputPassword
	InputAuthCode
	InputTwoFactorCode
	InputParentalPIN
)

func (k InputKind) String() string {
	switch k {
	case InputLogin:
		return "login"
	case InputPassword:
		return "password"
	case InputAuthCode:
		return "email auth code"
	case InputTwoFactorCode:
		return "two-factor code"
	case InputParentalPIN:
		return "parental PIN"
	default:
		return "input"
	}
}

// InputProvider supplies credentials the config left interactive. Prompts
// must be serialised: several bots can ask at once.
type InputProvider interface {
	Request(botName string, kind InputKind) string
}

// ConsoleInput prompts on the controlling terminal, one bot at a time.
type ConsoleInput struct {
	mu     sync.Mutex
	reader *bufio.Reader
}

// NewConsoleInput creates a stdin-backed provider.
func NewConsoleInput() *ConsoleInput {
	return &ConsoleInput{reader: bufio.NewReader(os.Stdin)}
}

// Request prompts for and reads a single line.
func (c *ConsoleInput) Request(botName string, kind InputKind) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(os.Stderr, "<%s> please enter %s: ", botName, kind)
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// StaticInput returns canned answers, for tests and headless setups.
type StaticInput map[InputKind]string

// Request returns the canned answer for the kind, or "".
func (s StaticInput) Request(_ string, kind InputKind) string {
	return s[kind]
}
