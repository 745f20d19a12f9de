package platform

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// DefaultConnectInterval is the minimum spacing between connection attempts
// across all bots in the process.
const DefaultConnectInterval = 5 * time.Second

// ConnectThrottle serialises connection attempts process-wide so that many
// bots starting at once do not hammer the platform. Construct one in main
// and hand it to every bot.
type ConnectThrottle struct {
	mu       sync.Mutex
	clock    quartz.Clock
	interval time.Duration
	last     time.Time
}

// NewConnectThrottle creates a throttle with the given minimum interval.
// A zero interval disables throttling.
func NewConnectThrottle(clock quartz.Clock, interval time.Duration) *ConnectThrottle {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &ConnectThrottle{clock: clock, interval: interval}
}

// Wait blocks until enough time has passed since the previous attempt, then
// records this attempt. Callers holding the slot delay everyone else, which
// is the point.
func (t *ConnectThrottle) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval <= 0 {
		return
	}

	now := t.clock.Now()
	if !t.last.IsZero() {
		if wait := t.interval - now.Sub(t.last); wait > 0 {
			timer := t.clock.NewTimer(wait)
			<-timer.C
			now = t.clock.Now()
		}
	}
	t.last = now
}
