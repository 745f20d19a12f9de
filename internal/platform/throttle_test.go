package platform

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
)

func TestConnectThrottleFirstWaitIsImmediate(t *testing.T) {
	clock := quartz.NewMock(t)
	th := NewConnectThrottle(clock, 5*time.Second)

	done := make(chan struct{})
	go func() {
		th.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first Wait should not block")
	}
}

func TestConnectThrottleSpacesAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	th := NewConnectThrottle(clock, 5*time.Second)

	th.Wait()

	trap := clock.Trap().NewTimer()
	defer trap.Close()

	done := make(chan struct{})
	go func() {
		th.Wait()
		close(done)
	}()

	// The second attempt parks on a timer for the full interval.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	assert.Equal(t, 5*time.Second, call.Duration)

	select {
	case <-done:
		t.Fatal("second Wait returned before the interval elapsed")
	default:
	}

	clock.Advance(5 * time.Second).MustWait(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Wait did not return after the interval")
	}
}

func TestConnectThrottleZeroIntervalDisables(t *testing.T) {
	th := NewConnectThrottle(quartz.NewMock(t), 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			th.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero interval should never block")
	}
}
