package engine

import "time"

// CountdownState is the lifecycle of a Countdown.
type CountdownState int

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownExpired
	CountdownCancelled
)

func (s CountdownState) String() string {
	switch s {
	case CountdownIdle:
		return "idle"
	case CountdownRunning:
		return "running"
	case CountdownExpired:
		return "expired"
	case CountdownCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Countdown is a wall-clock anchored timer. Remaining time is always derived
// from the start instant, so late or dropped polls never accumulate drift.
type Countdown struct {
	duration  time.Duration
	startedAt time.Time
	state     CountdownState
	// lowest remaining value reported so far; keeps Remaining non-increasing
	// if the clock steps backwards.
	floor time.Duration
}

// NewCountdown returns an idle countdown of duration d.
func NewCountdown(d time.Duration) (*Countdown, error) {
	if d <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Countdown{duration: d, floor: d}, nil
}

// Start moves an idle countdown to running, anchored at now.
func (c *Countdown) Start(now time.Time) {
	if c.state != CountdownIdle {
		return
	}
	c.startedAt = now
	c.state = CountdownRunning
}

// Duration returns the configured length.
func (c *Countdown) Duration() time.Duration {
	return c.duration
}

// StartedAt returns the start instant, zero while idle.
func (c *Countdown) StartedAt() time.Time {
	return c.startedAt
}

// State returns the current state.
func (c *Countdown) State() CountdownState {
	return c.state
}

// Remaining returns the time left at now. It never increases and never goes
// below zero.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	switch c.state {
	case CountdownIdle:
		return c.duration
	case CountdownExpired:
		return 0
	case CountdownCancelled:
		return c.floor
	}
	left := c.duration - now.Sub(c.startedAt)
	if left < 0 {
		left = 0
	}
	if left > c.floor {
		left = c.floor
	}
	c.floor = left
	return left
}

// Poll re-evaluates the countdown at now. expired is true on exactly one
// call: the one that moves the countdown from running to expired.
func (c *Countdown) Poll(now time.Time) (remaining time.Duration, expired bool) {
	if c.state != CountdownRunning {
		return c.Remaining(now), false
	}
	remaining = c.Remaining(now)
	if remaining > 0 {
		return remaining, false
	}
	c.state = CountdownExpired
	return 0, true
}

// Cancel stops a countdown that has not expired. A cancelled countdown never
// reports expiry.
func (c *Countdown) Cancel() {
	if c.state == CountdownExpired {
		return
	}
	c.state = CountdownCancelled
}
