// Package clock abstracts time so the replica core's timers (election
// timeouts, heartbeats, lease checks) can be driven deterministically in
// tests instead of waiting on wall-clock time.
package clock

import "time"

// Clock abstracts time-related operations away from the standard time
// package so tests can substitute a fake implementation.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time

	// Since returns the time elapsed since t (equivalent to Now().Sub(t)).
	Since(t time.Time) time.Duration

	// After waits for the duration to elapse and then sends the current time
	// on the returned channel.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a new Ticker that sends the time with a period
	// specified by d. The duration d must be greater than zero.
	NewTicker(d time.Duration) Ticker

	// NewTimer creates a new Timer that sends the current time on its
	// channel after at least duration d.
	NewTimer(d time.Duration) Timer

	// Sleep pauses the current goroutine for at least the duration d.
	Sleep(d time.Duration)
}

// Ticker wraps time.Ticker for mocking.
type Ticker interface {
	// Chan returns the channel on which ticks are delivered.
	Chan() <-chan time.Time

	// Stop turns off a ticker. After Stop, no more ticks will be sent.
	Stop()

	// Reset stops a ticker and resets its period to d.
	Reset(d time.Duration)
}

// Timer wraps time.Timer for mocking.
type Timer interface {
	// Chan returns the channel on which the expiry time will be delivered.
	Chan() <-chan time.Time

	// Stop prevents the Timer from firing. Returns true if the call stops
	// the timer, false if the timer has already expired or been stopped.
	Stop() bool

	// Reset changes the timer to expire after duration d. Returns true if
	// the timer had been active.
	Reset(d time.Duration) bool
}

// standardClock implements Clock using the standard library.
type standardClock struct{}

// New returns a Clock backed by the standard time package.
func New() Clock {
	return &standardClock{}
}

func (sc *standardClock) Now() time.Time                  { return time.Now() }
func (sc *standardClock) Since(t time.Time) time.Duration  { return time.Since(t) }
func (sc *standardClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (sc *standardClock) Sleep(d time.Duration)            { time.Sleep(d) }

func (sc *standardClock) NewTicker(d time.Duration) Ticker {
	return &standardTicker{ticker: time.NewTicker(d)}
}

func (sc *standardClock) NewTimer(d time.Duration) Timer {
	return &standardTimer{timer: time.NewTimer(d)}
}

// standardTicker wraps time.Ticker to satisfy Ticker.
type standardTicker struct {
	ticker *time.Ticker
}

func (st *standardTicker) Chan() <-chan time.Time      { return st.ticker.C }
func (st *standardTicker) Stop()                       { st.ticker.Stop() }
func (st *standardTicker) Reset(d time.Duration)       { st.ticker.Reset(d) }

// standardTimer wraps time.Timer to satisfy Timer.
type standardTimer struct {
	timer *time.Timer
}

func (st *standardTimer) Chan() <-chan time.Time   { return st.timer.C }
func (st *standardTimer) Stop() bool               { return st.timer.Stop() }
func (st *standardTimer) Reset(d time.Duration) bool { return st.timer.Reset(d) }
