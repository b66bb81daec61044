package bridge

import "time"

type sniperState int

const (
	sniperIdle sniperState = iota
	sniperArmed
)

// Sniper decides when a confirmation poll of the bus is due. It is a pure
// state machine over caller-provided timestamps so it can be tested without
// sleeping; the run loop around it owns the actual timer.
//
// Activity arms (or re-arms) a deadline one quiet time away, so a burst of
// presses collapses into a single poll shortly after the last one. A safety
// net forces a poll when none has happened for a full poll interval,
// bounding staleness even if activity detection fails.
type Sniper struct {
	quietTime    time.Duration
	pollInterval time.Duration

	state    sniperState
	deadline time.Time
	lastPoll time.Time
}

func NewSniper(quietTime time.Duration, pollInterval time.Duration, now time.Time) *Sniper {
	return &Sniper{
		quietTime:    quietTime,
		pollInterval: pollInterval,
		state:        sniperIdle,
		lastPoll:     now,
	}
}

// Activity restarts the quiet-time countdown.
func (s *Sniper) Activity(now time.Time) {
	s.state = sniperArmed
	s.deadline = now.Add(s.quietTime)
}

// Armed reports whether a sniper poll is scheduled.
func (s *Sniper) Armed() bool {
	return s.state == sniperArmed
}

// NextWake returns how long the run loop may sleep before it has to check
// PollDue again: the earlier of the armed deadline and the safety net.
func (s *Sniper) NextWake(now time.Time) time.Duration {
	wake := s.lastPoll.Add(s.pollInterval)
	if s.state == sniperArmed && s.deadline.Before(wake) {
		wake = s.deadline
	}
	wait := wake.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// PollDue reports whether a poll must be issued now. A due sniper deadline
// and a due safety net collapse into a single poll: both conditions are
// consumed by the one call.
func (s *Sniper) PollDue(now time.Time) bool {
	due := false
	if s.state == sniperArmed && !now.Before(s.deadline) {
		s.state = sniperIdle
		due = true
	}
	if now.Sub(s.lastPoll) >= s.pollInterval {
		due = true
	}
	return due
}

// PollDone records a completed (or attempted) poll, resetting the safety
// net. Failed polls count as attempts so a broken bus is not hammered.
func (s *Sniper) PollDone(now time.Time) {
	s.lastPoll = now
}
