package realtime

import (
	"fmt"
	"time"
)

// State is a client connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticated
	Backoff
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Backoff:
		return "backoff"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is a State plus the number of consecutive failed attempts.
type Status struct {
	State   State
	Attempt int
}

func (s Status) String() string {
	if s.State == Backoff {
		return fmt.Sprintf("backoff(%d)", s.Attempt)
	}
	return s.State.String()
}

// EventKind is what happened to the client.
type EventKind int

const (
	// EventDial starts (or retries) a connection attempt.
	EventDial EventKind = iota
	// EventConnected means the server's connection message arrived.
	EventConnected
	// EventClosed means the attempt or the live connection ended. Code is
	// the close code, or 0 when the transport failed without one.
	EventClosed
	// EventStop is a deliberate shutdown by the caller.
	EventStop
)

type Event struct {
	Kind EventKind
	Code int
}

// Policy bounds reconnection.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultPolicy doubles from 1s up to 30s and gives up after 5 failures.
var DefaultPolicy = Policy{
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	MaxAttempts:  5,
}

// Delay returns the wait before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Next is the reconnect transition function. It returns the new status and,
// when entering Backoff, how long to wait before the next EventDial.
//
// Authentication and origin close codes are terminal. Failed is absorbing.
// Events that make no sense in the current state leave it unchanged.
func Next(s Status, ev Event, p Policy) (Status, time.Duration) {
	if s.State == Failed {
		return s, 0
	}
	if ev.Kind == EventStop {
		return Status{State: Disconnected}, 0
	}

	switch s.State {
	case Disconnected, Backoff:
		if ev.Kind == EventDial {
			return Status{State: Connecting, Attempt: s.Attempt}, 0
		}
	case Connecting, Authenticated:
		switch ev.Kind {
		case EventConnected:
			if s.State == Connecting {
				return Status{State: Authenticated}, 0
			}
		case EventClosed:
			if Terminal(ev.Code) {
				return Status{State: Failed, Attempt: s.Attempt}, 0
			}
			n := s.Attempt + 1
			if p.MaxAttempts > 0 && n > p.MaxAttempts {
				return Status{State: Failed, Attempt: s.Attempt}, 0
			}
			return Status{State: Backoff, Attempt: n}, p.Delay(n)
		}
	}
	return s, 0
}
