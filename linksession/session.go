package linksession

import (
	"time"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
)

// State is the lifecycle position of a link session.
type State string

const (
	StateIdle             State = "idle"
	StateTokenRequested   State = "token_requested"
	StateWidgetOpen       State = "widget_open"
	StateConnected        State = "connected"
	StateTransferFinished State = "transfer_finished"
	StateExited           State = "exited"
)

// allowedTransitions encodes the session lifecycle:
// Idle -> TokenRequested -> WidgetOpen -> {Connected | TransferFinished | Exited}.
// Exited is terminal; there is no cancellation path beyond the widget's own
// exit.
var allowedTransitions = map[State][]State{
	StateIdle:             {StateTokenRequested},
	StateTokenRequested:   {StateWidgetOpen},
	StateWidgetOpen:       {StateConnected, StateTransferFinished, StateExited},
	StateConnected:        {StateTransferFinished, StateExited},
	StateTransferFinished: {StateExited},
	StateExited:           {},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one user link attempt: the requested product scope, the issued
// link token, and the credentials captured when the vendor widget connects.
// Sessions live only for the process lifetime.
type Session struct {
	ID       string
	Products []string
	State    State

	// Credentials
	LinkToken   string
	AccessToken string
	AccountID   string
	BrokerName  string

	// Session management
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Transition moves the session to a new state, rejecting moves the
// lifecycle does not allow. Entering WidgetOpen requires a held link token.
func (s *Session) Transition(to State, now time.Time) error {
	if !CanTransition(s.State, to) {
		return errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", s.State, to)
	}
	if to == StateWidgetOpen && s.LinkToken == "" {
		return errors.Wrapf(errors.ErrInvalidTransition, "widget opened without a link token")
	}
	s.State = to
	s.UpdatedAt = now
	return nil
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
