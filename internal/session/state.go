package session

import "github.com/ronerog/furia-app/internal/models"

// State is the session lifecycle state.
type State int

const (
	// StateUnknown holds until Restore resolves.
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON bodies.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason tells observers what caused a transition.
type Reason string

const (
	ReasonRestore      Reason = "restore"
	ReasonLogin        Reason = "login"
	ReasonRegister     Reason = "register"
	ReasonLogout       Reason = "logout"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonExpired      Reason = "expired"
	ReasonRefresh      Reason = "refresh"
	ReasonProfile      Reason = "profile"
)

// Event is delivered to observers after each transition.
//
// Refresh and profile updates are delivered as authenticated to
// authenticated events with an unchanged token; Started reports whether
// the event begins a new session.
type Event struct {
	Previous State
	Current  State
	Reason   Reason
	User     *models.User // copy of the user record, nil when unauthenticated
	Token    string       // bearer token, "" when unauthenticated
}

// Started reports whether the event opens a new authenticated session,
// including a login that replaces a running one.
func (e Event) Started() bool {
	if e.Current != StateAuthenticated {
		return false
	}
	switch e.Reason {
	case ReasonRestore, ReasonLogin, ReasonRegister:
		return true
	}
	return false
}

// Ended reports whether the event closes an authenticated session.
func (e Event) Ended() bool {
	return e.Previous == StateAuthenticated && e.Current != StateAuthenticated
}

// Observer receives session events. Observers run synchronously, in
// transition order, outside the manager lock; they may call back into the
// manager.
type Observer func(Event)
