package session

// State is the session lifecycle. It is owned exclusively by the Session:
// collaborators emit events that the session folds into a transition, but
// never mutate it themselves.
type State string

const (
	StateIdle                 State = "idle"
	StateAcquiringCredentials State = "acquiring_credentials"
	StateJoining              State = "joining"
	StateAwaitingAgent        State = "awaiting_agent"
	StateActive               State = "active"
	StateStopping             State = "stopping"
	StateStopped              State = "stopped"
	StateFailed               State = "failed"
)

// terminal reports whether the session can never progress again.
func (s State) terminal() bool {
	return s == StateStopped || s == StateFailed
}
