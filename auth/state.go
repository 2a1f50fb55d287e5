package auth

// State is a position of the login state machine.
type State int32

const (
	StateUnauthenticated State = iota
	StateAcquiringPreconditions
	StateSubmittingCredentials
	StateAwaitingChallengeResponse
	StateAuthenticated
	StateRejected
	StateTransportFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAcquiringPreconditions:
		return "ACQUIRING_PRECONDITIONS"
	case StateSubmittingCredentials:
		return "SUBMITTING_CREDENTIALS"
	case StateAwaitingChallengeResponse:
		return "AWAITING_CHALLENGE_RESPONSE"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateRejected:
		return "REJECTED"
	case StateTransportFailed:
		return "TRANSPORT_FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether the caller has to start over with Login.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateRejected
}
