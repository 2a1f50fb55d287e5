package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the state machine, the request bridge and the adapters.
var (
	// Login errors
	ErrPreconditionFailed = errors.New("login precondition failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeRequired  = errors.New("second factor required")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrChallengeExpired   = errors.New("challenge expired")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")

	// Request errors
	ErrTransportFailure = errors.New("transport failure")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Kind is the user-facing bucket an error falls into.
type Kind int

const (
	KindUnknown Kind = iota
	KindPreconditionFailed
	KindInvalidCredentials
	KindChallengeRequired
	KindNotAuthenticated
	KindSessionExpired
	KindTransportFailure
	KindPermissionDenied
	KindNotFound
)

var kindMessages = map[Kind]string{
	KindUnknown:            "Something went wrong. Please try again.",
	KindPreconditionFailed: "The school service could not be reached. Please try again.",
	KindInvalidCredentials: "Your identifier or password is incorrect. Please check your password.",
	KindChallengeRequired:  "Please answer the verification question to finish signing in.",
	KindNotAuthenticated:   "Please sign in first.",
	KindSessionExpired:     "Your session has expired. Please sign in again.",
	KindTransportFailure:   "Network problem. Tap to retry.",
	KindPermissionDenied:   "This feature is not available for this account.",
	KindNotFound:           "Nothing was found for this request.",
}

// Classify maps err to the first taxonomy bucket found in its chain.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrChallengeRequired):
		return KindChallengeRequired
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrNoPendingChallenge), errors.Is(err, ErrChallengeExpired):
		return KindNotAuthenticated
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrTransportFailure):
		return KindTransportFailure
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}

// UserMessage returns the message shown to the user for err. Backend text is never exposed.
func UserMessage(err error) string {
	return kindMessages[Classify(err)]
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
