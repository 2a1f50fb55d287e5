package sessionhandle

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Error codes reported by the session-handle platform.
const (
	CodeBadCredentials = 1
	CodeSecondFactor   = 2
	CodeAccessDenied   = 10
	CodeSessionExpired = 22
	CodePageExpired    = 25
	CodeNotFound       = 404
)

var expiredCodes = []int{CodeSessionExpired, CodePageExpired}

// HandleError is the typed failure of every Client call.
type HandleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Continuation identifies the half-open handle when Code is CodeSecondFactor.
	Continuation string `json:"continuation,omitempty"`
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("session handle error %d: %s", e.Code, e.Message)
}

// Expired reports whether the handle the call used is dead.
func (e *HandleError) Expired() bool {
	return slices.Contains(expiredCodes, e.Code)
}

// Member is one account reachable through a handle.
type Member struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Class   string   `json:"class"`
	Email   string   `json:"email"`
	Photo   string   `json:"photo"`
	School  School   `json:"school"`
	Modules []string `json:"modules"`
}

type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Opened is the result of a successful Open or Confirm.
type Opened struct {
	Handle  string   `json:"handle"`
	Members []Member `json:"members"`
}

// Client is the session-handle library contract. Failures are *HandleError when the platform
// answered, any other error when it could not be reached.
type Client interface {
	// Open starts a handle. A CodeSecondFactor error carries the continuation to Confirm.
	Open(ctx context.Context, username, password, device string) (*Opened, error)
	// Confirm completes a half-open handle with the code the user received.
	Confirm(ctx context.Context, continuation, code string) (*Opened, error)
	// Call invokes a platform function on an open handle.
	Call(ctx context.Context, handle, function string, args map[string]any) (json.RawMessage, error)
}
