package clientfake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-school-session/provider/sessionhandle"
)

var _ sessionhandle.Client = (*FakeClient)(nil)

// FakeClient is an in-memory session-handle platform.
type FakeClient struct {
	password  string
	username  string
	pin       string
	members   []sessionhandle.Member
	responses map[string]json.RawMessage
	handles   map[string]bool
	pending   map[string]bool
	seq       int
	opens     int
	calls     int
	lastArgs  map[string]any
	callErr   error
	lock      sync.RWMutex
}

func NewFakeClient(username, password string, members ...sessionhandle.Member) *FakeClient {
	return &FakeClient{
		username:  username,
		password:  password,
		members:   members,
		responses: make(map[string]json.RawMessage),
		handles:   make(map[string]bool),
		pending:   make(map[string]bool),
	}
}

// RequirePIN makes Open answer with a second factor that Confirm accepts with pin.
func (c *FakeClient) RequirePIN(pin string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pin = pin
}

// SetResponse sets the data returned by Call for function.
func (c *FakeClient) SetResponse(function string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.responses[function] = raw
	return nil
}

// SetCallError makes every Call fail with err until cleared with nil.
func (c *FakeClient) SetCallError(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callErr = err
}

// SetPassword changes the accepted password.
func (c *FakeClient) SetPassword(password string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.password = password
}

// ExpireAll drops every open handle.
func (c *FakeClient) ExpireAll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.handles = make(map[string]bool)
}

func (c *FakeClient) Opens() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.opens
}

func (c *FakeClient) Calls() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.calls
}

// LastArgs returns the arguments of the last Call.
func (c *FakeClient) LastArgs() map[string]any {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastArgs
}

func (c *FakeClient) Open(ctx context.Context, username, password, device string) (*sessionhandle.Opened, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	c.opens++
	if username != c.username || password != c.password {
		return nil, &sessionhandle.HandleError{Code: sessionhandle.CodeBadCredentials, Message: "bad login"}
	}
	c.seq++
	if c.pin != "" {
		continuation := fmt.Sprintf("pending-%d", c.seq)
		c.pending[continuation] = true
		return nil, &sessionhandle.HandleError{
			Code:         sessionhandle.CodeSecondFactor,
			Message:      "Enter the code sent to your phone",
			Continuation: continuation,
		}
	}
	return c.openLocked(), nil
}

func (c *FakeClient) Confirm(ctx context.Context, continuation, code string) (*sessionhandle.Opened, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.pending[continuation] {
		return nil, &sessionhandle.HandleError{Code: sessionhandle.CodePageExpired, Message: "unknown continuation"}
	}
	if code != c.pin {
		return nil, &sessionhandle.HandleError{Code: sessionhandle.CodeBadCredentials, Message: "wrong code"}
	}
	delete(c.pending, continuation)
	c.seq++
	return c.openLocked(), nil
}

func (c *FakeClient) openLocked() *sessionhandle.Opened {
	handle := fmt.Sprintf("handle-%d", c.seq)
	c.handles[handle] = true
	return &sessionhandle.Opened{Handle: handle, Members: c.members}
}

func (c *FakeClient) Call(ctx context.Context, handle, function string, args map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	c.calls++
	c.lastArgs = args
	if c.callErr != nil {
		return nil, c.callErr
	}
	if !c.handles[handle] {
		return nil, &sessionhandle.HandleError{Code: sessionhandle.CodeSessionExpired, Message: "session expired"}
	}
	raw, ok := c.responses[function]
	if !ok {
		return nil, &sessionhandle.HandleError{Code: sessionhandle.CodeNotFound, Message: "no such function"}
	}
	return raw, nil
}
