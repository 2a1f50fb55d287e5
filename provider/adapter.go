package provider

import (
	"context"

	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
)

// Preconditions carries values obtained before credentials are submitted, such as an
// anti-forgery token. Adapters without preconditions return an empty value.
type Preconditions map[string]string

// Adapter is implemented once per credentials.ProviderKind.
type Adapter interface {
	Kind() credentials.ProviderKind

	// AcquirePreconditions fetches whatever the backend requires before it accepts credentials.
	// A failure wraps errors.ErrPreconditionFailed and must not be retried silently.
	AcquirePreconditions(ctx context.Context, creds credentials.Credentials) (Preconditions, error)

	// SubmitCredentials sends one login request and classifies the answer.
	SubmitCredentials(ctx context.Context, creds credentials.Credentials, pre Preconditions) LoginOutcome

	// ContinueLogin answers a pending challenge. Adapters that never issue challenges return
	// a TransportFailed outcome wrapping errors.ErrUnsupported.
	ContinueLogin(ctx context.Context, creds credentials.Credentials, challenge LoginChallenge, response string) LoginOutcome

	// Fetch performs one canonical data operation with an established Session.
	Fetch(ctx context.Context, session *sessions.Session, req Request) Response

	// IsExpired tells whether resp means the Session is dead.
	IsExpired(resp Response) bool
}

// BeginLogin runs both login phases of a.
func BeginLogin(ctx context.Context, a Adapter, creds credentials.Credentials) LoginOutcome {
	pre, err := a.AcquirePreconditions(ctx, creds)
	if err != nil {
		return TransportFailed(err)
	}
	return a.SubmitCredentials(ctx, creds, pre)
}

// Set indexes adapters by kind.
type Set struct {
	adapters map[credentials.ProviderKind]Adapter
}

func NewSet(adapters ...Adapter) *Set {
	s := &Set{adapters: make(map[credentials.ProviderKind]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			s.adapters[a.Kind()] = a
		}
	}
	return s
}

// Get returns the adapter registered for kind.
func (s *Set) Get(kind credentials.ProviderKind) (Adapter, error) {
	a, ok := s.adapters[kind]
	if !ok {
		return nil, errors.Errorf("[Set.Get] no adapter registered for provider %q", kind)
	}
	return a, nil
}
