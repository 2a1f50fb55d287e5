package auth_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/credentials"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
)

const (
	testAnswer       = "Paris"
	testContinuation = "continuation-1"
)

// mockAdapter is a scripted backend that counts every network step.
type mockAdapter struct {
	kind credentials.ProviderKind

	mu                sync.Mutex
	password          string
	requireChallenge  bool
	failPreconditions bool
	rotatedSecret     string
	loginDelay        time.Duration
	validToken        string
	tokenSeq          int
	beforeFetch       func(call int32)

	preconditionCalls atomic.Int32
	submitCalls       atomic.Int32
	continueCalls     atomic.Int32
	fetchCalls        atomic.Int32
}

var _ provider.Adapter = (*mockAdapter)(nil)

func newMockAdapter(kind credentials.ProviderKind) *mockAdapter {
	return &mockAdapter{kind: kind, password: "right"}
}

func (m *mockAdapter) set(fn func(m *mockAdapter)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// expire invalidates every session handed out so far.
func (m *mockAdapter) expire() {
	m.set(func(m *mockAdapter) { m.validToken = "" })
}

func (m *mockAdapter) Kind() credentials.ProviderKind {
	return m.kind
}

func (m *mockAdapter) AcquirePreconditions(ctx context.Context, _ credentials.Credentials) (provider.Preconditions, error) {
	m.preconditionCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPreconditions {
		return nil, apperrors.Wrapf(apperrors.ErrPreconditionFailed, "no anti-forgery token")
	}
	return provider.Preconditions{"gtk": "token"}, nil
}

func (m *mockAdapter) SubmitCredentials(ctx context.Context, creds credentials.Credentials, pre provider.Preconditions) provider.LoginOutcome {
	m.submitCalls.Add(1)
	m.mu.Lock()
	delay := m.loginDelay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return provider.TransportFailed(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pre["gtk"] == "" {
		return provider.TransportFailed(apperrors.ErrPreconditionFailed)
	}
	if creds.Secret != m.password {
		return provider.Rejected("bad password")
	}
	if m.requireChallenge && creds.Get("fa") == "" {
		return provider.ChallengeRequired(provider.LoginChallenge{
			ID:                "challenge-1",
			ContinuationToken: testContinuation,
			PromptKind:        provider.PromptChoice,
			Prompt:            "Birth city?",
			Choices:           []string{"Lyon", testAnswer},
			ExpiresHint:       time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		})
	}
	return m.authenticatedLocked(creds)
}

func (m *mockAdapter) authenticatedLocked(creds credentials.Credentials) provider.LoginOutcome {
	m.tokenSeq++
	m.validToken = fmt.Sprintf("token-%d", m.tokenSeq)
	s := sessions.New(m.kind, creds.Identity(), m.validToken, time.Now(), nil)
	out := provider.Authenticated(s, []accounts.Account{
		{ID: "child-1", DisplayName: "Alice", Kind: accounts.KindParent, Capabilities: accounts.NewFeatureSet(accounts.AllFeatures...)},
		{ID: "child-2", DisplayName: "Bob", Kind: accounts.KindParent, Capabilities: accounts.NewFeatureSet(accounts.FeatureTimetable)},
	})
	out.CredentialUpdates = map[string]string{credentials.ExtraDeviceID: "device-1"}
	out.RotatedSecret = m.rotatedSecret
	return out
}

func (m *mockAdapter) ContinueLogin(ctx context.Context, creds credentials.Credentials, challenge provider.LoginChallenge, response string) provider.LoginOutcome {
	m.continueCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if challenge.ContinuationToken != testContinuation || response != testAnswer {
		return provider.Rejected("wrong answer")
	}
	out := m.authenticatedLocked(creds)
	out.CredentialUpdates["fa"] = "remembered"
	return out
}

// Fetch echoes the request it served.
func (m *mockAdapter) Fetch(ctx context.Context, session *sessions.Session, req provider.Request) provider.Response {
	call := m.fetchCalls.Add(1)
	m.mu.Lock()
	hook := m.beforeFetch
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return provider.TransportError(ctx, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.Token != m.validToken {
		return provider.Failed(provider.StatusAuthExpired, fmt.Errorf("token %s is dead", session.Token))
	}
	return provider.OK(req)
}

func (m *mockAdapter) IsExpired(resp provider.Response) bool {
	return !resp.Cancelled() && resp.Status == provider.StatusAuthExpired
}
