package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultReloginTimeout = 30 * time.Second

// Service is the inbound surface used by the UI layer.
type Service struct {
	machine  *Machine
	bridge   *Bridge
	registry *accounts.Registry
	holder   *sessions.Holder
	store    credentials.Store

	nowTime        func() time.Time
	reloginTimeout time.Duration
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithReloginTimeout bounds a silent re-login, including callers waiting on it.
func WithReloginTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.reloginTimeout = d
		}
	}
}

// WithTracerProvider sets the tracer provider. The global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. The global one is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) ServiceOption {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// NewService wires the state machine and the request bridge over the given adapters and store.
func NewService(adapters *provider.Set, store credentials.Store, options ...ServiceOption) (*Service, error) {
	if adapters == nil {
		return nil, errors.New("[NewService] adapters are required")
	}
	if store == nil {
		return nil, errors.New("[NewService] credentials store is required")
	}

	s := &Service{
		registry:       accounts.NewRegistry(),
		holder:         &sessions.Holder{},
		store:          store,
		nowTime:        time.Now,
		reloginTimeout: defaultReloginTimeout,
	}
	for _, opt := range options {
		opt(s)
	}

	tel, err := newTelemetry(s.tracerProvider, s.meterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService] telemetry")
	}
	s.machine = newMachine(adapters, s.holder, s.registry, store, tel, s.nowTime)
	s.bridge = newBridge(s.machine, s.reloginTimeout)
	return s, nil
}

// Login starts a login with fresh credentials.
func (s *Service) Login(ctx context.Context, creds credentials.Credentials) provider.LoginOutcome {
	return s.machine.Begin(ctx, creds)
}

// ContinueLogin answers the pending second factor.
func (s *Service) ContinueLogin(ctx context.Context, response string) provider.LoginOutcome {
	return s.machine.Continue(ctx, response)
}

// Restore signs in silently with the stored credentials, typically at process start.
func (s *Service) Restore(ctx context.Context) provider.LoginOutcome {
	return s.machine.Relogin(ctx, nil)
}

// Execute runs one canonical request. An empty account id targets the active account.
func (s *Service) Execute(ctx context.Context, feature accounts.Feature, accountID string, params provider.Params) provider.Response {
	return s.bridge.Execute(ctx, provider.Request{Feature: feature, AccountID: accountID, Params: params})
}

// Logout forgets the session, the accounts and the stored credentials.
func (s *Service) Logout(ctx context.Context) error {
	return s.machine.Logout(ctx)
}

// SelectAccount makes id the active account.
func (s *Service) SelectAccount(id string) error {
	return s.registry.Select(id)
}

// ActiveAccount returns the account requests default to.
func (s *Service) ActiveAccount() (accounts.Account, error) {
	return s.registry.Active()
}

// Accounts lists the accounts of the current session.
func (s *Service) Accounts() []accounts.Account {
	return s.registry.List()
}

// State returns the login state machine's current state.
func (s *Service) State() State {
	return s.machine.State()
}

// Authenticated reports whether a session is held, expired or not.
func (s *Service) Authenticated() bool {
	return s.holder.Current() != nil
}

// PendingChallenge returns the challenge waiting for an answer, if any.
func (s *Service) PendingChallenge() (provider.LoginChallenge, error) {
	return s.machine.Pending()
}
