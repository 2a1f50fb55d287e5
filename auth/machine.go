package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/credentials"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// pendingChallenge is the single login attempt waiting for a second factor.
type pendingChallenge struct {
	adapter   provider.Adapter
	creds     credentials.Credentials
	challenge provider.LoginChallenge
}

// Machine runs the login lifecycle for whichever provider the credentials name.
// Login attempts are serialized; the Session and the account registry are only ever swapped whole.
type Machine struct {
	adapters  *provider.Set
	holder    *sessions.Holder
	registry  *accounts.Registry
	store     credentials.Store
	validator *Validator
	telemetry *telemetry
	nowTime   func() time.Time

	lock    sync.Mutex
	pending *pendingChallenge
	state   atomic.Int32
}

func newMachine(adapters *provider.Set, holder *sessions.Holder, registry *accounts.Registry,
	store credentials.Store, tel *telemetry, nowTime func() time.Time) *Machine {
	return &Machine{
		adapters:  adapters,
		holder:    holder,
		registry:  registry,
		store:     store,
		validator: NewValidator(),
		telemetry: tel,
		nowTime:   nowTime,
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

func (m *Machine) setState(s State) {
	m.state.Store(int32(s))
}

// Pending returns the challenge waiting for an answer.
func (m *Machine) Pending() (provider.LoginChallenge, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending == nil {
		return provider.LoginChallenge{}, apperrors.ErrNoPendingChallenge
	}
	return m.pending.challenge, nil
}

// Begin runs a full login attempt. Any pending challenge is abandoned.
func (m *Machine) Begin(ctx context.Context, creds credentials.Credentials) provider.LoginOutcome {
	return m.begin(ctx, creds, nil)
}

// begin runs one login. A non-nil observed makes it a silent re-login of that session: the
// pending challenge is left alone and the state only moves when the outcome changes what
// the caller holds.
func (m *Machine) begin(ctx context.Context, creds credentials.Credentials, observed *sessions.Session) provider.LoginOutcome {
	ctx, span := m.telemetry.tracer.Start(ctx, "auth.Machine.Begin")
	defer span.End()
	span.SetAttributes(attribute.String("provider", string(creds.ProviderKind)), attribute.Bool("silent", observed != nil))

	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.validator.ValidateCredentials(creds); err != nil {
		out := provider.LoginOutcome{Kind: provider.OutcomeRejected, Reason: errors.Wrap(apperrors.ErrInvalidCredentials, err.Error())}
		return m.settle(ctx, nil, creds, out, observed)
	}
	if cur := m.holder.Current(); cur != nil && cur.ProviderKind != creds.ProviderKind {
		return provider.LoginOutcome{Kind: provider.OutcomeRejected, Reason: ErrProviderLocked}
	}
	adapter, err := m.adapters.Get(creds.ProviderKind)
	if err != nil {
		return m.settle(ctx, nil, creds, provider.TransportFailed(errors.Wrap(apperrors.ErrUnsupported, err.Error())), observed)
	}

	if observed == nil {
		m.pending = nil
	}
	m.enter(StateAcquiringPreconditions, observed)
	pre, err := adapter.AcquirePreconditions(ctx, creds)
	if err != nil {
		log.Err(err).Str("provider", string(adapter.Kind())).Str("state", m.State().String()).Msg("login precondition failed")
		return m.settle(ctx, adapter, creds, provider.TransportFailed(err), observed)
	}

	m.enter(StateSubmittingCredentials, observed)
	out := adapter.SubmitCredentials(ctx, creds, pre)
	out = m.settle(ctx, adapter, creds, out, observed)
	if out.Kind != provider.OutcomeAuthenticated && out.Kind != provider.OutcomeChallengeRequired {
		span.SetStatus(codes.Error, out.Kind.String())
	}
	return out
}

// Continue answers the pending challenge. A challenge is consumed by its first answer,
// whatever the result.
func (m *Machine) Continue(ctx context.Context, response string) provider.LoginOutcome {
	ctx, span := m.telemetry.tracer.Start(ctx, "auth.Machine.Continue")
	defer span.End()

	m.lock.Lock()
	defer m.lock.Unlock()

	p := m.pending
	m.pending = nil
	if p == nil {
		return provider.LoginOutcome{Kind: provider.OutcomeRejected, Reason: apperrors.ErrNoPendingChallenge}
	}
	if err := m.validator.ValidateChallengeResponse(p.challenge, response, m.nowTime()); err != nil {
		reason := apperrors.ErrInvalidCredentials
		if p.challenge.Expired(m.nowTime()) {
			reason = apperrors.ErrChallengeExpired
		}
		out := provider.LoginOutcome{Kind: provider.OutcomeRejected, Reason: errors.Wrap(reason, err.Error())}
		return m.settle(ctx, p.adapter, p.creds, out, nil)
	}

	m.enter(StateSubmittingCredentials, nil)
	out := p.adapter.ContinueLogin(ctx, p.creds, p.challenge, response)
	if out.Kind == provider.OutcomeChallengeRequired {
		out = provider.Rejected("second challenge issued after an answer")
	}
	return m.settle(ctx, p.adapter, p.creds, out, nil)
}

// Relogin runs a silent login with the persisted credentials to replace observed.
// When the credentials are rejected, or the backend asks for a second factor, the dead session
// is dropped so later requests fail fast instead of submitting the credentials again.
func (m *Machine) Relogin(ctx context.Context, observed *sessions.Session) provider.LoginOutcome {
	stored, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrNotStored) {
			return provider.LoginOutcome{Kind: provider.OutcomeRejected, Reason: errors.Wrap(apperrors.ErrNotAuthenticated, "no stored credentials")}
		}
		return provider.TransportFailed(errors.Wrap(err, "[Machine.Relogin] load credentials"))
	}
	return m.begin(ctx, *stored, observed)
}

// Logout drops the session, the accounts, any pending challenge and the stored credentials.
func (m *Machine) Logout(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.pending = nil
	m.holder.Clear()
	m.registry.Clear()
	m.setState(StateUnauthenticated)
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "[Machine.Logout] clear credentials")
	}
	return nil
}

func (m *Machine) enter(s State, observed *sessions.Session) {
	if observed == nil {
		m.setState(s)
	}
}

// settle moves the machine to the state matching out. Called with the lock held; adapter is
// nil when the attempt never reached one.
//
// For a silent re-login (observed != nil) a failed outcome leaves state and session alone,
// except a rejection or a challenge: those drop observed, and the state follows only if the
// drop happened.
func (m *Machine) settle(ctx context.Context, adapter provider.Adapter, creds credentials.Credentials,
	out provider.LoginOutcome, observed *sessions.Session) provider.LoginOutcome {
	kind := string(creds.ProviderKind)
	if out.Kind == provider.OutcomeAuthenticated && (out.Session == nil || len(out.Accounts) == 0) {
		out = provider.TransportFailed(errors.New("login succeeded without a session or accounts"))
	}
	m.telemetry.loginStep(ctx, kind, out.Kind.String())

	switch out.Kind {
	case provider.OutcomeAuthenticated:
		m.holder.Replace(out.Session)
		m.registry.Replace(out.Accounts)

		persisted := creds.WithExtra(out.CredentialUpdates)
		if out.RotatedSecret != "" {
			persisted = persisted.WithSecret(out.RotatedSecret)
		}
		if err := m.store.Save(ctx, persisted); err != nil {
			// The session is usable; only a later silent re-login will miss these credentials.
			log.Err(err).Str("provider", kind).Msg("failed to persist credentials")
		}
		m.setState(StateAuthenticated)
		log.Info().Str("provider", kind).Int("accounts", len(out.Accounts)).Bool("silent", observed != nil).Msg("authenticated")
	case provider.OutcomeChallengeRequired:
		if !m.drop(observed) {
			break
		}
		m.pending = &pendingChallenge{adapter: adapter, creds: creds, challenge: *out.Challenge}
		m.setState(StateAwaitingChallengeResponse)
		log.Info().Str("provider", kind).Str("prompt_kind", string(out.Challenge.PromptKind)).Bool("silent", observed != nil).Msg("second factor required")
	case provider.OutcomeRejected:
		if !m.drop(observed) {
			break
		}
		m.setState(StateRejected)
		log.Warn().Str("provider", kind).Bool("silent", observed != nil).Msg("credentials rejected")
	default:
		log.Err(out.Err()).Str("provider", kind).Bool("silent", observed != nil).Msg("login transport failure")
		m.enter(StateTransportFailed, observed)
	}
	return out
}

// drop forgets observed and its accounts. It reports whether the outcome of the attempt now
// owns the machine state: always for an interactive login, and for a silent one only while
// observed is still the held session.
func (m *Machine) drop(observed *sessions.Session) bool {
	if observed == nil {
		return true
	}
	if !m.holder.CompareAndReplace(observed, nil) {
		return false
	}
	m.registry.Clear()
	return true
}
