package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// Bridge runs canonical requests against the active session and recovers an expired session
// with at most one re-login per identity at a time and one retry per request.
type Bridge struct {
	machine        *Machine
	adapters       *provider.Set
	holder         *sessions.Holder
	registry       *accounts.Registry
	validator      *Validator
	telemetry      *telemetry
	reloginTimeout time.Duration

	relogins singleflight.Group
	verdict  atomic.Pointer[reloginVerdict]
}

func newBridge(m *Machine, reloginTimeout time.Duration) *Bridge {
	return &Bridge{
		machine:        m,
		adapters:       m.adapters,
		holder:         m.holder,
		registry:       m.registry,
		validator:      m.validator,
		telemetry:      m.telemetry,
		reloginTimeout: reloginTimeout,
	}
}

// Execute resolves the account, fetches, and on an expired session re-logs in once and retries once.
func (b *Bridge) Execute(ctx context.Context, req provider.Request) provider.Response {
	ctx, span := b.telemetry.tracer.Start(ctx, "auth.Bridge.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("feature", string(req.Feature)))

	resp := b.execute(ctx, req)
	span.SetAttributes(attribute.String("status", string(resp.Status)))
	b.telemetry.request(ctx, string(req.Feature), string(resp.Status))
	return resp
}

func (b *Bridge) execute(ctx context.Context, req provider.Request) provider.Response {
	if err := b.validator.ValidateRequest(req); err != nil {
		return provider.Failed(provider.StatusNotFound, err)
	}
	session := b.holder.Current()
	if session == nil {
		return provider.Failed(provider.StatusAuthExpired, apperrors.ErrNotAuthenticated)
	}
	account, err := b.registry.Resolve(req.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotAuthenticated) {
			return provider.Failed(provider.StatusAuthExpired, err)
		}
		return provider.Failed(provider.StatusNotFound, err)
	}
	if !account.Can(req.Feature) {
		return provider.Failed(provider.StatusDenied, errors.Wrapf(apperrors.ErrPermissionDenied, "account %s has no %s", account.ID, req.Feature))
	}
	req.AccountID = account.ID

	adapter, err := b.adapters.Get(session.ProviderKind)
	if err != nil {
		return provider.Failed(provider.StatusTransportError, errors.Wrap(apperrors.ErrUnsupported, err.Error()))
	}

	resp := adapter.Fetch(ctx, session, req)
	if !adapter.IsExpired(resp) || ctx.Err() != nil {
		return resp
	}
	logger := log.With().Str("provider", string(adapter.Kind())).Str("feature", string(req.Feature)).Str("account_id", account.ID).Logger()
	logger.Debug().Msg("session expired, re-authenticating")

	fresh, err := b.relogin(ctx, session)
	if err != nil {
		if ctx.Err() != nil {
			return provider.TransportError(ctx, err)
		}
		logger.Warn().Err(err).Msg("re-login failed")
		return provider.Failed(provider.StatusAuthExpired, err)
	}

	retried := adapter.Fetch(ctx, fresh, req)
	if adapter.IsExpired(retried) {
		retried.Status = provider.StatusAuthExpired
	}
	return retried
}

// reloginVerdict is the failure of the last re-login that dropped its session.
type reloginVerdict struct {
	observed *sessions.Session
	err      error
}

// relogin returns a session newer than observed. Concurrent callers for the same identity share
// one login; a caller arriving after the session was already replaced just uses the new one, and
// one arriving after a failed re-login dropped it gets that same failure.
func (b *Bridge) relogin(ctx context.Context, observed *sessions.Session) (*sessions.Session, error) {
	if cur, done, err := b.settled(observed); done {
		return cur, err
	}

	ch := b.relogins.DoChan(observed.Identity, func() (any, error) {
		if cur, done, err := b.settled(observed); done {
			return cur, err
		}
		// The flight outlives any single caller's cancellation, bounded by its own timeout.
		reloginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.reloginTimeout)
		defer cancel()

		out := b.machine.Relogin(reloginCtx, observed)
		b.telemetry.relogin(reloginCtx, string(observed.ProviderKind), out.Kind.String())
		if out.Kind != provider.OutcomeAuthenticated {
			if b.holder.Current() == nil {
				b.verdict.Store(&reloginVerdict{observed: observed, err: out.Err()})
			}
			return nil, out.Err()
		}
		return out.Session, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sessions.Session), nil
	}
}

// settled reports whether observed has already been dealt with by an earlier re-login.
func (b *Bridge) settled(observed *sessions.Session) (*sessions.Session, bool, error) {
	cur := b.holder.Current()
	if cur == observed {
		return nil, false, nil
	}
	if cur != nil {
		return cur, true, nil
	}
	if v := b.verdict.Load(); v != nil && v.observed == observed {
		return nil, true, v.err
	}
	return nil, true, apperrors.ErrNotAuthenticated
}
