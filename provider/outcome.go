package provider

import (
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
)

type OutcomeKind int

const (
	OutcomeAuthenticated OutcomeKind = iota + 1
	OutcomeChallengeRequired
	OutcomeRejected
	OutcomeTransportFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeChallengeRequired:
		return "challenge_required"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailed:
		return "transport_failed"
	}
	return "unknown"
}

// LoginOutcome is the result of one login step. Exactly the fields matching Kind are set.
type LoginOutcome struct {
	Kind      OutcomeKind
	Session   *sessions.Session
	Accounts  []accounts.Account
	Challenge *LoginChallenge
	Reason    error

	// CredentialUpdates are merged into the credentials persisted after an Authenticated outcome.
	CredentialUpdates map[string]string
	// RotatedSecret replaces the persisted secret when not empty (e.g. a new refresh token).
	RotatedSecret string
}

func Authenticated(s *sessions.Session, list []accounts.Account) LoginOutcome {
	return LoginOutcome{Kind: OutcomeAuthenticated, Session: s, Accounts: list}
}

func ChallengeRequired(c LoginChallenge) LoginOutcome {
	return LoginOutcome{Kind: OutcomeChallengeRequired, Challenge: &c}
}

// Rejected marks bad credentials. reason is wrapped so it matches errors.ErrInvalidCredentials.
func Rejected(reason string) LoginOutcome {
	return LoginOutcome{Kind: OutcomeRejected, Reason: errors.Wrap(apperrors.ErrInvalidCredentials, reason)}
}

// TransportFailed marks any failure that is not a verdict on the credentials.
// Errors outside the taxonomy are wrapped with errors.ErrTransportFailure.
func TransportFailed(err error) LoginOutcome {
	if err == nil {
		err = apperrors.ErrTransportFailure
	}
	if !errors.Is(err, apperrors.ErrTransportFailure) && !errors.Is(err, apperrors.ErrPreconditionFailed) &&
		!errors.Is(err, apperrors.ErrUnsupported) {
		err = errors.Wrap(apperrors.ErrTransportFailure, err.Error())
	}
	return LoginOutcome{Kind: OutcomeTransportFailed, Reason: err}
}

// Err returns nil for Authenticated, errors.ErrChallengeRequired for a challenge and Reason otherwise.
func (o LoginOutcome) Err() error {
	switch o.Kind {
	case OutcomeAuthenticated:
		return nil
	case OutcomeChallengeRequired:
		return apperrors.ErrChallengeRequired
	}
	if o.Reason != nil {
		return o.Reason
	}
	return apperrors.ErrTransportFailure
}

// PromptKind tells the UI which second-factor input to render.
type PromptKind string

const (
	// PromptChoice is a multiple choice question; the response is one of Choices.
	PromptChoice PromptKind = "choice"
	// PromptCode is a free text code such as a PIN or a one-time password.
	PromptCode PromptKind = "code"
)

// LoginChallenge is a pending second-factor step. It lives for one login attempt only.
type LoginChallenge struct {
	ID                string
	ContinuationToken string
	PromptKind        PromptKind
	Prompt            string
	Choices           []string
	ExpiresHint       time.Time

	// Metadata is adapter private carry-over needed to resume the attempt.
	Metadata map[string]string
}

// Expired reports whether the challenge can no longer be answered.
func (c LoginChallenge) Expired(now time.Time) bool {
	return !c.ExpiresHint.IsZero() && now.After(c.ExpiresHint)
}
