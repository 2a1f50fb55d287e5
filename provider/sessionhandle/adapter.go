// Package sessionhandle adapts the session-handle platform.
//
// The platform is reached through a Client that keeps an opaque handle and reports failures as
// *HandleError codes. The handle is the session token.
package sessionhandle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultDevice       = "school-session"
	defaultChallengeTTL = 10 * time.Minute

	kindGuardian = "guardian"
)

type Config struct {
	Client       Client
	Device       string
	ChallengeTTL time.Duration
	Location     *time.Location
	Now          func() time.Time
}

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	cfg Config
}

func New(cfg Config) (*Adapter, error) {
	if cfg.Client == nil {
		return nil, errors.New("[sessionhandle.New] Client is required")
	}
	if cfg.Device == "" {
		cfg.Device = defaultDevice
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = defaultChallengeTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Kind() credentials.ProviderKind {
	return credentials.ProviderSessionHandle
}

// AcquirePreconditions has nothing to fetch; the library opens handles in one call.
func (a *Adapter) AcquirePreconditions(context.Context, credentials.Credentials) (provider.Preconditions, error) {
	return provider.Preconditions{}, nil
}

func (a *Adapter) SubmitCredentials(ctx context.Context, creds credentials.Credentials, _ provider.Preconditions) provider.LoginOutcome {
	device := creds.Get(credentials.ExtraDeviceID)
	if device == "" {
		device = a.cfg.Device
	}
	opened, err := a.cfg.Client.Open(ctx, creds.Identifier, creds.Secret, device)
	return a.classify(creds, opened, err)
}

// ContinueLogin confirms the half-open handle with the code the user typed.
func (a *Adapter) ContinueLogin(ctx context.Context, creds credentials.Credentials, challenge provider.LoginChallenge, response string) provider.LoginOutcome {
	opened, err := a.cfg.Client.Confirm(ctx, challenge.ContinuationToken, strings.TrimSpace(response))
	out := a.classify(creds, opened, err)
	if out.Kind == provider.OutcomeChallengeRequired {
		return provider.Rejected("second factor code refused")
	}
	return out
}

func (a *Adapter) classify(creds credentials.Credentials, opened *Opened, err error) provider.LoginOutcome {
	if err != nil {
		var he *HandleError
		if !errors.As(err, &he) {
			return provider.TransportFailed(err)
		}
		switch he.Code {
		case CodeBadCredentials:
			return provider.Rejected(he.Error())
		case CodeSecondFactor:
			if he.Continuation == "" {
				return provider.TransportFailed(errors.Wrap(he, "second factor without continuation"))
			}
			return provider.ChallengeRequired(provider.LoginChallenge{
				ID:                uuid.New().String(),
				ContinuationToken: he.Continuation,
				PromptKind:        provider.PromptCode,
				Prompt:            he.Message,
				ExpiresHint:       a.cfg.Now().Add(a.cfg.ChallengeTTL),
			})
		}
		log.Warn().Str("provider", string(a.Kind())).Int("code", he.Code).Msg("unexpected login error")
		return provider.TransportFailed(he)
	}
	if opened == nil || opened.Handle == "" {
		return provider.TransportFailed(errors.New("open returned no handle"))
	}

	list := make([]accounts.Account, 0, len(opened.Members))
	for _, m := range opened.Members {
		list = append(list, toAccount(m))
	}
	if len(list) == 0 {
		return provider.TransportFailed(errors.New("open returned no member"))
	}
	s := sessions.New(a.Kind(), creds.Identity(), opened.Handle, a.cfg.Now(), nil)
	return provider.Authenticated(s, list)
}

func toAccount(m Member) accounts.Account {
	kind := accounts.KindStudent
	if m.Kind == kindGuardian {
		kind = accounts.KindParent
	}
	caps := accounts.NewFeatureSet()
	for _, module := range m.Modules {
		if f, ok := moduleFeatures[strings.ToLower(module)]; ok {
			caps[f] = struct{}{}
		}
	}
	first, last, _ := strings.Cut(strings.TrimSpace(m.Name), " ")
	return accounts.Account{
		ID:            m.ID,
		DisplayName:   strings.TrimSpace(m.Name),
		Kind:          kind,
		Establishment: accounts.Establishment{ID: m.School.ID, Name: m.School.Name},
		Profile: accounts.Profile{
			FirstName: first,
			LastName:  last,
			ClassName: m.Class,
			Email:     m.Email,
			PhotoURL:  m.Photo,
		},
		Capabilities: caps,
	}
}

var moduleFeatures = map[string]accounts.Feature{
	"timetable":  accounts.FeatureTimetable,
	"marks":      accounts.FeatureGrades,
	"homework":   accounts.FeatureHomework,
	"attendance": accounts.FeatureSchoolLife,
}
