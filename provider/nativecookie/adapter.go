// Package nativecookie adapts the cookie/token web API.
//
// Login is a two step exchange: a GET that plants an anti-forgery token in a GTK cookie, then a
// POST of the credentials echoing that token in X-Gtk. Outcomes are numeric codes inside a JSON
// envelope. A 250 code starts a multiple choice second factor whose answer yields a (cn, cv) pair
// that is replayed with the credentials and remembered for later logins.
package nativecookie

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-session/credentials"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// ExtraChallengeCN and ExtraChallengeCV remember a solved second factor.
	ExtraChallengeCN = "fa_cn"
	ExtraChallengeCV = "fa_cv"

	metaGtk      = "gtk"
	metaDeviceID = "device_id"

	defaultChallengeTTL = 5 * time.Minute
)

type Config struct {
	BaseURL      string
	APIVersion   string
	UserAgent    string
	ChallengeTTL time.Duration
	Location     *time.Location
	HTTPClient   provider.HTTPDoer
	Now          func() time.Time
}

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	cfg Config
}

func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("[nativecookie.New] BaseURL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = provider.NewHTTPClient(30 * time.Second)
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
	return credentials.ProviderNativeCookie
}

// AcquirePreconditions fetches the GTK anti-forgery token.
func (a *Adapter) AcquirePreconditions(ctx context.Context, _ credentials.Credentials) (provider.Preconditions, error) {
	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/v3/login.awp", url.Values{"gtk": {"1"}}), nil)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrPreconditionFailed, err.Error())
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(apperrors.ErrPreconditionFailed, ctxErr.Error())
		}
		return nil, errors.Wrap(apperrors.ErrPreconditionFailed, err.Error())
	}
	_, _ = provider.ReadBody(resp)

	gtk, ok := ExtractCookieToken(resp.Header.Values("Set-Cookie"), gtkCookie)
	if !ok {
		log.Warn().Str("provider", string(a.Kind())).Int("http_status", resp.StatusCode).Msg("GTK cookie missing from precondition response")
		return nil, errors.Wrapf(apperrors.ErrPreconditionFailed, "no %s cookie in response", gtkCookie)
	}
	return provider.Preconditions{metaGtk: gtk}, nil
}

type challengeAnswer struct {
	CN string `json:"cn"`
	CV string `json:"cv"`
}

type loginPayload struct {
	Identifier string            `json:"identifier"`
	Password   string            `json:"password"`
	IsRelogin  bool              `json:"isRelogin"`
	UUID       string            `json:"uuid"`
	FA         []challengeAnswer `json:"fa,omitempty"`
}

// SubmitCredentials posts the credentials with the GTK token obtained beforehand.
func (a *Adapter) SubmitCredentials(ctx context.Context, creds credentials.Credentials, pre provider.Preconditions) provider.LoginOutcome {
	gtk := pre[metaGtk]
	if gtk == "" {
		return provider.TransportFailed(errors.Wrapf(apperrors.ErrPreconditionFailed, "missing %s token", gtkCookie))
	}
	deviceID := creds.Get(credentials.ExtraDeviceID)
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	payload := loginPayload{
		Identifier: creds.Identifier,
		Password:   creds.Secret,
		UUID:       deviceID,
	}
	if cn, cv := creds.Get(ExtraChallengeCN), creds.Get(ExtraChallengeCV); cn != "" && cv != "" {
		payload.FA = []challengeAnswer{{CN: cn, CV: cv}}
		payload.IsRelogin = true
	}

	r, err := a.post(ctx, "/v3/login.awp", nil, map[string]string{
		headerGtk: gtk,
		"Cookie":  gtkCookie + "=" + gtk,
	}, payload)
	if err != nil {
		return provider.TransportFailed(err)
	}

	logger := log.With().Str("provider", string(a.Kind())).Int("code", r.env.Code).Logger()
	switch r.env.Code {
	case codeSuccess:
		token := r.token()
		if token == "" {
			return provider.TransportFailed(errors.Wrap(ErrMalformedBody, "success without token"))
		}
		list, err := decodeAccounts(r.env.Data)
		if err != nil {
			return provider.TransportFailed(err)
		}
		s := sessions.New(a.Kind(), creds.Identity(), token, a.cfg.Now(), map[string]any{
			metaGtk:      gtk,
			metaDeviceID: deviceID,
		})
		out := provider.Authenticated(s, list)
		out.CredentialUpdates = map[string]string{credentials.ExtraDeviceID: deviceID}
		logger.Debug().Int("accounts", len(list)).Msg("login accepted")
		return out
	case codeChallenge:
		continuation := r.token()
		if continuation == "" {
			return provider.TransportFailed(errors.Wrap(ErrMalformedBody, "challenge without continuation token"))
		}
		logger.Debug().Msg("second factor requested")
		return a.openChallenge(ctx, continuation, gtk, deviceID)
	case codeBadCredentials:
		return provider.Rejected(fmt.Sprintf("login code %d", r.env.Code))
	}
	logger.Warn().Msg("unexpected login code")
	return provider.TransportFailed(errors.Errorf("unexpected login code %d", r.env.Code))
}

type challengeQuestion struct {
	Question     string   `json:"question"`
	Propositions []string `json:"propositions"`
}

// openChallenge fetches the question the user has to answer.
func (a *Adapter) openChallenge(ctx context.Context, continuation, gtk, deviceID string) provider.LoginOutcome {
	r, err := a.post(ctx, "/v3/connexion/doubleauth.awp", url.Values{"verbe": {"get"}}, map[string]string{
		headerToken: continuation,
		headerGtk:   gtk,
	}, struct{}{})
	if err != nil {
		return provider.TransportFailed(err)
	}
	if r.env.Code != codeSuccess {
		return provider.TransportFailed(errors.Errorf("challenge question code %d", r.env.Code))
	}
	var q challengeQuestion
	if err := json.Unmarshal(r.env.Data, &q); err != nil {
		return provider.TransportFailed(errors.Wrap(ErrMalformedBody, err.Error()))
	}
	prompt, err := base64.StdEncoding.DecodeString(q.Question)
	if err != nil {
		return provider.TransportFailed(errors.Wrap(ErrMalformedBody, "question encoding"))
	}
	choices := make([]string, 0, len(q.Propositions))
	for _, p := range q.Propositions {
		choice, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return provider.TransportFailed(errors.Wrap(ErrMalformedBody, "proposition encoding"))
		}
		choices = append(choices, string(choice))
	}
	if t := r.token(); t != "" {
		continuation = t
	}
	return provider.ChallengeRequired(provider.LoginChallenge{
		ID:                uuid.New().String(),
		ContinuationToken: continuation,
		PromptKind:        provider.PromptChoice,
		Prompt:            string(prompt),
		Choices:           choices,
		ExpiresHint:       a.cfg.Now().Add(a.cfg.ChallengeTTL),
		Metadata: map[string]string{
			metaGtk:      gtk,
			metaDeviceID: deviceID,
		},
	})
}

// ContinueLogin submits the chosen answer and replays the credentials with the resulting pair.
func (a *Adapter) ContinueLogin(ctx context.Context, creds credentials.Credentials, challenge provider.LoginChallenge, response string) provider.LoginOutcome {
	if len(challenge.Choices) > 0 && !slices.Contains(challenge.Choices, response) {
		return provider.Rejected("answer is not one of the proposed choices")
	}
	gtk := challenge.Metadata[metaGtk]

	r, err := a.post(ctx, "/v3/connexion/doubleauth.awp", url.Values{"verbe": {"post"}}, map[string]string{
		headerToken: challenge.ContinuationToken,
		headerGtk:   gtk,
	}, map[string]string{"choice": base64.StdEncoding.EncodeToString([]byte(response))})
	if err != nil {
		return provider.TransportFailed(err)
	}
	switch r.env.Code {
	case codeSuccess:
	case codeBadCredentials:
		return provider.Rejected("wrong challenge answer")
	default:
		return provider.TransportFailed(errors.Errorf("challenge answer code %d", r.env.Code))
	}

	var answer challengeAnswer
	if err := json.Unmarshal(r.env.Data, &answer); err != nil || answer.CN == "" || answer.CV == "" {
		return provider.TransportFailed(errors.Wrap(ErrMalformedBody, "challenge answer without cn/cv"))
	}

	updates := map[string]string{
		ExtraChallengeCN: answer.CN,
		ExtraChallengeCV: answer.CV,
	}
	if deviceID := challenge.Metadata[metaDeviceID]; deviceID != "" {
		updates[credentials.ExtraDeviceID] = deviceID
	}
	out := a.SubmitCredentials(ctx, creds.WithExtra(updates), provider.Preconditions{metaGtk: gtk})
	switch out.Kind {
	case provider.OutcomeAuthenticated:
		for k, v := range updates {
			out.CredentialUpdates[k] = v
		}
	case provider.OutcomeChallengeRequired:
		return provider.TransportFailed(errors.New("backend asked for a second challenge"))
	}
	return out
}
