// Package oauthplatform adapts the OAuth based platform.
//
// A login is one token grant: the authorization code captured from the redirect (with its PKCE
// verifier), a stored refresh token, or a resource owner password. The platform never asks for a
// second factor through this API; any extra step happens in the browser before the redirect.
package oauthplatform

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-school-session/credentials"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Grant names accepted in credentials.ExtraGrant.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	// APIURL is the base of the REST API serving /me and the student resources.
	APIURL      string
	RedirectURI string
	Scopes      []string

	// Issuer enables ID token verification. Keys come from KeySet when set,
	// otherwise from the issuer's discovery document.
	Issuer string
	KeySet oidc.KeySet

	HTTPClient *http.Client
	Now        func() time.Time
}

var _ provider.Adapter = (*Adapter)(nil)

type Adapter struct {
	cfg   Config
	oauth *oauth2.Config

	verifierLock sync.RWMutex
	verifier     *oidc.IDTokenVerifier
}

func New(cfg Config) (*Adapter, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[oauthplatform.New] ClientID is required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("[oauthplatform.New] TokenURL is required")
	}
	if cfg.APIURL == "" {
		return nil, errors.New("[oauthplatform.New] APIURL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = provider.NewHTTPClient(30 * time.Second)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Adapter{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
		},
	}, nil
}

func (a *Adapter) Kind() credentials.ProviderKind {
	return credentials.ProviderOAuth
}

// AuthorizationURL starts a browser login. The returned verifier goes into
// credentials.ExtraCodeVerifier next to the code captured from the redirect.
func (a *Adapter) AuthorizationURL(state, loginHint string) (authURL, verifier string) {
	verifier = oauth2.GenerateVerifier()
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)}
	if loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}
	return a.oauth.AuthCodeURL(state, opts...), verifier
}

// AcquirePreconditions resolves the ID token verifier. Nothing is needed when no issuer is configured.
func (a *Adapter) AcquirePreconditions(ctx context.Context, _ credentials.Credentials) (provider.Preconditions, error) {
	if a.cfg.Issuer == "" {
		return provider.Preconditions{}, nil
	}
	if _, err := a.idTokenVerifier(ctx); err != nil {
		return nil, errors.Wrap(apperrors.ErrPreconditionFailed, err.Error())
	}
	return provider.Preconditions{}, nil
}

func (a *Adapter) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	a.verifierLock.RLock()
	v := a.verifier
	a.verifierLock.RUnlock()
	if v != nil {
		return v, nil
	}

	oidcConfig := &oidc.Config{ClientID: a.cfg.ClientID, Now: a.cfg.Now}
	if a.cfg.KeySet != nil {
		v = oidc.NewVerifier(a.cfg.Issuer, a.cfg.KeySet, oidcConfig)
	} else {
		p, err := oidc.NewProvider(oidc.ClientContext(ctx, a.cfg.HTTPClient), a.cfg.Issuer)
		if err != nil {
			return nil, errors.Wrap(err, "[Adapter.idTokenVerifier] discovery")
		}
		v = p.Verifier(oidcConfig)
	}

	a.verifierLock.Lock()
	a.verifier = v
	a.verifierLock.Unlock()
	return v, nil
}

// ContinueLogin is not part of this platform's flow.
func (a *Adapter) ContinueLogin(context.Context, credentials.Credentials, provider.LoginChallenge, string) provider.LoginOutcome {
	return provider.TransportFailed(errors.Wrap(apperrors.ErrUnsupported, "oauth platform has no challenge step"))
}
