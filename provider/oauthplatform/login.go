package oauthplatform

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Token error codes that are a verdict on the credentials rather than on the transport.
var rejectingCodes = map[string]bool{
	"invalid_grant": true,
	"access_denied": true,
}

const rawRefreshToken = "refresh_token"

// SubmitCredentials runs the grant named by the credentials and loads the account list.
func (a *Adapter) SubmitCredentials(ctx context.Context, creds credentials.Credentials, _ provider.Preconditions) provider.LoginOutcome {
	grant := creds.Get(credentials.ExtraGrant)
	if grant == "" {
		grant = GrantAuthorizationCode
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)

	tok, err := a.token(ctx, grant, creds)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && rejectingCodes[re.ErrorCode] {
			return provider.Rejected(fmt.Sprintf("token endpoint: %s", re.ErrorCode))
		}
		log.Err(err).Str("provider", string(a.Kind())).Str("grant", grant).Msg("token request failed")
		return provider.TransportFailed(err)
	}

	claims, err := a.tokenClaims(ctx, tok)
	if err != nil {
		return provider.TransportFailed(err)
	}

	list, err := a.loadAccounts(ctx, tok.AccessToken)
	if err != nil {
		return provider.TransportFailed(err)
	}

	s := sessions.New(a.Kind(), creds.Identity(), tok.AccessToken, claims.IssuedAt, map[string]any{
		"subject":       claims.Subject,
		rawRefreshToken: tok.RefreshToken,
	}).WithExpiry(claims.ExpiresAt)

	out := provider.Authenticated(s, list)
	// Codes are single use and refresh tokens may rotate, so the newest refresh token becomes the secret.
	if tok.RefreshToken != "" && grant != GrantPassword {
		out.RotatedSecret = tok.RefreshToken
		out.CredentialUpdates = map[string]string{credentials.ExtraGrant: GrantRefreshToken}
	}
	log.Debug().Str("provider", string(a.Kind())).Str("grant", grant).Int("accounts", len(list)).Msg("login accepted")
	return out
}

func (a *Adapter) token(ctx context.Context, grant string, creds credentials.Credentials) (*oauth2.Token, error) {
	switch grant {
	case GrantAuthorizationCode:
		opts := []oauth2.AuthCodeOption{}
		if v := creds.Get(credentials.ExtraCodeVerifier); v != "" {
			opts = append(opts, oauth2.SetAuthURLParam("code_verifier", v))
		}
		if uri := creds.Get(credentials.ExtraRedirectURI); uri != "" {
			opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", uri))
		}
		return a.oauth.Exchange(ctx, creds.Secret, opts...)
	case GrantRefreshToken:
		return a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.Secret}).Token()
	case GrantPassword:
		return a.oauth.PasswordCredentialsToken(ctx, creds.Identifier, creds.Secret)
	}
	return nil, errors.Errorf("[Adapter.token] unknown grant %q", grant)
}
