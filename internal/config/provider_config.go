package config

import "strings"

type ProviderConfig interface {
	GetNativeBaseURL() string
	GetNativeAPIVersion() string
	GetNativeUserAgent() string

	GetOAuthClientID() string
	GetOAuthClientSecret() string
	GetOAuthAuthURL() string
	GetOAuthTokenURL() string
	GetOAuthAPIURL() string
	GetOAuthIssuer() string
	GetOAuthRedirectURI() string
	GetOAuthScopes() []string

	GetSessionHandleBaseURL() string
}

// Providers holds the endpoints of the three backend families.
type Providers struct {
	NativeBaseURL    string `env:"NATIVE_BASE_URL" envDefault:"https://api.school-native.example"`
	NativeAPIVersion string `env:"NATIVE_API_VERSION" envDefault:"4.75.0"`
	NativeUserAgent  string `env:"NATIVE_USER_AGENT" envDefault:"Mozilla/5.0 (Linux; Android 14) SchoolSession/1.0"`

	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthAuthURL      string   `env:"OAUTH_AUTH_URL"`
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL"`
	OAuthAPIURL       string   `env:"OAUTH_API_URL"`
	OAuthIssuer       string   `env:"OAUTH_ISSUER"`
	OAuthRedirectURI  string   `env:"OAUTH_REDIRECT_URI" envDefault:"schoolsession://oauth/callback"`
	OAuthScopes       []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"openid,profile"`

	SessionHandleBaseURL string `env:"SESSION_HANDLE_BASE_URL"`
}

var _ ProviderConfig = Providers{}

func (p Providers) GetNativeBaseURL() string {
	return strings.TrimRight(p.NativeBaseURL, "/")
}

func (p Providers) GetNativeAPIVersion() string {
	return p.NativeAPIVersion
}

func (p Providers) GetNativeUserAgent() string {
	return p.NativeUserAgent
}

func (p Providers) GetOAuthClientID() string {
	return p.OAuthClientID
}

func (p Providers) GetOAuthClientSecret() string {
	return p.OAuthClientSecret
}

func (p Providers) GetOAuthAuthURL() string {
	return p.OAuthAuthURL
}

func (p Providers) GetOAuthTokenURL() string {
	return p.OAuthTokenURL
}

func (p Providers) GetOAuthAPIURL() string {
	return strings.TrimRight(p.OAuthAPIURL, "/")
}

// GetOAuthIssuer returns the OIDC issuer used to verify ID tokens. Empty disables verification.
func (p Providers) GetOAuthIssuer() string {
	return p.OAuthIssuer
}

func (p Providers) GetOAuthRedirectURI() string {
	return p.OAuthRedirectURI
}

func (p Providers) GetOAuthScopes() []string {
	return p.OAuthScopes
}

func (p Providers) GetSessionHandleBaseURL() string {
	return strings.TrimRight(p.SessionHandleBaseURL, "/")
}
