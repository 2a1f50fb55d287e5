package credentials

import (
	"slices"
	"strings"

	"github.com/jrsteele09/go-school-session/internal/utils"
	"github.com/pkg/errors"
)

// ProviderKind selects which backend family handles a set of credentials.
type ProviderKind string

const (
	// ProviderNativeCookie is the cookie/token web API: an anti-forgery cookie token precedes
	// credential submission and outcomes are numeric codes in a JSON body.
	ProviderNativeCookie ProviderKind = "native_cookie"
	// ProviderOAuth is the OAuth platform: authorization code, refresh or password grants.
	ProviderOAuth ProviderKind = "oauth"
	// ProviderSessionHandle is the session-handle platform: a library keeps an opaque handle
	// and signals failures as typed errors.
	ProviderSessionHandle ProviderKind = "session_handle"
)

// ProviderKinds lists every supported kind.
var ProviderKinds = []ProviderKind{ProviderNativeCookie, ProviderOAuth, ProviderSessionHandle}

func (k ProviderKind) Valid() bool {
	return slices.Contains(ProviderKinds, k)
}

func (k ProviderKind) String() string {
	return string(k)
}

// ParseProviderKind accepts the kind names case-insensitively.
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.Errorf("[ParseProviderKind] unknown provider kind %q, expected one of %v", s, ProviderKinds)
	}
	return k, nil
}

// Well known Extra keys.
const (
	ExtraDeviceID     = "device_id"
	ExtraGrant        = "grant"
	ExtraCodeVerifier = "code_verifier"
	ExtraRedirectURI  = "redirect_uri"
)

// Credentials are owned by the caller. Methods never modify the receiver; updates return copies.
type Credentials struct {
	Identifier   string
	Secret       string
	ProviderKind ProviderKind
	Extra        map[string]string
}

// Get returns an Extra value, or "" when absent.
func (c Credentials) Get(key string) string {
	return c.Extra[key]
}

// WithExtra returns a copy of c with updates merged into Extra.
func (c Credentials) WithExtra(updates map[string]string) Credentials {
	out := c
	out.Extra = utils.CopyMap(c.Extra)
	if len(updates) == 0 {
		return out
	}
	if out.Extra == nil {
		out.Extra = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		out.Extra[k] = v
	}
	return out
}

// WithSecret returns a copy of c carrying a new secret.
func (c Credentials) WithSecret(secret string) Credentials {
	out := c.WithExtra(nil)
	out.Secret = secret
	return out
}

// Identity keys everything that is per logged-in identity, such as the re-login guard.
func (c Credentials) Identity() string {
	return string(c.ProviderKind) + ":" + strings.ToLower(strings.TrimSpace(c.Identifier))
}
