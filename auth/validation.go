package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/provider"
)

// Validator holds the input checks run before anything reaches a backend.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

var knownGrants = []string{"", "authorization_code", "refresh_token", "password"}

// ValidateCredentials checks the shape of credentials, never their correctness.
func (v *Validator) ValidateCredentials(c credentials.Credentials) error {
	if !c.ProviderKind.Valid() {
		return fmt.Errorf("unknown provider kind %q", c.ProviderKind)
	}
	if strings.TrimSpace(c.Identifier) == "" {
		return fmt.Errorf("identifier is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("secret is required")
	}

	if c.ProviderKind == credentials.ProviderOAuth {
		if grant := c.Get(credentials.ExtraGrant); !slices.Contains(knownGrants, grant) {
			return fmt.Errorf("unknown grant %q", grant)
		}
		// RFC 7636 verifier length
		if verifier := c.Get(credentials.ExtraCodeVerifier); verifier != "" && (len(verifier) < 43 || len(verifier) > 128) {
			return fmt.Errorf("code_verifier must be between 43 and 128 characters")
		}
	}
	return nil
}

// ValidateChallengeResponse checks a response against the pending challenge.
func (v *Validator) ValidateChallengeResponse(challenge provider.LoginChallenge, response string, now time.Time) error {
	if challenge.Expired(now) {
		return fmt.Errorf("challenge expired at %s", challenge.ExpiresHint.Format(time.RFC3339))
	}
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("challenge response is required")
	}
	return nil
}

// ValidateRequest checks a canonical request before it is routed.
func (v *Validator) ValidateRequest(req provider.Request) error {
	if !slices.Contains(accounts.AllFeatures, req.Feature) {
		return fmt.Errorf("unknown feature %q", req.Feature)
	}
	for _, key := range []string{provider.ParamFrom, provider.ParamTo} {
		if value := req.Params[key]; value != "" {
			if _, err := time.Parse(provider.DateLayout, value); err != nil {
				return fmt.Errorf("%s must use the %s layout", key, provider.DateLayout)
			}
		}
	}
	return nil
}
