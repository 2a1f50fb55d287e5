package oauthplatform

import (
	"context"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Claims is what the session keeps from a token response.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims verifies the ID token when one is returned and fills gaps from the access token.
func (a *Adapter) tokenClaims(ctx context.Context, tok *oauth2.Token) (Claims, error) {
	c := Claims{IssuedAt: a.cfg.Now(), ExpiresAt: tok.Expiry}
	// Measured on the adapter clock, the same one Fetch compares against.
	if secs := expiresIn(tok); secs > 0 {
		c.ExpiresAt = c.IssuedAt.Add(time.Duration(secs) * time.Second)
	}

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" && a.cfg.Issuer != "" {
		verifier, err := a.idTokenVerifier(ctx)
		if err != nil {
			return Claims{}, err
		}
		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return Claims{}, errors.Wrap(err, "[Adapter.tokenClaims] id token")
		}
		c.Subject = idToken.Subject
		c.IssuedAt = idToken.IssuedAt
	}

	if access, ok := inspectAccessToken(tok.AccessToken); ok {
		if c.Subject == "" {
			c.Subject = access.Subject
		}
		if c.ExpiresAt.IsZero() {
			c.ExpiresAt = access.ExpiresAt
		}
	}
	return c, nil
}

func expiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// inspectAccessToken reads the claims of a JWT access token without verifying it.
// The resource server is the one that verifies; the client only needs subject and expiry.
// Opaque tokens report false.
func inspectAccessToken(raw string) (Claims, bool) {
	var registered jwtlib.RegisteredClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, &registered); err != nil {
		return Claims{}, false
	}
	var c Claims
	c.Subject = registered.Subject
	if registered.IssuedAt != nil {
		c.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		c.ExpiresAt = registered.ExpiresAt.Time
	}
	return c, true
}
