package oauthplatform

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/internal/utils"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	roleStudent = "student"
	roleParent  = "parent"
)

type apiEstablishment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiUser struct {
	ID            string           `json:"id"`
	Role          string           `json:"role"`
	FirstName     string           `json:"firstName"`
	LastName      string           `json:"lastName"`
	Email         string           `json:"email"`
	PhotoURL      string           `json:"photoUrl"`
	ClassName     string           `json:"className"`
	Establishment apiEstablishment `json:"establishment"`
	Features      []string         `json:"features"`
	Children      []apiUser        `json:"children"`
}

// loadAccounts reads the /me document. A parent yields one account per child.
func (a *Adapter) loadAccounts(ctx context.Context, accessToken string) ([]accounts.Account, error) {
	body, status, err := a.get(ctx, accessToken, "/me", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("[Adapter.loadAccounts] /me answered %d", status)
	}
	var me apiUser
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, errors.Wrap(err, "[Adapter.loadAccounts] decode")
	}

	var out []accounts.Account
	switch strings.ToLower(me.Role) {
	case roleParent:
		for _, child := range me.Children {
			out = append(out, toAccount(child, accounts.KindParent, me.Email))
		}
	case roleStudent:
		out = append(out, toAccount(me, accounts.KindStudent, me.Email))
	}
	if len(out) == 0 {
		return nil, errors.New("[Adapter.loadAccounts] no usable account")
	}
	return out, nil
}

func toAccount(u apiUser, kind accounts.Kind, email string) accounts.Account {
	caps := accounts.NewFeatureSet()
	for _, f := range u.Features {
		if feature := accounts.Feature(strings.ToLower(f)); slices.Contains(accounts.AllFeatures, feature) {
			caps[feature] = struct{}{}
		}
	}
	return accounts.Account{
		ID:          u.ID,
		DisplayName: utils.FirstNonEmpty(strings.TrimSpace(u.FirstName+" "+u.LastName), email, u.ID),
		Kind:        kind,
		Establishment: accounts.Establishment{
			ID:   u.Establishment.ID,
			Name: u.Establishment.Name,
		},
		Profile: accounts.Profile{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			ClassName: u.ClassName,
			Email:     email,
			PhotoURL:  u.PhotoURL,
		},
		Capabilities: caps,
	}
}

// get performs an authorized GET against the API and returns the body with the HTTP status.
func (a *Adapter) get(ctx context.Context, accessToken, path string, query map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
