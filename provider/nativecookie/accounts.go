package nativecookie

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/internal/utils"
	"github.com/pkg/errors"
)

const (
	accountTypeStudent = "E"
	accountTypeParent  = "1"
)

var moduleFeatures = map[string]accounts.Feature{
	"EDT":              accounts.FeatureTimetable,
	"NOTES":            accounts.FeatureGrades,
	"CAHIER_DE_TEXTES": accounts.FeatureHomework,
	"VIE_SCOLAIRE":     accounts.FeatureSchoolLife,
}

type wireModule struct {
	Code    string `json:"code"`
	Enabled bool   `json:"enable"`
}

type wireSchool struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireStudent struct {
	ID        json.Number  `json:"id"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	ClassName string       `json:"className"`
	Photo     string       `json:"photo"`
	School    wireSchool   `json:"school"`
	Modules   []wireModule `json:"modules"`
}

type wireAccount struct {
	wireStudent
	Type     string        `json:"typeCompte"`
	Email    string        `json:"email"`
	Students []wireStudent `json:"students"`
}

type loginData struct {
	Accounts []wireAccount `json:"accounts"`
}

// decodeAccounts turns the login payload into canonical accounts.
// A parent account expands into one account per child.
func decodeAccounts(raw json.RawMessage) ([]accounts.Account, error) {
	var data loginData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrapf(ErrMalformedBody, "[decodeAccounts] %v", err)
	}
	var out []accounts.Account
	for _, wa := range data.Accounts {
		switch wa.Type {
		case accountTypeParent:
			for _, ws := range wa.Students {
				out = append(out, toAccount(ws, accounts.KindParent, wa.Email))
			}
		case accountTypeStudent:
			out = append(out, toAccount(wa.wireStudent, accounts.KindStudent, wa.Email))
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrMalformedBody, "[decodeAccounts] login returned no usable account")
	}
	return out, nil
}

func toAccount(ws wireStudent, kind accounts.Kind, email string) accounts.Account {
	caps := accounts.NewFeatureSet()
	for _, m := range ws.Modules {
		if f, ok := moduleFeatures[strings.ToUpper(m.Code)]; ok && m.Enabled {
			caps[f] = struct{}{}
		}
	}
	return accounts.Account{
		ID:          ws.ID.String(),
		DisplayName: utils.FirstNonEmpty(strings.TrimSpace(ws.FirstName+" "+ws.LastName), email, ws.ID.String()),
		Kind:        kind,
		Establishment: accounts.Establishment{
			ID:   ws.School.ID,
			Name: ws.School.Name,
		},
		Profile: accounts.Profile{
			FirstName: ws.FirstName,
			LastName:  ws.LastName,
			ClassName: ws.ClassName,
			Email:     email,
			PhotoURL:  ws.Photo,
		},
		Capabilities: caps,
	}
}
