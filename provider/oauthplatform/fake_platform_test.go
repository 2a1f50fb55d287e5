package oauthplatform_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-school-session/provider/oauthplatform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID  = "school-app"
	testIssuer    = "https://issuer.test"
	testCode      = "code-123"
	testVerifier  = "verifier-abcdefghijklmnopqrstuvwxyz0123456789ABCDEF"
	testStudentID = "stu-42"
)

var testNow = time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)

// fakePlatform serves the token endpoint and the REST API.
type fakePlatform struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey

	mu             sync.Mutex
	parent         bool
	withIDToken    bool
	idTokenIssuer  string
	accessTokens   map[string]bool
	refreshTokens  map[string]bool
	tokenSeq       int
	lastGrantType  string
	lastCodeVerify string

	tokenCalls atomic.Int32
	dataCalls  atomic.Int32
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := &fakePlatform{
		t:             t,
		key:           key,
		withIDToken:   true,
		idTokenIssuer: testIssuer,
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{"rt-stored": true},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", p.handleToken)
	mux.HandleFunc("GET /api/me", p.authorized(p.handleMe))
	mux.HandleFunc("GET /api/users/{id}/{resource}", p.authorized(p.handleData))
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) adapter(t *testing.T) *oauthplatform.Adapter {
	t.Helper()
	a, err := oauthplatform.New(oauthplatform.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		AuthURL:      p.srv.URL + "/authorize",
		TokenURL:     p.srv.URL + "/token",
		APIURL:       p.srv.URL + "/api/",
		RedirectURI:  "app://callback",
		Issuer:       testIssuer,
		KeySet:       &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&p.key.PublicKey}},
		HTTPClient:   p.srv.Client(),
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return a
}

func (p *fakePlatform) set(fn func(p *fakePlatform)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakePlatform) lastGrant() (grantType, codeVerifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGrantType, p.lastCodeVerify
}

func (p *fakePlatform) revokeAccessTokens() {
	p.set(func(p *fakePlatform) { p.accessTokens = map[string]bool{} })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *fakePlatform) handleToken(w http.ResponseWriter, r *http.Request) {
	p.tokenCalls.Add(1)
	assert.NoError(p.t, r.ParseForm())
	if id, _, ok := r.BasicAuth(); !ok || id != testClientID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastGrantType = r.PostForm.Get("grant_type")

	switch p.lastGrantType {
	case "authorization_code":
		p.lastCodeVerify = r.PostForm.Get("code_verifier")
		if r.PostForm.Get("code") != testCode || p.lastCodeVerify != testVerifier {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		if !p.refreshTokens[rt] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "refresh token revoked"})
			return
		}
		delete(p.refreshTokens, rt)
	case "password":
		if r.PostForm.Get("username") != "stu1" || r.PostForm.Get("password") != "right" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	p.tokenSeq++
	access := fmt.Sprintf("at-%d", p.tokenSeq)
	refresh := fmt.Sprintf("rt-%d", p.tokenSeq)
	p.accessTokens[access] = true
	p.refreshTokens[refresh] = true

	body := map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
	}
	if p.withIDToken {
		body["id_token"] = p.signIDToken()
	}
	writeJSON(w, http.StatusOK, body)
}

func (p *fakePlatform) signIDToken() string {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss": p.idTokenIssuer,
		"aud": testClientID,
		"sub": "user-7",
		"iat": testNow.Unix(),
		"exp": testNow.Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(p.key)
	assert.NoError(p.t, err)
	return signed
}

func (p *fakePlatform) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		p.mu.Lock()
		valid := ok && p.accessTokens[token]
		p.mu.Unlock()
		if !valid {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token", "error_description": "token expired"})
			return
		}
		next(w, r)
	}
}

func (p *fakePlatform) handleMe(w http.ResponseWriter, _ *http.Request) {
	establishment := map[string]string{"id": "sch-1", "name": "College Exemple"}
	student := map[string]any{
		"id": testStudentID, "role": "student", "firstName": "Alice", "lastName": "Doe",
		"email": "alice@example.com", "className": "4e B", "establishment": establishment,
		"features": []string{"timetable", "grades", "homework", "school_life", "messaging"},
	}
	p.mu.Lock()
	parent := p.parent
	p.mu.Unlock()
	if !parent {
		writeJSON(w, http.StatusOK, student)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": "par-1", "role": "parent", "firstName": "Pat", "lastName": "Doe", "email": "pat@example.com",
		"children": []map[string]any{
			student,
			{"id": "stu-43", "role": "student", "firstName": "Bob", "lastName": "Doe", "establishment": establishment,
				"features": []string{"timetable"}},
		},
	})
}

func (p *fakePlatform) handleData(w http.ResponseWriter, r *http.Request) {
	p.dataCalls.Add(1)
	if r.PathValue("id") != testStudentID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	switch r.PathValue("resource") {
	case "timetable":
		assert.Equal(p.t, "2026-10-19", r.URL.Query().Get("from"))
		assert.Equal(p.t, "2026-10-26", r.URL.Query().Get("to"))
		writeJSON(w, http.StatusOK, map[string]any{"lessons": []map[string]any{
			{"id": "l2", "subject": "HISTORY", "teachers": []string{"M. Martin"}, "room": "B12",
				"startsAt": "2026-10-19T10:00:00Z", "endsAt": "2026-10-19T11:00:00Z", "status": "cancelled"},
			{"id": "l1", "subject": "MATHS", "teachers": []string{"Mme Durand", "M. Petit"}, "room": "A01",
				"startsAt": "2026-10-19T08:00:00Z", "endsAt": "2026-10-19T09:00:00Z", "status": "SCHEDULED"},
		}})
	case "evaluations":
		writeJSON(w, http.StatusOK, map[string]any{
			"evaluations": []map[string]any{
				{"id": "e1", "subject": "MATHS", "title": "Test 1", "period": "T1", "score": map[string]any{"value": 15.5, "outOf": 20},
					"coefficient": 2, "classAverage": 12.1, "date": "2026-10-01"},
				{"id": "e2", "subject": "ENGLISH", "title": "Oral", "period": "T1", "score": map[string]any{"label": "Abs", "outOf": 20},
					"coefficient": 1, "date": "2026-10-05"},
			},
			"averages": []map[string]any{{"subject": "MATHS", "period": "T1", "average": 15.5, "classAverage": 12.1}},
		})
	case "assignments":
		writeJSON(w, http.StatusOK, map[string]any{"assignments": []map[string]any{
			{"id": "h1", "subject": "MATHS", "teacher": "Mme Durand", "instructions": " Exercises 12 and 13 ",
				"givenAt": "2026-10-17T00:00:00Z", "dueAt": "2026-10-21T00:00:00Z", "done": true},
		}})
	case "attendance":
		writeJSON(w, http.StatusOK, map[string]any{"events": []map[string]any{
			{"id": "a1", "type": "LATENESS", "at": "2026-10-02T08:05:00Z", "minutes": 10},
			{"id": "a2", "type": "ABSENCE", "at": "2026-10-06T08:00:00Z", "minutes": 240, "justified": true, "reason": "Medical"},
			{"id": "a3", "type": "MERIT", "at": "2026-10-07T08:00:00Z"},
		}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	}
}
