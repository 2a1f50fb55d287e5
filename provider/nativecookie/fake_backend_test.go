package nativecookie_test

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-school-session/provider/nativecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGTK          = "gtk-value-1"
	testContinuation = "continuation-1"
	testQuestion     = "What is your birth city?"
	testAnswer       = "Paris"
	testStudentID    = "1234"
)

var testNow = time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)

// fakeBackend imitates the cookie/token web API.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu               sync.Mutex
	password         string
	omitGTK          bool
	requireChallenge bool
	parent           bool
	htmlOnExpiry     bool
	garbledData      bool
	validToken       string

	gtkCalls   atomic.Int32
	loginCalls atomic.Int32
	tokenSeq   atomic.Int32
	lastUUID   atomic.Value
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{t: t, password: "right"}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) adapter(t *testing.T) *nativecookie.Adapter {
	t.Helper()
	a, err := nativecookie.New(nativecookie.Config{
		BaseURL:    b.srv.URL,
		APIVersion: "4.75.0",
		UserAgent:  "test-agent",
		HTTPClient: b.srv.Client(),
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return a
}

func (b *fakeBackend) expireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validToken = ""
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func writeEnvelope(w http.ResponseWriter, code int, token string, data any) {
	w.Header().Set("Content-Type", "application/json")
	if token != "" {
		w.Header().Set("X-Token", token)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "token": "", "message": "", "data": data})
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.URL.Query().Get("v") == "" {
		http.Error(w, "missing version", http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v3/login.awp":
		b.gtkCalls.Add(1)
		if !b.omitGTK {
			w.Header().Add("Set-Cookie", "SESSID=abc; Path=/, GTK="+testGTK+"; Path=/; Secure")
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/v3/login.awp":
		b.loginCalls.Add(1)
		b.handleLogin(w, r)
	case r.URL.Path == "/v3/connexion/doubleauth.awp":
		b.handleChallenge(w, r)
	case strings.HasPrefix(r.URL.Path, "/v3/eleves/"):
		b.handleData(w, r)
	default:
		http.NotFound(w, r)
	}
}

func decodeData(t *testing.T, r *http.Request, into any) {
	assert.NoError(t, r.ParseForm())
	assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("data")), into))
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Gtk") != testGTK {
		writeEnvelope(w, 517, "", nil)
		return
	}
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
		UUID       string `json:"uuid"`
		FA         []struct {
			CN string `json:"cn"`
			CV string `json:"cv"`
		} `json:"fa"`
	}
	decodeData(b.t, r, &body)
	b.lastUUID.Store(body.UUID)

	if body.Identifier != "stu1" || body.Password != b.password {
		writeEnvelope(w, 505, "", nil)
		return
	}
	solved := len(body.FA) == 1 && body.FA[0].CN == "CN1" && body.FA[0].CV == "CV1"
	if b.requireChallenge && !solved {
		writeEnvelope(w, 250, testContinuation, nil)
		return
	}
	b.validToken = fmt.Sprintf("session-%d", b.tokenSeq.Add(1))
	writeEnvelope(w, 200, b.validToken, map[string]any{"accounts": b.accountsFixture()})
}

func (b *fakeBackend) accountsFixture() []map[string]any {
	modules := []map[string]any{
		{"code": "EDT", "enable": true},
		{"code": "NOTES", "enable": true},
		{"code": "CAHIER_DE_TEXTES", "enable": true},
		{"code": "VIE_SCOLAIRE", "enable": false},
		{"code": "MESSAGERIE", "enable": true},
	}
	school := map[string]any{"id": "0750001A", "name": "Lycee Exemple"}
	if b.parent {
		return []map[string]any{{
			"id": 99, "typeCompte": "1", "email": "parent@example.com", "firstName": "Pat", "lastName": "Doe",
			"students": []map[string]any{
				{"id": 1234, "firstName": "Alice", "lastName": "Doe", "className": "2nde A", "school": school, "modules": modules},
				{"id": 1235, "firstName": "Bob", "lastName": "Doe", "className": "6e B", "school": school, "modules": modules[:1]},
			},
		}}
	}
	return []map[string]any{{
		"id": 1234, "typeCompte": "E", "email": "alice@example.com", "firstName": "Alice", "lastName": "Doe",
		"className": "2nde A", "school": school, "modules": modules,
	}}
}

func (b *fakeBackend) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Token") != testContinuation {
		writeEnvelope(w, 520, "", nil)
		return
	}
	switch r.URL.Query().Get("verbe") {
	case "get":
		writeEnvelope(w, 200, testContinuation, map[string]any{
			"question":     b64(testQuestion),
			"propositions": []string{b64("Lyon"), b64(testAnswer), b64("Nantes")},
		})
	case "post":
		var body struct {
			Choice string `json:"choice"`
		}
		decodeData(b.t, r, &body)
		if body.Choice != b64(testAnswer) {
			writeEnvelope(w, 505, "", nil)
			return
		}
		writeEnvelope(w, 200, "", map[string]any{"cn": "CN1", "cv": "CV1"})
	}
}

func (b *fakeBackend) handleData(w http.ResponseWriter, r *http.Request) {
	if b.validToken == "" || r.Header.Get("X-Token") != b.validToken {
		if b.htmlOnExpiry {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<!DOCTYPE html><html><body><form id=login></form></body></html>"))
			return
		}
		writeEnvelope(w, 525, "", nil)
		return
	}
	if b.garbledData {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": 200, "data": [`))
		return
	}
	parts := strings.Split(strings.TrimSuffix(r.URL.Path, ".awp"), "/")
	if len(parts) != 5 || parts[3] != testStudentID {
		writeEnvelope(w, 403, "", nil)
		return
	}
	switch parts[4] {
	case "emploidutemps":
		var body map[string]string
		decodeData(b.t, r, &body)
		assert.Equal(b.t, "2026-10-19", body["dateDebut"])
		writeEnvelope(w, 200, "", []map[string]any{
			{"id": 2, "matiere": "HISTOIRE", "prof": "M. Martin", "salle": "B12", "start_date": "2026-10-19 10:00", "end_date": "2026-10-19 11:00", "isAnnule": true},
			{"id": 1, "matiere": "MATHS", "prof": "Mme Durand", "salle": "A01", "start_date": "2026-10-19 08:00", "end_date": "2026-10-19 09:00"},
		})
	case "notes":
		writeEnvelope(w, 200, "", map[string]any{
			"notes": []map[string]any{
				{"id": 10, "libelleMatiere": "MATHS", "devoir": "Controle 1", "codePeriode": "A001", "valeur": "15,5", "noteSur": "20", "coef": "2", "moyenneClasse": "12,1", "date": "2026-10-01"},
				{"id": 11, "libelleMatiere": "ANGLAIS", "devoir": "Oral", "codePeriode": "A001", "valeur": "Abs", "noteSur": "20", "coef": "1", "date": "2026-10-05"},
			},
			"periodes": []map[string]any{
				{"codePeriode": "A001", "disciplines": []map[string]any{{"discipline": "MATHS", "moyenne": "15,5", "moyenneClasse": "12,1"}}},
			},
		})
	case "cahierdetexte":
		writeEnvelope(w, 200, "", map[string]any{
			"2026-10-21": []map[string]any{
				{"idDevoir": 5, "matiere": "MATHS", "nomProf": "Mme Durand", "donneLe": "2026-10-17", "effectue": false, "contenu": b64("<p>Exercices <b>12</b> et 13</p>")},
			},
		})
	case "viescolaire":
		writeEnvelope(w, 200, "", map[string]any{
			"absencesRetards": []map[string]any{
				{"id": 7, "typeElement": "Retard", "date": "2026-10-02 08:05", "nbMinutes": 10, "justifie": false, "motif": ""},
				{"id": 8, "typeElement": "Absence", "date": "2026-10-06 08:00", "nbMinutes": 240, "justifie": true, "motif": "Medical"},
			},
			"sanctionsEncouragements": []map[string]any{
				{"id": 9, "typeElement": "Punition", "date": "2026-10-03 14:00", "motif": "Homework not done"},
			},
		})
	default:
		writeEnvelope(w, 404, "", nil)
	}
}
