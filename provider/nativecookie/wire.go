package nativecookie

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-school-session/provider"
	"github.com/pkg/errors"
)

// Body codes returned by the backend in every JSON envelope.
const (
	codeSuccess        = 200
	codeChallenge      = 250
	codeDenied         = 403
	codeNotFound       = 404
	codeBadCredentials = 505
	codeDeniedModule   = 516
	codeTokenInvalid   = 520
	codeTokenExpired   = 525
)

const (
	gtkCookie   = "GTK"
	headerGtk   = "X-Gtk"
	headerToken = "X-Token"
)

var (
	// ErrLoginPage is the cause recorded when the backend answers with an HTML page.
	ErrLoginPage = errors.New("backend answered with an html page")
	// ErrMalformedBody is the cause recorded when the body is not the expected JSON envelope.
	ErrMalformedBody = errors.New("malformed response body")
)

type envelope struct {
	Code    int             `json:"code"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type reply struct {
	env        envelope
	header     http.Header
	httpStatus int
}

// token returns the session or continuation token, header first.
func (r *reply) token() string {
	if t := r.header.Get(headerToken); t != "" {
		return t
	}
	return r.env.Token
}

func (a *Adapter) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("v", a.cfg.APIVersion)
	return a.cfg.BaseURL + path + "?" + query.Encode()
}

func (a *Adapter) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// post sends payload as the form field "data" and decodes the JSON envelope.
// Transport problems come back as the error; an HTML page or an undecodable body is reported
// through ErrLoginPage / ErrMalformedBody.
func (a *Adapter) post(ctx context.Context, path string, query url.Values, headers map[string]string, payload any) (*reply, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	form := url.Values{"data": {string(data)}}
	req, err := a.newRequest(ctx, http.MethodPost, a.endpoint(path, query), []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	r := &reply{header: resp.Header, httpStatus: resp.StatusCode}
	if provider.LooksLikeHTML(body) {
		return r, ErrLoginPage
	}
	if err := json.Unmarshal(body, &r.env); err != nil {
		return r, errors.Wrapf(ErrMalformedBody, "[Adapter.post] %s: %v", path, err)
	}
	return r, nil
}

// parseDecimal reads numbers written with a comma or a dot as decimal separator.
func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
