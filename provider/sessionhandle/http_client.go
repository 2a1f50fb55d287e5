package sessionhandle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/provider"
	"github.com/pkg/errors"
)

const headerHandle = "X-Session-Handle"

var _ Client = (*HTTPClient)(nil)

// HTTPClient speaks the platform's JSON gateway.
type HTTPClient struct {
	baseURL   string
	userAgent string
	doer      provider.HTTPDoer
}

func NewHTTPClient(baseURL, userAgent string, doer provider.HTTPDoer) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("[sessionhandle.NewHTTPClient] baseURL is required")
	}
	if doer == nil {
		doer = provider.NewHTTPClient(30 * time.Second)
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), userAgent: userAgent, doer: doer}, nil
}

type gatewayReply struct {
	Data  json.RawMessage `json:"data"`
	Error *HandleError    `json:"error"`
}

func (c *HTTPClient) Open(ctx context.Context, username, password, device string) (*Opened, error) {
	var opened Opened
	err := c.do(ctx, "/session/open", "", map[string]string{
		"username": username,
		"password": password,
		"device":   device,
	}, &opened)
	if err != nil {
		return nil, err
	}
	return &opened, nil
}

func (c *HTTPClient) Confirm(ctx context.Context, continuation, code string) (*Opened, error) {
	var opened Opened
	if err := c.do(ctx, "/session/confirm", continuation, map[string]string{"code": code}, &opened); err != nil {
		return nil, err
	}
	return &opened, nil
}

func (c *HTTPClient) Call(ctx context.Context, handle, function string, args map[string]any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "/call/"+url.PathEscape(function), handle, args, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *HTTPClient) do(ctx context.Context, path, handle string, body, into any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.do] encode")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if handle != "" {
		req.Header.Set(headerHandle, handle)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	raw, err := provider.ReadBody(resp)
	if err != nil {
		return err
	}
	var reply gatewayReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return errors.Wrapf(err, "[HTTPClient.do] %s answered %d with an unreadable body", path, resp.StatusCode)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("[HTTPClient.do] %s answered %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(reply.Data, into); err != nil {
		return errors.Wrapf(err, "[HTTPClient.do] %s data", path)
	}
	return nil
}
