// Package appscript talks to the spreadsheet web-app endpoint that fronts
// the check sheet. GET returns every row as a JSON object, POST applies one
// action.
package appscript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cheques/internal/core"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

// Ensure interface conformance
var _ sheets.Backend = (*Client)(nil)

const (
	contentType = "text/plain;charset=utf-8"
	maxBody     = 16 << 20
)

type Client struct {
	endpoint string
	http     *http.Client
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLocation sets the zone date-only values are read in.
func WithLocation(loc *time.Location) Option { return func(c *Client) { c.loc = loc } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func WithLogger(l *log.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTimeout rebuilds the pooled client with another request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = newHTTPClientWithPooling(d)
		}
	}
}

// New returns a client for endpoint, which must be an absolute http(s) URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}
	c := &Client{
		endpoint: u.String(),
		http:     newHTTPClientWithPooling(30 * time.Second),
		loc:      time.Local,
		now:      time.Now,
		logger:   log.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentSheets)
	return c, nil
}

// newHTTPClientWithPooling keeps connections to the script host alive
// between the frequent refetches.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Fetch loads every row. A cache_bust parameter defeats intermediate
// caches.
func (c *Client) Fetch(ctx context.Context) ([]core.Check, error) {
	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("cache_bust", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &sheets.TransportError{Op: "fetch", Err: err}
	}
	body, err := c.do(req, "fetch")
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &sheets.TransportError{Op: "fetch", Err: fmt.Errorf("decode rows: %w", err)}
	}
	checks := sheets.DecodeRows(rows, c.loc)
	c.logger.DebugContext(ctx, "rows fetched", "rows", len(rows), log.FieldRecords, len(checks))
	return checks, nil
}

// Submit posts one action. Non-2xx replies are transport errors and a
// reply without success is an application error.
func (c *Client) Submit(ctx context.Context, r sheets.Request) (sheets.Response, error) {
	if err := r.Validate(); err != nil {
		return sheets.Response{}, err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return sheets.Response{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return sheets.Response{}, &sheets.TransportError{Op: string(r.Action), Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	body, err := c.do(req, string(r.Action))
	if err != nil {
		return sheets.Response{}, err
	}
	var resp sheets.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return sheets.Response{}, &sheets.TransportError{Op: string(r.Action), Err: fmt.Errorf("decode response: %w", err)}
	}
	if !resp.Success {
		return resp, sheets.Reject(r.Action, resp)
	}
	return resp, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &sheets.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, &sheets.TransportError{Op: op, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &sheets.TransportError{Op: op, Status: res.StatusCode, Err: errors.New(http.StatusText(res.StatusCode))}
	}
	return body, nil
}
